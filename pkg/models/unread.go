package models

import (
	"fmt"
	"strings"
)

// UnreadMessage is one unread message as reported by the mailbox
type UnreadMessage struct {
	UID           uint32
	UIDValidity   uint32
	MessageID     string // Message-ID header, may be empty
	SenderMailbox string
	SenderHost    string
}

// Key returns a de-duplication key that stays stable across sessions.
// The Message-ID header is preferred; UIDVALIDITY plus UID is the fallback.
func (m UnreadMessage) Key() string {
	if id := strings.TrimSpace(m.MessageID); id != "" {
		return id
	}
	return fmt.Sprintf("uid:%d:%d", m.UIDValidity, m.UID)
}

// Sender returns the sender address as mailbox@host, or "" when unknown
func (m UnreadMessage) Sender() string {
	if m.SenderMailbox == "" && m.SenderHost == "" {
		return ""
	}
	return NormalizeAddress(m.SenderMailbox + "@" + m.SenderHost)
}

// NormalizeAddress lower-cases and trims an email address for comparison
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

package models

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultInbox is selected when an account does not name one
const DefaultInbox = "INBOX"

// Connection holds the parameters needed to reach a mailbox. Loaded once per run, never mutated.
type Connection struct {
	Username    string `yaml:"username" json:"username"`
	Password    string `yaml:"password" json:"password"`
	Domain      string `yaml:"domain" json:"domain"`                       // IMAP host, optionally host:port
	Inbox       string `yaml:"inbox" json:"inbox"`                         // e.g. INBOX
	Distinction string `yaml:"email_distinction" json:"email_distinction"` // label used in notifications
}

// State is the part of an account that changes between runs
type State struct {
	PastEmails  []string `yaml:"past_emails" json:"past_emails"`   // unread keys seen by the previous run
	UnreadTotal int      `yaml:"unread_total" json:"unread_total"` // newly seen unread messages
}

// Account is a monitored mailbox: fixed connection parameters plus persisted state
type Account struct {
	Connection `yaml:",inline"`
	State      `yaml:",inline"`
}

// Label returns the name used for the account in logs and notifications
func (a *Account) Label() string {
	if a.Distinction != "" {
		return a.Distinction
	}
	return a.Username
}

// Mailbox returns the inbox to select, falling back to INBOX
func (a *Account) Mailbox() string {
	if strings.TrimSpace(a.Inbox) == "" {
		return DefaultInbox
	}
	return a.Inbox
}

// Validate checks the connection fields required to scan the account
func (a *Account) Validate() error {
	var errs []error
	if strings.TrimSpace(a.Username) == "" {
		errs = append(errs, errors.New("username is required"))
	}
	if strings.TrimSpace(a.Domain) == "" && !strings.Contains(a.Username, "@") {
		errs = append(errs, errors.New("domain is required when username is not an email address"))
	}
	if a.UnreadTotal < 0 {
		errs = append(errs, fmt.Errorf("unread_total must not be negative, got %d", a.UnreadTotal))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("account %q: %w", a.Label(), err)
	}
	return nil
}

// Apply stores the result of a successful scan
func (a *Account) Apply(newCount int, current []string) {
	a.UnreadTotal = newCount
	a.PastEmails = current
}

// ResetIfOver zeroes the unread total when it exceeds max. Reports whether it did.
func (a *Account) ResetIfOver(max int) bool {
	if a.UnreadTotal > max {
		a.UnreadTotal = 0
		return true
	}
	return false
}

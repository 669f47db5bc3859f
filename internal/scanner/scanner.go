// Package scanner counts unread mail per account and per sender.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mixelka/mailpager/internal/mailbox"
	"github.com/mixelka/mailpager/pkg/models"
)

// Connector opens a mailbox session for an account.
type Connector interface {
	Connect(ctx context.Context, conn models.Connection) (mailbox.Session, error)
}

// Result is the outcome of scanning one account.
type Result struct {
	NewCount int                 // unread messages not seen by the previous run
	Current  []string            // keys of every message unread right now
	Senders  models.SenderCounts // unread messages per sender, this scan only
}

// Scanner scans accounts one at a time.
type Scanner struct {
	connector Connector
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a scanner. A zero timeout disables the per-account deadline.
func New(connector Connector, timeout time.Duration, logger *slog.Logger) *Scanner {
	return &Scanner{
		connector: connector,
		timeout:   timeout,
		logger:    logger.With("component", "scanner"),
	}
}

// Scan connects to the account's mailbox and computes its unread delta.
// The account itself is not modified; the session is always disconnected
// once connected, including on error.
func (s *Scanner) Scan(ctx context.Context, account *models.Account) (Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger := s.logger.With("account", account.Label())

	session, err := s.connector.Connect(ctx, account.Connection)
	if err != nil {
		return Result{}, fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if closeErr := session.Disconnect(); closeErr != nil {
			logger.Warn("failed to disconnect", "error", closeErr)
		}
	}()

	inbox := account.Mailbox()
	if err := session.Select(ctx, inbox); err != nil {
		return Result{}, fmt.Errorf("select %s: %w", inbox, err)
	}

	messages, err := session.ListUnread(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list unread: %w", err)
	}

	newCount, current := Diff(account.PastEmails, messages)
	senders := models.NewSenderCounts()
	for _, msg := range messages {
		senders.Add(msg.Sender())
	}

	logger.Info("scanned mailbox",
		"inbox", inbox,
		"unread", len(messages),
		"new", newCount,
		"senders", len(senders),
	)

	return Result{NewCount: newCount, Current: current, Senders: senders}, nil
}

// Diff compares the current unread messages with the keys recorded by the
// previous run. It returns how many distinct keys are new and the distinct
// current keys in listing order; keys no longer unread are dropped.
func Diff(past []string, messages []models.UnreadMessage) (int, []string) {
	known := make(map[string]struct{}, len(past))
	for _, key := range past {
		known[key] = struct{}{}
	}

	newCount := 0
	current := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, msg := range messages {
		key := msg.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		current = append(current, key)

		if _, ok := known[key]; !ok {
			newCount++
		}
	}

	return newCount, current
}

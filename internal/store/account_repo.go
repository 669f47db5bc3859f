package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mixelka/mailpager/pkg/models"
)

// accountRow is the database shape of an account
type accountRow struct {
	ID          int64  `db:"id"`
	Username    string `db:"username"`
	Password    string `db:"password"`
	Domain      string `db:"domain"`
	Inbox       string `db:"inbox"`
	Distinction string `db:"email_distinction"`
	PastEmails  string `db:"past_emails"` // JSON array
	UnreadTotal int    `db:"unread_total"`
}

func (r accountRow) toAccount() (*models.Account, error) {
	var past []string
	if r.PastEmails != "" {
		if err := json.Unmarshal([]byte(r.PastEmails), &past); err != nil {
			return nil, fmt.Errorf("%w: account %d past_emails: %w", ErrMalformed, r.ID, err)
		}
	}

	return &models.Account{
		Connection: models.Connection{
			Username:    r.Username,
			Password:    r.Password,
			Domain:      r.Domain,
			Inbox:       r.Inbox,
			Distinction: r.Distinction,
		},
		State: models.State{
			PastEmails:  past,
			UnreadTotal: r.UnreadTotal,
		},
	}, nil
}

// Load returns all accounts in insertion order
func (s *SQLStore) Load(ctx context.Context) ([]*models.Account, error) {
	var rows []accountRow
	query := `
		SELECT id, username, password, domain, inbox, email_distinction, past_emails, unread_total
		FROM accounts ORDER BY id
	`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: accounts table is empty", ErrNotFound)
	}

	accounts := make([]*models.Account, 0, len(rows))
	for _, row := range rows {
		account, err := row.toAccount()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	s.logger.Debug("accounts loaded", "count", len(accounts))
	return accounts, nil
}

// Save inserts or updates every account in one transaction.
// Accounts are matched on (username, domain, inbox).
func (s *SQLStore) Save(ctx context.Context, accounts []*models.Account) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := tx.Rebind(`
		INSERT INTO accounts (username, password, domain, inbox, email_distinction, past_emails, unread_total, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (username, domain, inbox) DO UPDATE SET
			password = excluded.password,
			email_distinction = excluded.email_distinction,
			past_emails = excluded.past_emails,
			unread_total = excluded.unread_total,
			updated_at = excluded.updated_at
	`)

	now := time.Now()
	for _, a := range accounts {
		past := a.PastEmails
		if past == nil {
			past = []string{}
		}
		pastJSON, err := json.Marshal(past)
		if err != nil {
			return fmt.Errorf("failed to encode past_emails: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query,
			a.Username,
			a.Password,
			a.Domain,
			a.Mailbox(),
			a.Distinction,
			string(pastJSON),
			a.UnreadTotal,
			now,
		); err != nil {
			return fmt.Errorf("failed to save account %q: %w", a.Label(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit accounts: %w", err)
	}

	s.logger.Debug("accounts saved", "count", len(accounts))
	return nil
}

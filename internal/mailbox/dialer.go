package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mixelka/mailpager/pkg/models"
)

// PasswordFunc turns a stored password into the one sent to the server
type PasswordFunc func(stored string) (string, error)

// Dialer opens IMAP sessions for accounts
type Dialer struct {
	dialTimeout time.Duration
	logger      *slog.Logger
	passwordFn  PasswordFunc
	dial        DialFunc
}

// NewDialer creates a new dialer
func NewDialer(dialTimeout time.Duration, logger *slog.Logger) *Dialer {
	return &Dialer{
		dialTimeout: dialTimeout,
		logger:      logger.With("component", "mailbox"),
	}
}

// SetPasswordFunc sets the password resolution function
func (d *Dialer) SetPasswordFunc(fn PasswordFunc) {
	d.passwordFn = fn
}

// SetDialFunc replaces the implicit-TLS dialer
func (d *Dialer) SetDialFunc(fn DialFunc) {
	d.dial = fn
}

// Connect resolves the server, connects and logs in
func (d *Dialer) Connect(ctx context.Context, conn models.Connection) (Session, error) {
	server, err := ResolveServer(conn.Domain, conn.Username)
	if err != nil {
		return nil, err
	}

	password := conn.Password
	if d.passwordFn != nil {
		password, err = d.passwordFn(password)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve password: %w", err)
		}
	}

	client := NewClient(ClientConfig{
		Username:    conn.Username,
		Password:    password,
		Server:      server,
		DialTimeout: d.dialTimeout,
		Dial:        d.dial,
	}, d.logger)

	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	return client, nil
}

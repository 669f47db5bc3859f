package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mixelka/mailpager/internal/config"
	"github.com/mixelka/mailpager/internal/credential"
	"github.com/mixelka/mailpager/internal/formatter"
	"github.com/mixelka/mailpager/internal/mailbox"
	"github.com/mixelka/mailpager/internal/notify"
	"github.com/mixelka/mailpager/internal/scanner"
	"github.com/mixelka/mailpager/internal/store"
)

// openStore opens the configured state backend
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.StateBackend {
	case config.BackendFile:
		return store.NewFileStore(cfg.AccountsFile, logger), nil
	case config.BackendSQLite, config.BackendPostgres:
		var (
			s   *store.SQLStore
			err error
		)
		if cfg.StateBackend == config.BackendSQLite {
			s, err = store.OpenSQLite(cfg.DatabasePath, logger)
		} else {
			s, err = store.OpenPostgres(cfg.DatabaseURL, logger)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		logger.Debug("database migrations completed")
		return s, nil
	case config.BackendGCS:
		s, err := store.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSObject, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown state backend %q", config.ErrInvalid, cfg.StateBackend)
	}
}

// messageLimit returns the message length the notifier's transport accepts
func messageLimit(notifier string) int {
	switch notifier {
	case config.NotifierTwilio:
		return formatter.SMSMaxLength
	case config.NotifierTelegram:
		return formatter.TelegramMaxLength
	default:
		return 0
	}
}

// newSender builds the notifier
func newSender(cfg *config.Config, notifier string, settings *config.Settings, logger *slog.Logger) (notify.Sender, error) {
	switch notifier {
	case config.NotifierTwilio:
		s, err := notify.NewSMSSender(notify.SMSConfig{
			AccountSID: settings.AccountSID,
			AuthToken:  settings.AuthToken,
			To:         settings.ToPhone,
			From:       settings.FromPhone,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
		}
		return s, nil
	case config.NotifierTelegram:
		s, err := notify.NewTelegramSender(notify.TelegramConfig{
			Token:  cfg.TelegramToken,
			ChatID: cfg.TelegramChatID,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
		}
		return s, nil
	default:
		return notify.NewLogSender(logger), nil
	}
}

func newScanner(cfg *config.Config, logger *slog.Logger) *scanner.Scanner {
	dialer := mailbox.NewDialer(cfg.IMAPDialTimeout, logger)
	dialer.SetPasswordFunc(credential.NewResolver(cfg.KeyringService).Resolve)
	return scanner.New(dialer, cfg.ScanTimeout, logger)
}

func newFormatter(maxLength int) *formatter.SummaryFormatter {
	return formatter.NewSummaryFormatter(maxLength)
}

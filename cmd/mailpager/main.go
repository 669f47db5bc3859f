package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/mixelka/mailpager/internal/config"
	"github.com/mixelka/mailpager/internal/credential"
	"github.com/mixelka/mailpager/internal/store"
	"github.com/mixelka/mailpager/internal/watch"
)

// Process exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitConfig  = 2
	exitPersist = 3
)

type flags struct {
	accounts string
	settings string
	logLevel string
	dryRun   bool
}

func main() {
	var f flags

	rootCmd := &cobra.Command{
		Use:           "mailpager",
		Short:         "Check IMAP inboxes for unread mail and send one summary notification",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
			return runOnce(cmd.Context(), cfg, logger)
		},
	}
	rootCmd.PersistentFlags().StringVar(&f.accounts, "accounts", "", "accounts file (overrides MAILPAGER_ACCOUNTS_FILE)")
	rootCmd.PersistentFlags().StringVar(&f.settings, "settings", "", "settings file (overrides MAILPAGER_SETTINGS_FILE)")
	rootCmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (overrides MAILPAGER_LOG_LEVEL)")
	rootCmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "compose the message without sending it or saving state")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "import",
			Short: "Copy accounts from the accounts file into the configured state backend",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(cmd, f)
				if err != nil {
					return err
				}
				return importAccounts(cmd.Context(), cfg, setupLogger(cfg.LogLevel, cfg.LogFormat))
			},
		},
		&cobra.Command{
			Use:   "set-password KEY",
			Short: "Store a mailbox password in the OS keyring, read from stdin",
			Long:  "Store a mailbox password in the OS keyring. Reference it from the accounts file as password: keyring:KEY",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(cmd, f)
				if err != nil {
					return err
				}
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password := strings.TrimRight(line, "\r\n")
				if password == "" {
					return errors.New("password is empty")
				}
				if err := credential.NewResolver(cfg.KeyringService).Set(args[0], password); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored; use password: %s%s\n", credential.Prefix, args[0])
				return nil
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

// loadConfig reads the environment and applies command line overrides
func loadConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if f.accounts != "" {
		cfg.AccountsFile = f.accounts
	}
	if f.settings != "" {
		cfg.SettingsFile = f.settings
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = f.dryRun
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting mailpager", "backend", cfg.StateBackend, "notifier", cfg.Notifier, "dry_run", cfg.DryRun)

	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		return err
	}
	notifier := cfg.Notifier
	if cfg.DryRun {
		notifier = config.NotifierLog
	}
	if err := settings.Validate(notifier); err != nil {
		return err
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()

	sender, err := newSender(cfg, notifier, settings, logger)
	if err != nil {
		return err
	}

	runner := watch.NewRunner(watch.Deps{
		Store:     st,
		Scanner:   newScanner(cfg, logger),
		Sender:    sender,
		Formatter: newFormatter(messageLimit(cfg.Notifier)),
		Settings:  settings,
		Logger:    logger,
		DryRun:    cfg.DryRun,
	})

	_, err = runner.Run(ctx)
	return err
}

func importAccounts(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.StateBackend == config.BackendFile {
		return fmt.Errorf("%w: import needs a database or gcs state backend", config.ErrInvalid)
	}

	accounts, err := store.NewFileStore(cfg.AccountsFile, logger).Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: read accounts file: %w", config.ErrInvalid, err)
	}
	for _, a := range accounts {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("%w: %w", config.ErrInvalid, err)
		}
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()

	if err := st.Save(ctx, accounts); err != nil {
		return fmt.Errorf("%w: %w", watch.ErrPersist, err)
	}

	logger.Info("accounts imported", "count", len(accounts), "backend", cfg.StateBackend)
	return nil
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, config.ErrInvalid):
		return exitConfig
	case errors.Is(err, watch.ErrPersist):
		return exitPersist
	default:
		return exitFailure
	}
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

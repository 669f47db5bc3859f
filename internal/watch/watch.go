// Package watch runs one polling pass: scan every account, decide, notify,
// reset and persist.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mixelka/mailpager/internal/config"
	"github.com/mixelka/mailpager/internal/formatter"
	"github.com/mixelka/mailpager/internal/notify"
	"github.com/mixelka/mailpager/internal/scanner"
	"github.com/mixelka/mailpager/internal/store"
	"github.com/mixelka/mailpager/pkg/models"
)

// Phase of a run
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseScanning   Phase = "scanning"
	PhaseDeciding   Phase = "deciding"
	PhaseNotifying  Phase = "notifying"
	PhasePersisting Phase = "persisting"
	PhaseDone       Phase = "done"
)

// Store loads and saves account records
type Store interface {
	Load(ctx context.Context) ([]*models.Account, error)
	Save(ctx context.Context, accounts []*models.Account) error
}

// AccountScanner scans a single account
type AccountScanner interface {
	Scan(ctx context.Context, account *models.Account) (scanner.Result, error)
}

// Deps runner dependencies
type Deps struct {
	Store     Store
	Scanner   AccountScanner
	Sender    notify.Sender
	Formatter *formatter.SummaryFormatter
	Settings  *config.Settings
	Logger    *slog.Logger
	DryRun    bool
}

// Report summarizes a finished run
type Report struct {
	RunID      string
	Accounts   int
	Scanned    []string
	Failed     []string
	Notified   bool
	DeliveryID string
	Message    string
	Reset      []string
	Persisted  bool
}

// Runner executes polling passes
type Runner struct {
	store     Store
	scanner   AccountScanner
	sender    notify.Sender
	formatter *formatter.SummaryFormatter
	settings  *config.Settings
	logger    *slog.Logger
	dryRun    bool
}

// NewRunner creates a new runner
func NewRunner(deps Deps) *Runner {
	f := deps.Formatter
	if f == nil {
		f = formatter.NewSummaryFormatter(0)
	}
	return &Runner{
		store:     deps.Store,
		scanner:   deps.Scanner,
		sender:    deps.Sender,
		formatter: f,
		settings:  deps.Settings,
		logger:    deps.Logger.With("component", "watch"),
		dryRun:    deps.DryRun,
	}
}

// Run performs one pass. The returned error joins every failure of the run;
// the report is returned even when the run failed.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	logger := r.logger.With("run_id", report.RunID)
	enter(logger, PhaseIdle)

	accounts, err := r.store.Load(ctx)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrMalformed) {
		return report, fmt.Errorf("%w: load accounts: %w", config.ErrInvalid, err)
	}
	if err != nil {
		return report, fmt.Errorf("load accounts: %w", err)
	}
	report.Accounts = len(accounts)

	var invalid []error
	for _, a := range accounts {
		if err := a.Validate(); err != nil {
			invalid = append(invalid, err)
		}
	}
	if len(invalid) > 0 {
		return report, fmt.Errorf("%w: %w", config.ErrInvalid, errors.Join(invalid...))
	}

	var errs []error

	enter(logger, PhaseScanning)
	scanned, senders, scanErrs := r.scanAll(ctx, logger, accounts, report)
	errs = append(errs, scanErrs...)

	enter(logger, PhaseDeciding)
	decision := ShouldNotify(scanned, senders, r.settings)
	logger.Info("decision made", "notify", decision, "scanned", len(scanned), "unread", senders.Total(), "senders", len(senders))

	if decision {
		enter(logger, PhaseNotifying)
		if err := r.notify(ctx, logger, scanned, senders, report); err != nil {
			errs = append(errs, err)
		}
	}

	enter(logger, PhasePersisting)
	if r.dryRun {
		logger.Info("dry run, account state not saved")
	} else if err := r.store.Save(context.WithoutCancel(ctx), accounts); err != nil {
		logger.Error("failed to save account state", "error", err)
		errs = append(errs, fmt.Errorf("%w: %w", ErrPersist, err))
	} else {
		report.Persisted = true
	}

	enter(logger, PhaseDone)
	logger.Info("run finished",
		"accounts", report.Accounts,
		"scanned", len(report.Scanned),
		"failed", report.Failed,
		"notified", report.Notified,
		"delivery_id", report.DeliveryID,
		"reset", report.Reset,
		"persisted", report.Persisted,
	)

	return report, errors.Join(errs...)
}

// scanAll scans accounts one after another. A failed account keeps its
// previous state and is left out of the returned slice and counts.
func (r *Runner) scanAll(ctx context.Context, logger *slog.Logger, accounts []*models.Account, report *Report) ([]*models.Account, models.SenderCounts, []error) {
	var errs []error
	senders := models.NewSenderCounts()
	scanned := make([]*models.Account, 0, len(accounts))

	for _, a := range accounts {
		res, err := r.scanner.Scan(ctx, a)
		if err != nil {
			logger.Error("failed to scan account", "account", a.Label(), "error", err)
			report.Failed = append(report.Failed, a.Label())
			errs = append(errs, &AccountError{Account: a.Label(), Err: fmt.Errorf("%w: %w", ErrMailbox, err)})
			continue
		}

		a.Apply(res.NewCount, res.Current)
		senders.Merge(res.Senders)
		scanned = append(scanned, a)
		report.Scanned = append(report.Scanned, a.Label())
	}

	return scanned, senders, errs
}

// notify composes and sends the summary, then resets accounts over the threshold
func (r *Runner) notify(ctx context.Context, logger *slog.Logger, accounts []*models.Account, senders models.SenderCounts, report *Report) error {
	body := r.formatter.Format(accounts, senders, r.settings.Contacts())
	report.Message = body

	if r.dryRun {
		logger.Info("dry run, notification not sent", "body", body)
		return nil
	}

	id, err := r.sender.Send(ctx, body)
	if err != nil {
		logger.Error("failed to send notification", "error", err)
		return fmt.Errorf("%w: %w", ErrNotify, err)
	}
	report.Notified = true
	report.DeliveryID = id
	logger.Info("notification sent", "delivery_id", id)

	for _, a := range accounts {
		if a.ResetIfOver(r.settings.MaxUnreadEmails) {
			report.Reset = append(report.Reset, a.Label())
			logger.Debug("unread total reset", "account", a.Label())
		}
	}

	return nil
}

func enter(logger *slog.Logger, phase Phase) {
	logger.Debug("entering phase", "phase", phase)
}

package watch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/mixelka/mailpager/internal/config"
	"github.com/mixelka/mailpager/internal/formatter"
	"github.com/mixelka/mailpager/internal/mailbox"
	"github.com/mixelka/mailpager/internal/scanner"
	"github.com/mixelka/mailpager/internal/store"
	"github.com/mixelka/mailpager/pkg/models"
)

type fakeSession struct {
	messages []models.UnreadMessage
}

func (s *fakeSession) Select(ctx context.Context, inbox string) error { return nil }

func (s *fakeSession) ListUnread(ctx context.Context) ([]models.UnreadMessage, error) {
	return s.messages, nil
}

func (s *fakeSession) Disconnect() error { return nil }

// fakeConnector serves mailboxes keyed by username
type fakeConnector struct {
	mailboxes map[string][]models.UnreadMessage
	failing   map[string]error
	calls     int
}

func (c *fakeConnector) Connect(ctx context.Context, conn models.Connection) (mailbox.Session, error) {
	c.calls++
	if err := c.failing[conn.Username]; err != nil {
		return nil, err
	}
	return &fakeSession{messages: c.mailboxes[conn.Username]}, nil
}

type fakeStore struct {
	accounts []*models.Account
	loadErr  error
	saveErr  error
	saves    int
}

func (s *fakeStore) Load(ctx context.Context) ([]*models.Account, error) {
	return s.accounts, s.loadErr
}

func (s *fakeStore) Save(ctx context.Context, accounts []*models.Account) error {
	s.saves++
	return s.saveErr
}

type fakeSender struct {
	bodies []string
	err    error
}

func (s *fakeSender) Send(ctx context.Context, body string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.bodies = append(s.bodies, body)
	return "SM123", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func account(username, label string) *models.Account {
	return &models.Account{
		Connection: models.Connection{Username: username, Password: "pw", Domain: "imap.test", Inbox: "INBOX", Distinction: label},
	}
}

// messages builds n unread messages from the same sender
func messages(prefix, from string, n int) []models.UnreadMessage {
	box, host, _ := strings.Cut(from, "@")
	out := make([]models.UnreadMessage, n)
	for i := range out {
		out[i] = models.UnreadMessage{
			UID:           uint32(i + 1),
			UIDValidity:   7,
			MessageID:     "<" + prefix + string(rune('a'+i)) + "@" + host + ">",
			SenderMailbox: box,
			SenderHost:    host,
		}
	}
	return out
}

type harness struct {
	store     *fakeStore
	connector *fakeConnector
	sender    *fakeSender
	runner    *Runner
}

func newHarness(settings *config.Settings, dryRun bool, accounts ...*models.Account) *harness {
	h := &harness{
		store:     &fakeStore{accounts: accounts},
		connector: &fakeConnector{mailboxes: map[string][]models.UnreadMessage{}, failing: map[string]error{}},
		sender:    &fakeSender{},
	}
	logger := discardLogger()
	h.runner = NewRunner(Deps{
		Store:     h.store,
		Scanner:   scanner.New(h.connector, 0, logger),
		Sender:    h.sender,
		Formatter: formatter.NewSummaryFormatter(formatter.SMSMaxLength),
		Settings:  settings,
		Logger:    logger,
		DryRun:    dryRun,
	})
	return h
}

func TestRunBelowThresholdDoesNotNotify(t *testing.T) {
	a, b := account("a@test", "A"), account("b@test", "B")
	h := newHarness(&config.Settings{MaxUnreadEmails: 5}, false, a, b)
	h.connector.mailboxes["a@test"] = messages("a", "news@shop.test", 3)

	report, err := h.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(h.sender.bodies) != 0 {
		t.Errorf("notification sent: %q", h.sender.bodies)
	}
	if a.UnreadTotal != 3 || b.UnreadTotal != 0 {
		t.Errorf("unread totals = %d, %d, want 3, 0", a.UnreadTotal, b.UnreadTotal)
	}
	if h.store.saves != 1 || !report.Persisted {
		t.Errorf("saves = %d, persisted = %v", h.store.saves, report.Persisted)
	}
}

func TestRunImportantSenderNotifies(t *testing.T) {
	a := account("me@test", "G")
	settings := &config.Settings{ImportantContacts: []string{"Boss@Corp.test"}, MaxUnreadEmails: 100}
	h := newHarness(settings, false, a)
	h.connector.mailboxes["me@test"] = messages("m", "boss@corp.test", 1)

	report, err := h.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(h.sender.bodies) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(h.sender.bodies))
	}
	body := h.sender.bodies[0]
	for _, want := range []string{"1 new message!", "G has 1 unread emails", "1 important emails"} {
		if !strings.Contains(body, want) {
			t.Errorf("body %q does not contain %q", body, want)
		}
	}
	if a.UnreadTotal != 1 {
		t.Errorf("UnreadTotal = %d, want 1", a.UnreadTotal)
	}
	if !report.Notified || report.DeliveryID != "SM123" || len(report.Reset) != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestRunOverThresholdResets(t *testing.T) {
	over, under := account("over@test", "O"), account("under@test", "U")
	h := newHarness(&config.Settings{MaxUnreadEmails: 5}, false, over, under)
	h.connector.mailboxes["over@test"] = messages("o", "list@lists.test", 6)
	h.connector.mailboxes["under@test"] = messages("u", "list@lists.test", 5)

	report, err := h.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(h.sender.bodies) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(h.sender.bodies))
	}
	if !strings.HasPrefix(h.sender.bodies[0], "11 new message!\n\n") {
		t.Errorf("body = %q", h.sender.bodies[0])
	}
	if over.UnreadTotal != 0 {
		t.Errorf("over threshold UnreadTotal = %d, want 0", over.UnreadTotal)
	}
	if under.UnreadTotal != 5 {
		t.Errorf("at threshold UnreadTotal = %d, want 5", under.UnreadTotal)
	}
	if !reflect.DeepEqual(report.Reset, []string{"O"}) {
		t.Errorf("Reset = %v, want [O]", report.Reset)
	}
	if len(over.PastEmails) != 6 {
		t.Errorf("PastEmails kept %d keys, want 6", len(over.PastEmails))
	}
}

func TestRunThresholdBoundary(t *testing.T) {
	a := account("a@test", "A")
	h := newHarness(&config.Settings{MaxUnreadEmails: 5}, false, a)
	h.connector.mailboxes["a@test"] = messages("a", "x@y.test", 5)

	if _, err := h.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(h.sender.bodies) != 0 {
		t.Error("unread total equal to the threshold must not notify")
	}
	if a.UnreadTotal != 5 {
		t.Errorf("UnreadTotal = %d, want 5", a.UnreadTotal)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	a := account("a@test", "A")
	h := newHarness(&config.Settings{MaxUnreadEmails: 100}, false, a)
	h.connector.mailboxes["a@test"] = messages("a", "x@y.test", 3)

	for i, want := range []int{3, 0} {
		if _, err := h.runner.Run(context.Background()); err != nil {
			t.Fatalf("run %d: error = %v", i+1, err)
		}
		if a.UnreadTotal != want {
			t.Errorf("run %d: UnreadTotal = %d, want %d", i+1, a.UnreadTotal, want)
		}
	}

	var keys []string
	for _, m := range h.connector.mailboxes["a@test"] {
		keys = append(keys, m.Key())
	}
	if !reflect.DeepEqual(a.PastEmails, keys) {
		t.Errorf("PastEmails = %v, want %v", a.PastEmails, keys)
	}
}

func TestRunNotifyFailureStillPersists(t *testing.T) {
	a := account("a@test", "A")
	h := newHarness(&config.Settings{MaxUnreadEmails: 5}, false, a)
	h.connector.mailboxes["a@test"] = messages("a", "x@y.test", 6)
	h.sender.err = errors.New("twilio: 401")

	report, err := h.runner.Run(context.Background())
	if !errors.Is(err, ErrNotify) {
		t.Fatalf("Run() error = %v, want ErrNotify", err)
	}
	if a.UnreadTotal != 6 {
		t.Errorf("UnreadTotal = %d, want 6 (no reset without delivery)", a.UnreadTotal)
	}
	if h.store.saves != 1 || !report.Persisted {
		t.Errorf("state not persisted after notification failure")
	}
	if report.Notified {
		t.Error("report claims notification was delivered")
	}
}

func TestRunIsolatesFailingAccount(t *testing.T) {
	good, bad := account("good@test", "G"), account("bad@test", "B")
	bad.PastEmails = []string{"<old@x>"}
	bad.UnreadTotal = 9
	h := newHarness(&config.Settings{MaxUnreadEmails: 5}, false, bad, good)
	h.connector.mailboxes["good@test"] = messages("g", "x@y.test", 2)
	h.connector.failing["bad@test"] = errors.New("authentication failed")

	report, err := h.runner.Run(context.Background())
	if !errors.Is(err, ErrMailbox) {
		t.Fatalf("Run() error = %v, want ErrMailbox", err)
	}
	var accErr *AccountError
	if !errors.As(err, &accErr) || accErr.Account != "B" {
		t.Errorf("Run() error = %v, want AccountError for B", err)
	}

	// The failed account's stale total must not trigger a notification
	if len(h.sender.bodies) != 0 {
		t.Errorf("notification sent: %q", h.sender.bodies)
	}
	if bad.UnreadTotal != 9 || !reflect.DeepEqual(bad.PastEmails, []string{"<old@x>"}) {
		t.Errorf("failed account modified: %+v", bad.State)
	}
	if good.UnreadTotal != 2 {
		t.Errorf("good UnreadTotal = %d, want 2", good.UnreadTotal)
	}
	if h.store.saves != 1 {
		t.Errorf("saves = %d, want 1", h.store.saves)
	}
	if !reflect.DeepEqual(report.Failed, []string{"B"}) || !reflect.DeepEqual(report.Scanned, []string{"G"}) {
		t.Errorf("report = %+v", report)
	}
}

func TestRunPersistFailure(t *testing.T) {
	a := account("a@test", "A")
	h := newHarness(&config.Settings{MaxUnreadEmails: 5}, false, a)
	h.connector.mailboxes["a@test"] = messages("a", "x@y.test", 6)
	h.store.saveErr = errors.New("disk full")

	report, err := h.runner.Run(context.Background())
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("Run() error = %v, want ErrPersist", err)
	}
	if errors.Is(err, ErrNotify) {
		t.Error("persist failure reported as notification failure")
	}
	if !report.Notified {
		t.Error("notification should have been sent before persisting")
	}
}

func TestRunConfigErrorsAbortBeforeNetwork(t *testing.T) {
	tests := []struct {
		name  string
		store *fakeStore
	}{
		{
			name:  "missing state",
			store: &fakeStore{loadErr: fmt.Errorf("%w: accountNames.yaml", store.ErrNotFound)},
		},
		{
			name:  "malformed state",
			store: &fakeStore{loadErr: fmt.Errorf("accountNames.yaml: %w: yaml: line 2", store.ErrMalformed)},
		},
		{
			name:  "invalid account",
			store: &fakeStore{accounts: []*models.Account{account("a@test", "A"), {Connection: models.Connection{Password: "pw"}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(&config.Settings{MaxUnreadEmails: 5}, false)
			h.store = tt.store
			h.runner.store = tt.store

			_, err := h.runner.Run(context.Background())
			if !errors.Is(err, config.ErrInvalid) {
				t.Fatalf("Run() error = %v, want ErrInvalid", err)
			}
			if h.connector.calls != 0 {
				t.Errorf("connector called %d times", h.connector.calls)
			}
			if tt.store.saves != 0 {
				t.Errorf("store saved %d times", tt.store.saves)
			}
		})
	}
}

func TestRunLoadTransportErrorIsNotConfigError(t *testing.T) {
	h := newHarness(&config.Settings{MaxUnreadEmails: 5}, false)
	h.store.loadErr = errors.New("dial tcp 10.0.0.5:5432: connection refused")

	_, err := h.runner.Run(context.Background())
	if err == nil {
		t.Fatal("Run() error = nil, want load failure")
	}
	if errors.Is(err, config.ErrInvalid) {
		t.Errorf("Run() error = %v, transport failure must not be a config error", err)
	}
	if h.connector.calls != 0 || h.store.saves != 0 {
		t.Errorf("calls = %d, saves = %d, want none", h.connector.calls, h.store.saves)
	}
}

func TestRunLogsUnreadTotal(t *testing.T) {
	a, b := account("a@test", "A"), account("b@test", "B")
	h := newHarness(&config.Settings{MaxUnreadEmails: 100}, false, a, b)
	h.connector.mailboxes["a@test"] = messages("a", "x@y.test", 3)
	h.connector.mailboxes["b@test"] = messages("b", "z@y.test", 2)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h.runner.logger = logger.With("component", "watch")

	if _, err := h.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if strings.Contains(line, `"msg":"decision made"`) {
			if !strings.Contains(line, `"unread":5`) || !strings.Contains(line, `"senders":2`) {
				t.Errorf("decision log = %s, want unread 5 from 2 senders", line)
			}
			return
		}
	}
	t.Errorf("no decision log line in:\n%s", buf.String())
}

func TestRunDryRun(t *testing.T) {
	a := account("a@test", "A")
	h := newHarness(&config.Settings{MaxUnreadEmails: 5}, true, a)
	h.connector.mailboxes["a@test"] = messages("a", "x@y.test", 6)

	report, err := h.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(h.sender.bodies) != 0 {
		t.Error("dry run sent a notification")
	}
	if h.store.saves != 0 || report.Persisted {
		t.Error("dry run saved state")
	}
	if !strings.HasPrefix(report.Message, "6 new message!") {
		t.Errorf("Message = %q", report.Message)
	}
	if a.UnreadTotal != 6 {
		t.Errorf("UnreadTotal = %d, want 6", a.UnreadTotal)
	}
}

func TestShouldNotify(t *testing.T) {
	settings := &config.Settings{ImportantContacts: []string{"boss@corp.test"}, MaxUnreadEmails: 5}
	withTotal := func(n int) *models.Account {
		return &models.Account{State: models.State{UnreadTotal: n}}
	}

	tests := []struct {
		name     string
		accounts []*models.Account
		senders  models.SenderCounts
		want     bool
	}{
		{"nothing", []*models.Account{withTotal(0)}, models.SenderCounts{}, false},
		{"at threshold", []*models.Account{withTotal(5)}, models.SenderCounts{"x@y.test": 5}, false},
		{"over threshold", []*models.Account{withTotal(0), withTotal(6)}, nil, true},
		{"important sender", []*models.Account{withTotal(1)}, models.SenderCounts{"boss@corp.test": 1}, true},
		{"important sender with zero count", []*models.Account{withTotal(1)}, models.SenderCounts{"boss@corp.test": 0}, false},
		{"no accounts", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldNotify(tt.accounts, tt.senders, settings); got != tt.want {
				t.Errorf("ShouldNotify() = %v, want %v", got, tt.want)
			}
		})
	}
}

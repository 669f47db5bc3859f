package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/charset"

	"github.com/mixelka/mailpager/pkg/models"
)

const defaultDialTimeout = 30 * time.Second

func init() {
	// Envelope fields may use legacy charsets (windows-1252, koi8-r, ...)
	imap.CharsetReader = charset.Reader
}

// Session is a connected mailbox: select an inbox, list its unread messages, disconnect.
type Session interface {
	Select(ctx context.Context, inbox string) error
	ListUnread(ctx context.Context) ([]models.UnreadMessage, error)
	Disconnect() error
}

// DialFunc opens the transport connection to the server
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// ClientConfig configuration for IMAP client
type ClientConfig struct {
	Username    string
	Password    string
	Server      string // host:port
	DialTimeout time.Duration
	Dial        DialFunc // nil means implicit TLS
}

// Client IMAP client for a single email account
type Client struct {
	config      ClientConfig
	client      *client.Client
	logger      *slog.Logger
	uidValidity uint32
	stopClose   func() bool
}

// NewClient creates a new IMAP client
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	return &Client{
		config: cfg,
		logger: logger.With("username", cfg.Username),
	}
}

// Connect connects to the IMAP server over TLS and logs in.
// The connection is torn down if ctx is cancelled before Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	if c.client != nil {
		return nil
	}

	c.logger.Debug("connecting to IMAP server", "server", c.config.Server)

	timeout := c.config.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}

	host, _, err := net.SplitHostPort(c.config.Server)
	if err != nil {
		return fmt.Errorf("invalid server address %q: %w", c.config.Server, err)
	}

	dial := c.config.Dial
	if dial == nil {
		dialer := &tls.Dialer{
			NetDialer: &net.Dialer{Timeout: timeout},
			Config:    &tls.Config{ServerName: host},
		}
		dial = dialer.DialContext
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	conn, err := dial(dialCtx, "tcp", c.config.Server)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	imapClient, err := client.New(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create IMAP client: %w", err)
	}
	imapClient.Timeout = timeout

	// Login
	if err := imapClient.Login(c.config.Username, c.config.Password); err != nil {
		imapClient.Logout()
		return fmt.Errorf("failed to login: %w", err)
	}

	c.client = imapClient
	c.stopClose = context.AfterFunc(ctx, func() {
		_ = imapClient.Terminate()
	})
	c.logger.Debug("connected to IMAP server", "server", c.config.Server)

	return nil
}

// Select opens the inbox read-only so listing never changes message flags
func (c *Client) Select(ctx context.Context, inbox string) error {
	if c.client == nil {
		return fmt.Errorf("not connected")
	}

	mbox, err := c.client.Select(inbox, true)
	if err != nil {
		return fmt.Errorf("failed to select %s: %w", inbox, err)
	}
	c.uidValidity = mbox.UidValidity

	return nil
}

// ListUnread returns every message without the \Seen flag, ordered by UID
func (c *Client) ListUnread(ctx context.Context) ([]models.UnreadMessage, error) {
	if c.client == nil {
		return nil, fmt.Errorf("not connected")
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid}

	messages := make(chan *imap.Message, 100)
	done := make(chan error, 1)

	go func() {
		done <- c.client.UidFetch(seqSet, items, messages)
	}()

	unread := make([]models.UnreadMessage, 0, len(uids))
	for msg := range messages {
		unread = append(unread, unreadFromMessage(msg, c.uidValidity))
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}

	sort.Slice(unread, func(i, j int) bool { return unread[i].UID < unread[j].UID })
	return unread, nil
}

// Disconnect logs out, falling back to closing the connection
func (c *Client) Disconnect() error {
	if c.stopClose != nil {
		c.stopClose()
		c.stopClose = nil
	}
	imapClient := c.client
	if imapClient == nil {
		return nil
	}
	c.client = nil

	if err := imapClient.Logout(); err != nil {
		c.logger.Debug("logout failed, terminating connection", "error", err)
		_ = imapClient.Terminate()
		return fmt.Errorf("failed to logout: %w", err)
	}

	c.logger.Debug("disconnected from IMAP server")
	return nil
}

// unreadFromMessage converts a fetched message into the fields the scanner needs
func unreadFromMessage(msg *imap.Message, uidValidity uint32) models.UnreadMessage {
	unread := models.UnreadMessage{
		UID:         msg.Uid,
		UIDValidity: uidValidity,
	}

	if msg.Envelope != nil {
		unread.MessageID = msg.Envelope.MessageId
		if len(msg.Envelope.From) > 0 && msg.Envelope.From[0] != nil {
			from := msg.Envelope.From[0]
			unread.SenderMailbox = from.MailboxName
			unread.SenderHost = from.HostName
		}
	}

	return unread
}

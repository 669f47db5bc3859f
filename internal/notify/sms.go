package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the part of the Twilio API used to send SMS
type messageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// SMSConfig holds Twilio credentials and phone numbers
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	To         string
	From       string
}

// SMSSender sends notifications as SMS through Twilio
type SMSSender struct {
	api    messageCreator
	to     string
	from   string
	logger *slog.Logger
}

// NewSMSSender creates a Twilio SMS sender
func NewSMSSender(cfg SMSConfig, logger *slog.Logger) (*SMSSender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("twilio account sid and auth token are required")
	}
	if cfg.To == "" || cfg.From == "" {
		return nil, errors.New("twilio to and from numbers are required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &SMSSender{
		api:    client.Api,
		to:     cfg.To,
		from:   cfg.From,
		logger: logger.With("component", "notify", "transport", "sms"),
	}, nil
}

// Send sends body to the configured number and returns the message SID
func (s *SMSSender) Send(ctx context.Context, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(s.to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to send sms: %w", err)
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	s.logger.Info("sms sent", "sid", sid, "to", s.to, "length", len(body))

	return sid, nil
}

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-telegram/bot"
)

// TelegramSender sends notifications to a Telegram chat
type TelegramSender struct {
	bot    *bot.Bot
	chatID int64
	logger *slog.Logger
}

// TelegramConfig dependencies for creating a Telegram sender
type TelegramConfig struct {
	Token  string
	ChatID int64
}

// NewTelegramSender creates a new Telegram sender
func NewTelegramSender(cfg TelegramConfig, logger *slog.Logger) (*TelegramSender, error) {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, errors.New("telegram token and chat id are required")
	}

	// Sending only: skip the getMe round trip and never poll for updates
	tgBot, err := bot.New(cfg.Token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramSender{
		bot:    tgBot,
		chatID: cfg.ChatID,
		logger: logger.With("component", "notify", "transport", "telegram"),
	}, nil
}

// Send sends body as a plain text message and returns the Telegram message id
func (s *TelegramSender) Send(ctx context.Context, body string) (string, error) {
	msg, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: s.chatID,
		Text:   body,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send telegram message: %w", err)
	}

	id := strconv.Itoa(msg.ID)
	s.logger.Info("telegram message sent", "chat_id", s.chatID, "message_id", id)
	return id, nil
}

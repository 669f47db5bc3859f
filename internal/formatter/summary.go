package formatter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mixelka/mailpager/pkg/models"
)

// Message size limits of the supported transports
const (
	SMSMaxLength      = 1600 // Twilio concatenated SMS
	TelegramMaxLength = 4096
)

// SummaryFormatter builds the notification text
type SummaryFormatter struct {
	maxLength int
}

// NewSummaryFormatter creates a formatter. maxLength <= 0 means no limit.
func NewSummaryFormatter(maxLength int) *SummaryFormatter {
	return &SummaryFormatter{maxLength: maxLength}
}

// Format renders the summary:
//
//	{sum} new message!
//
//	{label} has {n} unread emails
//	...
//	{k} important emails
func (f *SummaryFormatter) Format(accounts []*models.Account, senders models.SenderCounts, contacts models.ContactSet) string {
	sum := 0
	lines := make([]string, 0, len(accounts))
	for _, a := range accounts {
		sum += a.UnreadTotal
		lines = append(lines, fmt.Sprintf("%s has %d unread emails\n", a.Distinction, a.UnreadTotal))
	}

	header := fmt.Sprintf("%d new message!\n\n", sum)
	footer := fmt.Sprintf("%d important emails", senders.ImportantTotal(contacts))

	return f.fit(header, lines, footer)
}

// fit drops account lines from the end until the message fits
func (f *SummaryFormatter) fit(header string, lines []string, footer string) string {
	var sb strings.Builder
	build := func(kept int) string {
		sb.Reset()
		sb.WriteString(header)
		for _, line := range lines[:kept] {
			sb.WriteString(line)
		}
		if dropped := len(lines) - kept; dropped > 0 {
			fmt.Fprintf(&sb, "...and %d more accounts\n", dropped)
		}
		sb.WriteString(footer)
		return sb.String()
	}

	text := build(len(lines))
	if f.maxLength <= 0 || utf8.RuneCountInString(text) <= f.maxLength {
		return text
	}

	for kept := len(lines) - 1; kept >= 0; kept-- {
		text = build(kept)
		if utf8.RuneCountInString(text) <= f.maxLength {
			return text
		}
	}

	return f.truncate(text, f.maxLength)
}

// truncate truncates text to maxLen characters
func (f *SummaryFormatter) truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

package watch

import (
	"github.com/mixelka/mailpager/internal/config"
	"github.com/mixelka/mailpager/pkg/models"
)

// ShouldNotify reports whether an important contact has unread mail or any
// account is strictly over the unread threshold.
func ShouldNotify(accounts []*models.Account, senders models.SenderCounts, settings *config.Settings) bool {
	for sender, n := range senders {
		if n > 0 && settings.IsImportant(sender) {
			return true
		}
	}

	for _, a := range accounts {
		if a.UnreadTotal > settings.MaxUnreadEmails {
			return true
		}
	}

	return false
}

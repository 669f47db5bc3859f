package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mixelka/mailpager/pkg/models"
)

// Settings is the notification configuration read from the settings file
type Settings struct {
	AccountSID        string   `mapstructure:"account_sid"`
	AuthToken         string   `mapstructure:"auth_token"`
	ToPhone           string   `mapstructure:"to_phone"`
	FromPhone         string   `mapstructure:"from_phone"`
	ImportantContacts []string `mapstructure:"important_contacts"`
	MaxUnreadEmails   int      `mapstructure:"max_unread_emails"`

	contacts models.ContactSet
}

// LoadSettings reads the settings file. MAILPAGER_<KEY> environment variables override file values.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: settings file path is empty", ErrInvalid)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("MAILPAGER")
	v.AutomaticEnv()
	for _, key := range []string{"account_sid", "auth_token", "to_phone", "from_phone", "important_contacts", "max_unread_emails"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("%w: bind %s: %w", ErrInvalid, key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read settings file %s: %w", ErrInvalid, path, err)
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("%w: parse settings file %s: %w", ErrInvalid, path, err)
	}
	s.contacts = models.NewContactSet(s.ImportantContacts)

	return s, nil
}

// Validate checks the settings. Transport credentials are only required by the twilio notifier.
func (s *Settings) Validate(notifier string) error {
	var errs []error
	if s.MaxUnreadEmails < 0 {
		errs = append(errs, fmt.Errorf("max_unread_emails must not be negative, got %d", s.MaxUnreadEmails))
	}
	if notifier == NotifierTwilio {
		if s.AccountSID == "" || s.AuthToken == "" {
			errs = append(errs, errors.New("account_sid and auth_token are required"))
		}
		if s.ToPhone == "" || s.FromPhone == "" {
			errs = append(errs, errors.New("to_phone and from_phone are required"))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Contacts returns the important contacts as a set
func (s *Settings) Contacts() models.ContactSet {
	if s.contacts == nil {
		s.contacts = models.NewContactSet(s.ImportantContacts)
	}
	return s.contacts
}

// IsImportant reports whether addr is an important contact
func (s *Settings) IsImportant(addr string) bool {
	return s.Contacts().Contains(addr)
}

// Package store loads and saves account records between runs.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.yaml.in/yaml/v3"

	"github.com/mixelka/mailpager/pkg/models"
)

// Errors returned by Load for state that is missing or cannot be parsed
var (
	ErrNotFound  = errors.New("account state not found")
	ErrMalformed = errors.New("malformed account state")
)

// Store is a persistence backend for account records
type Store interface {
	Load(ctx context.Context) ([]*models.Account, error)
	Save(ctx context.Context, accounts []*models.Account) error
	Close() error
}

// decodeAccounts parses a YAML sequence of account mappings
func decodeAccounts(data []byte) ([]*models.Account, error) {
	var accounts []*models.Account
	if err := yaml.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	for i, a := range accounts {
		if a == nil {
			return nil, fmt.Errorf("%w: entry %d is empty", ErrMalformed, i)
		}
	}
	return accounts, nil
}

// encodeAccounts renders accounts with the same schema decodeAccounts reads
func encodeAccounts(accounts []*models.Account) ([]byte, error) {
	if accounts == nil {
		accounts = []*models.Account{}
	}
	data, err := yaml.Marshal(accounts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode accounts: %w", err)
	}
	return data, nil
}

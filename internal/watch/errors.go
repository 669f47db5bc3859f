package watch

import (
	"errors"
	"fmt"
)

// Failure classes reported by a run
var (
	ErrMailbox = errors.New("mailbox connection failed")
	ErrNotify  = errors.New("notification failed")
	ErrPersist = errors.New("failed to persist account state")
)

// AccountError is a failure scoped to one account
type AccountError struct {
	Account string
	Err     error
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("account %s: %v", e.Account, e.Err)
}

func (e *AccountError) Unwrap() error {
	return e.Err
}

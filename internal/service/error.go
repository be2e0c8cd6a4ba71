package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func NewServiceError(code string, cause error) error {
	return Error{
		Code:  code,
		Cause: cause,
	}
}

type Error struct {
	Code  string
	Cause error
}

func (e Error) Error() string {
	return e.Cause.Error()
}

func (e Error) Unwrap() error {
	return e.Cause
}

// InsufficientBalanceError rejects a consumption that exceeds the available
// balance. Nothing is written when it is returned.
type InsufficientBalanceError struct {
	Available int64
	Requested int64
}

func (e InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %d, requested %d", e.Available, e.Requested)
}

// DataIntegrityError reports a divergence between the cached balance and the
// value refolded from the ledger.
type DataIntegrityError struct {
	UserID   string
	Cached   int64
	Computed int64
}

func (e DataIntegrityError) Error() string {
	return fmt.Sprintf("balance cache diverged for user %s: cached %d, ledger %d", e.UserID, e.Cached, e.Computed)
}

package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")
	ErrInvalidState     = errors.New("invalid state")

	ErrOperationClosed   = fmt.Errorf("%w: operation closed", ErrInvalidState)
	ErrNoActiveOperation = fmt.Errorf("%w: no active operation", ErrInvalidInput)
)

// translateStoreError maps gorm errors onto the service sentinels. what names
// the entity for the error message.
func translateStoreError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	default:
		return err
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

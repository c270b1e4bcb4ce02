package service

import (
	"fmt"

	"dispatch-service/internal/model"
)

// ensureMutable must be the first check of every write touching an
// operation, one of its assignments or one of its journal entries.
func ensureMutable(operation *model.Operation) error {
	if operation == nil {
		return fmt.Errorf("%w: operation", ErrNotFound)
	}
	if !operation.IsMutable() {
		return fmt.Errorf("%w: %s", ErrOperationClosed, operation.Number)
	}
	return nil
}

func ensureWriter(principal model.Principal) error {
	if !principal.CanWrite() {
		return ErrPermissionDenied
	}
	return nil
}

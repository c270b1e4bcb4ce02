package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"dispatch-service/internal/model"
	"dispatch-service/internal/repository"
)

// activeOperation follows the active-operation pointer. It returns nil when
// nothing is active.
func activeOperation(ctx context.Context, store *repository.Store) (*model.Operation, error) {
	id, err := store.Operations().ActiveID(ctx)
	if err != nil || id == nil {
		return nil, err
	}
	operation, err := store.Operations().GetByID(ctx, *id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !operation.IsMutable() {
		return nil, nil
	}
	return operation, nil
}

// lockTargetOperation locks the explicit operation, or the active one when
// operationID is nil.
func lockTargetOperation(ctx context.Context, tx *repository.Store, operationID *uuid.UUID) (*model.Operation, error) {
	if operationID == nil {
		active, err := activeOperation(ctx, tx)
		if err != nil {
			return nil, err
		}
		if active == nil {
			return nil, ErrNoActiveOperation
		}
		operationID = &active.ID
	}
	operation, err := tx.Operations().GetForUpdate(ctx, *operationID)
	if err != nil {
		return nil, translateStoreError(err, "operation")
	}
	return operation, nil
}

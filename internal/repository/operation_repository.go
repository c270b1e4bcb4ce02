package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"dispatch-service/internal/model"
)

type OperationRepository struct {
	db *gorm.DB
}

func NewOperationRepository(db *gorm.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

func (r *OperationRepository) Create(ctx context.Context, operation *model.Operation) error {
	return r.db.WithContext(ctx).Create(operation).Error
}

func (r *OperationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Operation, error) {
	var operation model.Operation
	if err := r.db.WithContext(ctx).First(&operation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &operation, nil
}

// GetForUpdate loads the operation and holds a row lock until the transaction ends.
func (r *OperationRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Operation, error) {
	var operation model.Operation
	if err := r.db.WithContext(ctx).
		Clauses(forUpdate()).
		First(&operation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &operation, nil
}

// GetForShare blocks a concurrent Close until the transaction ends while
// letting other writers of the same operation proceed.
func (r *OperationRepository) GetForShare(ctx context.Context, id uuid.UUID) (*model.Operation, error) {
	var operation model.Operation
	if err := r.db.WithContext(ctx).
		Clauses(forShare()).
		First(&operation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &operation, nil
}

func (r *OperationRepository) GetByNumber(ctx context.Context, number string) (*model.Operation, error) {
	var operation model.Operation
	if err := r.db.WithContext(ctx).First(&operation, "number = ?", number).Error; err != nil {
		return nil, err
	}
	return &operation, nil
}

func (r *OperationRepository) List(ctx context.Context) ([]model.Operation, error) {
	var operations []model.Operation
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("number DESC").
		Find(&operations).Error; err != nil {
		return nil, err
	}
	return operations, nil
}

// NumbersWithPrefix returns every operation number starting with prefix.
func (r *OperationRepository) NumbersWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var numbers []string
	if err := r.db.WithContext(ctx).
		Model(&model.Operation{}).
		Where("number LIKE ?", prefix+"%").
		Pluck("number", &numbers).Error; err != nil {
		return nil, err
	}
	return numbers, nil
}

func (r *OperationRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Operation{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// LockActive returns the active-operation pointer row, locked for the rest of
// the transaction. The row is created on first use.
func (r *OperationRepository) LockActive(ctx context.Context) (*model.ActiveOperation, error) {
	var pointer model.ActiveOperation
	err := r.db.WithContext(ctx).
		Clauses(forUpdate()).
		Take(&pointer, "id = ?", model.ActiveOperationRowID).Error
	if err == nil {
		return &pointer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	pointer = model.ActiveOperation{ID: model.ActiveOperationRowID}
	if err := r.db.WithContext(ctx).Create(&pointer).Error; err != nil {
		return nil, err
	}
	return &pointer, nil
}

func (r *OperationRepository) SetActive(ctx context.Context, operationID *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.ActiveOperation{}).
		Where("id = ?", model.ActiveOperationRowID).
		Update("operation_id", operationID).Error
}

// ActiveID reads the pointer without locking. It returns nil when no
// operation is active.
func (r *OperationRepository) ActiveID(ctx context.Context) (*uuid.UUID, error) {
	var pointer model.ActiveOperation
	err := r.db.WithContext(ctx).Take(&pointer, "id = ?", model.ActiveOperationRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pointer.OperationID, nil
}

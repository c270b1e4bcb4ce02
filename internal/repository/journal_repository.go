package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"dispatch-service/internal/model"
)

type JournalFilter struct {
	OperationID  *uuid.UUID
	AssignmentID *uuid.UUID
	EntryType    string
}

type JournalRepository struct {
	db *gorm.DB
}

func NewJournalRepository(db *gorm.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

func (r *JournalRepository) Create(ctx context.Context, entry *model.JournalEntry) error {
	return r.db.WithContext(ctx).Omit("Operation", "Assignment").Create(entry).Error
}

func (r *JournalRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.JournalEntry, error) {
	var entry model.JournalEntry
	if err := r.db.WithContext(ctx).
		Preload("Operation").
		Preload("Assignment").
		First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns entries in chronological order. Empty filter fields are ignored.
func (r *JournalRepository) List(ctx context.Context, filter JournalFilter) ([]model.JournalEntry, error) {
	query := r.db.WithContext(ctx).Model(&model.JournalEntry{}).Preload("Assignment")
	if filter.OperationID != nil {
		query = query.Where("operation_id = ?", *filter.OperationID)
	}
	if filter.AssignmentID != nil {
		query = query.Where("assignment_id = ?", *filter.AssignmentID)
	}
	if filter.EntryType != "" {
		query = query.Where("entry_type = ?", filter.EntryType)
	}

	var entries []model.JournalEntry
	if err := query.
		Order("timestamp ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *JournalRepository) CountByOperation(ctx context.Context, operationID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.JournalEntry{}).
		Where("operation_id = ?", operationID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *JournalRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.JournalEntry{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *JournalRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&model.JournalEntry{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"dispatch-service/internal/model"
)

type SequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Next increments the counter for scope and returns the new value. A missing
// counter starts at seed()+1. Must run inside a transaction: the scope row
// stays locked until commit.
func (r *SequenceRepository) Next(ctx context.Context, scope string, seed func() (int, error)) (int, error) {
	var seq model.NumberSequence
	err := r.db.WithContext(ctx).
		Clauses(forUpdate()).
		Take(&seq, "scope = ?", scope).Error
	switch {
	case err == nil:
		seq.Value++
		if err := r.db.WithContext(ctx).
			Model(&model.NumberSequence{}).
			Where("scope = ?", scope).
			Update("value", seq.Value).Error; err != nil {
			return 0, err
		}
		return seq.Value, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		start := 0
		if seed != nil {
			start, err = seed()
			if err != nil {
				return 0, err
			}
		}
		seq = model.NumberSequence{Scope: scope, Value: start + 1}
		if err := r.db.WithContext(ctx).Create(&seq).Error; err != nil {
			return 0, err
		}
		return seq.Value, nil
	default:
		return 0, err
	}
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dispatch-service/internal/metrics"
	"dispatch-service/internal/model"
	"dispatch-service/internal/numbering"
	"dispatch-service/internal/repository"
)

type OperationService struct {
	store   *repository.Store
	journal *JournalService
	now     func() time.Time
}

func NewOperationService(store *repository.Store, journal *JournalService) *OperationService {
	return &OperationService{
		store:   store,
		journal: journal,
		now:     time.Now,
	}
}

type CreateOperationInput struct {
	Title       string
	Description string
}

// Create opens a new operation and makes it the active one. It fails with
// ErrConflict while another operation is still active.
func (s *OperationService) Create(ctx context.Context, principal model.Principal, input CreateOperationInput) (*model.Operation, error) {
	if err := ensureWriter(principal); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	var operation *model.Operation
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		pointer, err := tx.Operations().LockActive(ctx)
		if err != nil {
			return err
		}
		if pointer.OperationID != nil {
			current, err := tx.Operations().GetByID(ctx, *pointer.OperationID)
			if err != nil {
				if err := translateStoreError(err, "operation"); !isNotFound(err) {
					return err
				}
			} else if current.IsMutable() {
				return fmt.Errorf("%w: operation %s is still active", ErrConflict, current.Number)
			}
		}

		now := s.now().UTC()
		year := now.Year()
		seq, err := tx.Sequences().Next(ctx, numbering.OperationScope(year), func() (int, error) {
			numbers, err := tx.Operations().NumbersWithPrefix(ctx, numbering.OperationPrefix(year))
			if err != nil {
				return 0, err
			}
			return numbering.MaxSuffix(numbers), nil
		})
		if err != nil {
			return err
		}

		operation = &model.Operation{
			Number:      numbering.OperationNumber(year, seq),
			Title:       title,
			Description: strings.TrimSpace(input.Description),
			Status:      model.OperationStatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Operations().Create(ctx, operation); err != nil {
			return translateStoreError(err, "operation number")
		}
		if err := tx.Operations().SetActive(ctx, &operation.ID); err != nil {
			return err
		}

		_, err = s.journal.record(ctx, tx, journalRecord{
			OperationID: operation.ID,
			AuthorID:    principal.Author(),
			EntryType:   model.EntryTypeStatusChange,
			Content:     fmt.Sprintf("Einsatzlage \"%s\" erstellt", operation.Title),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.IncOperationEvent(metrics.OperationCreated)
	metrics.IncJournalEntry(model.EntryTypeStatusChange)
	return operation, nil
}

type UpdateOperationInput struct {
	Title       *string
	Description *string
}

func (s *OperationService) Update(ctx context.Context, principal model.Principal, id uuid.UUID, input UpdateOperationInput) (*model.Operation, error) {
	if err := ensureWriter(principal); err != nil {
		return nil, err
	}
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		operation, err := tx.Operations().GetForUpdate(ctx, id)
		if err != nil {
			return translateStoreError(err, "operation")
		}
		if err := ensureMutable(operation); err != nil {
			return err
		}

		fields := map[string]interface{}{}
		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" {
				return fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
			}
			fields["title"] = title
		}
		if input.Description != nil {
			fields["description"] = strings.TrimSpace(*input.Description)
		}
		if len(fields) == 0 {
			return nil
		}
		fields["updated_at"] = s.now().UTC()
		return tx.Operations().Update(ctx, id, fields)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Close moves the operation to its terminal state and clears the active pointer.
func (s *OperationService) Close(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Operation, error) {
	if err := ensureWriter(principal); err != nil {
		return nil, err
	}
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		pointer, err := tx.Operations().LockActive(ctx)
		if err != nil {
			return err
		}
		operation, err := tx.Operations().GetForUpdate(ctx, id)
		if err != nil {
			return translateStoreError(err, "operation")
		}
		if err := ensureMutable(operation); err != nil {
			return err
		}

		now := s.now().UTC()
		if err := tx.Operations().Update(ctx, id, map[string]interface{}{
			"status":     model.OperationStatusClosed,
			"closed_at":  now,
			"updated_at": now,
		}); err != nil {
			return err
		}
		if pointer.OperationID != nil && *pointer.OperationID == id {
			if err := tx.Operations().SetActive(ctx, nil); err != nil {
				return err
			}
		}

		_, err = s.journal.record(ctx, tx, journalRecord{
			OperationID: id,
			AuthorID:    principal.Author(),
			EntryType:   model.EntryTypeStatusChange,
			Content:     "Einsatzlage geschlossen",
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.IncOperationEvent(metrics.OperationClosed)
	metrics.IncJournalEntry(model.EntryTypeStatusChange)
	return s.Get(ctx, id)
}

func (s *OperationService) Get(ctx context.Context, id uuid.UUID) (*model.Operation, error) {
	operation, err := s.store.Operations().GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "operation")
	}
	return operation, nil
}

func (s *OperationService) GetByNumber(ctx context.Context, number string) (*model.Operation, error) {
	operation, err := s.store.Operations().GetByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return nil, translateStoreError(err, "operation")
	}
	return operation, nil
}

func (s *OperationService) List(ctx context.Context) ([]model.Operation, error) {
	return s.store.Operations().List(ctx)
}

// Active returns nil, nil when no operation is active.
func (s *OperationService) Active(ctx context.Context) (*model.Operation, error) {
	return activeOperation(ctx, s.store)
}

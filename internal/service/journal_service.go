package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dispatch-service/internal/export"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/model"
	"dispatch-service/internal/repository"
)

type JournalService struct {
	store *repository.Store
	now   func() time.Time
}

func NewJournalService(store *repository.Store) *JournalService {
	return &JournalService{store: store, now: time.Now}
}

type journalRecord struct {
	OperationID  uuid.UUID
	AssignmentID *uuid.UUID
	AuthorID     *uuid.UUID
	EntryType    string
	Content      string
}

// record appends an entry inside the caller's transaction. The caller has
// already run the closed-operation check.
func (s *JournalService) record(ctx context.Context, tx *repository.Store, rec journalRecord) (*model.JournalEntry, error) {
	if strings.TrimSpace(rec.Content) == "" {
		return nil, fmt.Errorf("%w: journal content is required", ErrInvalidInput)
	}
	entry := &model.JournalEntry{
		OperationID:  rec.OperationID,
		AssignmentID: rec.AssignmentID,
		AuthorID:     rec.AuthorID,
		Timestamp:    s.now().UTC(),
		EntryType:    rec.EntryType,
		Content:      rec.Content,
	}
	if err := tx.Journal().Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

type AppendJournalInput struct {
	OperationID  *uuid.UUID
	AssignmentID *uuid.UUID
	EntryType    string
	Content      string
}

// Append writes a manual entry. Without an explicit operation the entry goes
// to the active operation.
func (s *JournalService) Append(ctx context.Context, principal model.Principal, input AppendJournalInput) (*model.JournalEntryView, error) {
	if err := ensureWriter(principal); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	entryType := strings.TrimSpace(input.EntryType)
	if entryType == "" {
		entryType = model.EntryTypeNote
	}

	var entryID uuid.UUID
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		operation, err := lockTargetOperation(ctx, tx, input.OperationID)
		if err != nil {
			return err
		}
		if err := ensureMutable(operation); err != nil {
			return err
		}

		if input.AssignmentID != nil {
			assignment, err := tx.Assignments().GetByID(ctx, *input.AssignmentID)
			if err != nil {
				return translateStoreError(err, "assignment")
			}
			if assignment.OperationID != operation.ID {
				return fmt.Errorf("%w: assignment %s does not belong to operation %s", ErrInvalidInput, assignment.Number, operation.Number)
			}
		}

		entry, err := s.record(ctx, tx, journalRecord{
			OperationID:  operation.ID,
			AssignmentID: input.AssignmentID,
			AuthorID:     principal.Author(),
			EntryType:    entryType,
			Content:      content,
		})
		if err != nil {
			return err
		}
		entryID = entry.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncJournalEntry(entryTypeLabel(entryType))
	return s.Get(ctx, entryID)
}

type UpdateJournalInput struct {
	EntryType *string
	Content   *string
}

func (s *JournalService) Update(ctx context.Context, principal model.Principal, id uuid.UUID, input UpdateJournalInput) (*model.JournalEntryView, error) {
	if err := ensureWriter(principal); err != nil {
		return nil, err
	}
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		entry, err := tx.Journal().GetByID(ctx, id)
		if err != nil {
			return translateStoreError(err, "journal entry")
		}
		operation, err := tx.Operations().GetForShare(ctx, entry.OperationID)
		if err != nil {
			return translateStoreError(err, "operation")
		}
		if err := ensureMutable(operation); err != nil {
			return err
		}

		fields := map[string]interface{}{}
		if input.Content != nil {
			content := strings.TrimSpace(*input.Content)
			if content == "" {
				return fmt.Errorf("%w: content must not be empty", ErrInvalidInput)
			}
			fields["content"] = content
		}
		if input.EntryType != nil {
			fields["entry_type"] = strings.TrimSpace(*input.EntryType)
		}
		if len(fields) == 0 {
			return nil
		}
		return tx.Journal().Update(ctx, id, fields)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *JournalService) Delete(ctx context.Context, principal model.Principal, id uuid.UUID) error {
	if err := ensureWriter(principal); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(tx *repository.Store) error {
		entry, err := tx.Journal().GetByID(ctx, id)
		if err != nil {
			return translateStoreError(err, "journal entry")
		}
		operation, err := tx.Operations().GetForShare(ctx, entry.OperationID)
		if err != nil {
			return translateStoreError(err, "operation")
		}
		if err := ensureMutable(operation); err != nil {
			return err
		}
		return translateStoreError(tx.Journal().Delete(ctx, id), "journal entry")
	})
}

func (s *JournalService) Get(ctx context.Context, id uuid.UUID) (*model.JournalEntryView, error) {
	entry, err := s.store.Journal().GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "journal entry")
	}
	view := model.NewJournalEntryView(*entry)
	return &view, nil
}

type JournalListOptions struct {
	OperationID  *uuid.UUID
	AssignmentID *uuid.UUID
	EntryType    string
}

// List scopes by operation, else by assignment, else by the active
// operation. With no scope and no active operation the result is empty.
func (s *JournalService) List(ctx context.Context, opts JournalListOptions) ([]model.JournalEntryView, error) {
	filter := repository.JournalFilter{EntryType: strings.TrimSpace(opts.EntryType)}
	switch {
	case opts.OperationID != nil:
		filter.OperationID = opts.OperationID
	case opts.AssignmentID != nil:
		filter.AssignmentID = opts.AssignmentID
	default:
		active, err := activeOperation(ctx, s.store)
		if err != nil {
			return nil, err
		}
		if active == nil {
			return []model.JournalEntryView{}, nil
		}
		filter.OperationID = &active.ID
	}

	entries, err := s.store.Journal().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]model.JournalEntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, model.NewJournalEntryView(entry))
	}
	return views, nil
}

// Export renders the full journal of one operation. Reading is allowed for
// closed operations.
func (s *JournalService) Export(ctx context.Context, operationID uuid.UUID, format string) ([]byte, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if export.ContentType(format) == "" {
		return nil, fmt.Errorf("%w: unsupported export format %q", ErrInvalidInput, format)
	}

	operation, err := s.store.Operations().GetByID(ctx, operationID)
	if err != nil {
		return nil, translateStoreError(err, "operation")
	}
	entries, err := s.List(ctx, JournalListOptions{OperationID: &operation.ID})
	if err != nil {
		return nil, err
	}

	var data []byte
	switch format {
	case export.FormatPDF:
		data, err = export.BuildJournalPDF(operation, entries)
	case export.FormatXLSX:
		data, err = export.BuildJournalXLSX(operation, entries)
	}
	if err != nil {
		metrics.IncJournalExport(format, "error")
		return nil, fmt.Errorf("render %s journal: %w", format, err)
	}
	metrics.IncJournalExport(format, "success")
	return data, nil
}

// ExportByNumber resolves the operation by its public number first.
func (s *JournalService) ExportByNumber(ctx context.Context, number, format string) ([]byte, error) {
	operation, err := s.store.Operations().GetByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return nil, translateStoreError(err, "operation")
	}
	return s.Export(ctx, operation.ID, format)
}

// entryTypeLabel keeps the metric label set closed; manual entries may carry
// any free-text type.
func entryTypeLabel(entryType string) string {
	if model.KnownEntryType(entryType) {
		return entryType
	}
	return "other"
}

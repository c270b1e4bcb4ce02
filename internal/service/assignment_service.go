package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dispatch-service/internal/geocode"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/model"
	"dispatch-service/internal/numbering"
	"dispatch-service/internal/repository"
	"dispatch-service/internal/storage"
)

const documentExtension = ".pdf"

type AssignmentService struct {
	store    *repository.Store
	journal  *JournalService
	geocoder geocode.Geocoder
	files    storage.FileStore
	log      zerolog.Logger
	now      func() time.Time
}

func NewAssignmentService(
	store *repository.Store,
	journal *JournalService,
	geocoder geocode.Geocoder,
	files storage.FileStore,
	log zerolog.Logger,
) *AssignmentService {
	return &AssignmentService{
		store:    store,
		journal:  journal,
		geocoder: geocoder,
		files:    files,
		log:      log,
		now:      time.Now,
	}
}

type CreateAssignmentInput struct {
	OperationID     *uuid.UUID
	Title           string
	Description     string
	LocationAddress string
	Latitude        *float64
	Longitude       *float64
}

// Create adds an Open assignment to the given operation, or to the active one
// when OperationID is nil. Explicit coordinates win over geocoding.
func (s *AssignmentService) Create(ctx context.Context, principal model.Principal, input CreateAssignmentInput) (*model.AssignmentView, error) {
	if err := ensureWriter(principal); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	explicit, err := explicitCoordinates(input.Latitude, input.Longitude)
	if err != nil {
		return nil, err
	}

	// Rechecked under lock inside the transaction.
	if err := s.precheckTarget(ctx, input.OperationID); err != nil {
		return nil, err
	}

	address := strings.TrimSpace(input.LocationAddress)
	lat, lon := input.Latitude, input.Longitude
	if !explicit && address != "" {
		res := geocode.Resolve(ctx, s.geocoder, s.log, address)
		lat, lon = res.Lat(), res.Lon()
	}

	var assignmentID uuid.UUID
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		operation, err := lockTargetOperation(ctx, tx, input.OperationID)
		if err != nil {
			return err
		}
		if err := ensureMutable(operation); err != nil {
			return err
		}

		seq, err := tx.Sequences().Next(ctx, numbering.AssignmentScope(operation.ID.String()), func() (int, error) {
			numbers, err := tx.Assignments().NumbersByOperation(ctx, operation.ID)
			if err != nil {
				return 0, err
			}
			return numbering.MaxSuffix(numbers), nil
		})
		if err != nil {
			return err
		}

		assignment := &model.Assignment{
			OperationID:     operation.ID,
			Number:          numbering.AssignmentNumber(operation.Number, seq),
			Title:           title,
			Description:     strings.TrimSpace(input.Description),
			LocationAddress: address,
			Latitude:        lat,
			Longitude:       lon,
			Status:          model.AssignmentStatusOpen,
			CreatedAt:       s.now().UTC(),
		}
		if err := tx.Assignments().Create(ctx, assignment); err != nil {
			return translateStoreError(err, "assignment number")
		}
		assignmentID = assignment.ID

		_, err = s.journal.record(ctx, tx, journalRecord{
			OperationID:  operation.ID,
			AssignmentID: &assignment.ID,
			AuthorID:     principal.Author(),
			EntryType:    model.EntryTypeStatusChange,
			Content:      fmt.Sprintf("Auftrag %s erstellt: %s", assignment.Number, assignment.Title),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.IncAssignmentTransition(string(model.AssignmentStatusOpen))
	metrics.IncJournalEntry(model.EntryTypeStatusChange)
	return s.Get(ctx, assignmentID)
}

type UpdateAssignmentInput struct {
	Title           *string
	Description     *string
	LocationAddress *string
	Latitude        *float64
	Longitude       *float64
}

// Update applies the provided fields. A new address is geocoded unless
// coordinates are part of the same update; a failed lookup keeps the old ones.
func (s *AssignmentService) Update(ctx context.Context, principal model.Principal, id uuid.UUID, input UpdateAssignmentInput) (*model.AssignmentView, error) {
	if err := ensureWriter(principal); err != nil {
		return nil, err
	}
	explicit, err := explicitCoordinates(input.Latitude, input.Longitude)
	if err != nil {
		return nil, err
	}

	current, err := s.store.Assignments().GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "assignment")
	}
	if err := ensureMutable(current.Operation); err != nil {
		return nil, err
	}

	var located geocode.Result
	if input.LocationAddress != nil && !explicit {
		located = geocode.Resolve(ctx, s.geocoder, s.log, *input.LocationAddress)
	}

	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		assignment, err := tx.Assignments().GetForUpdate(ctx, id)
		if err != nil {
			return translateStoreError(err, "assignment")
		}
		if err := ensureMutable(assignment.Operation); err != nil {
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
		if input.LocationAddress != nil {
			fields["location_address"] = strings.TrimSpace(*input.LocationAddress)
		}
		switch {
		case explicit:
			fields["latitude"] = *input.Latitude
			fields["longitude"] = *input.Longitude
		case located.Found:
			fields["latitude"] = *located.Lat()
			fields["longitude"] = *located.Lon()
		}
		if len(fields) == 0 {
			return nil
		}
		return tx.Assignments().Update(ctx, id, fields)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Complete is allowed from Open and Assigned. Completed is terminal.
func (s *AssignmentService) Complete(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.AssignmentView, error) {
	if err := ensureWriter(principal); err != nil {
		return nil, err
	}
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		assignment, err := tx.Assignments().GetForUpdate(ctx, id)
		if err != nil {
			return translateStoreError(err, "assignment")
		}
		if err := ensureMutable(assignment.Operation); err != nil {
			return err
		}
		if assignment.Status == model.AssignmentStatusCompleted {
			return fmt.Errorf("%w: assignment %s is already completed", ErrInvalidState, assignment.Number)
		}

		if err := tx.Assignments().Update(ctx, id, map[string]interface{}{
			"status":       model.AssignmentStatusCompleted,
			"completed_at": s.now().UTC(),
		}); err != nil {
			return err
		}

		_, err = s.journal.record(ctx, tx, journalRecord{
			OperationID:  assignment.OperationID,
			AssignmentID: &assignment.ID,
			AuthorID:     principal.Author(),
			EntryType:    model.EntryTypeStatusChange,
			Content:      fmt.Sprintf("Auftrag %s abgeschlossen", assignment.Number),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.IncAssignmentTransition(string(model.AssignmentStatusCompleted))
	metrics.IncJournalEntry(model.EntryTypeStatusChange)
	return s.Get(ctx, id)
}

// AssignVehicle links the vehicle and gives the link the vehicle's next
// queue order. The vehicle row lock keeps the duplicate check and the order
// computation atomic.
func (s *AssignmentService) AssignVehicle(ctx context.Context, principal model.Principal, id, vehicleID uuid.UUID) (*model.AssignmentView, error) {
	if err := ensureWriter(principal); err != nil {
		return nil, err
	}
	transitioned := false
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		assignment, err := tx.Assignments().GetForUpdate(ctx, id)
		if err != nil {
			return translateStoreError(err, "assignment")
		}
		if err := ensureMutable(assignment.Operation); err != nil {
			return err
		}
		vehicle, err := tx.Vehicles().GetForUpdate(ctx, vehicleID)
		if err != nil {
			return translateStoreError(err, "vehicle")
		}

		existing, err := tx.Assignments().FindLink(ctx, id, vehicleID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: vehicle %s is already assigned to %s", ErrConflict, vehicle.Callsign, assignment.Number)
		}

		maxOrder, err := tx.Assignments().MaxOrderForVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}
		link := &model.VehicleAssignment{
			VehicleID:    vehicleID,
			AssignmentID: id,
			Order:        maxOrder + 1,
			AssignedAt:   s.now().UTC(),
		}
		if err := tx.Assignments().CreateLink(ctx, link); err != nil {
			return translateStoreError(err, "vehicle assignment")
		}

		if assignment.Status == model.AssignmentStatusOpen {
			if err := tx.Assignments().Update(ctx, id, map[string]interface{}{
				"status": model.AssignmentStatusAssigned,
			}); err != nil {
				return err
			}
			transitioned = true
		}

		_, err = s.journal.record(ctx, tx, journalRecord{
			OperationID:  assignment.OperationID,
			AssignmentID: &assignment.ID,
			AuthorID:     principal.Author(),
			EntryType:    model.EntryTypeVehicleAssigned,
			Content:      fmt.Sprintf("Fahrzeug %s zu Auftrag %s zugewiesen", vehicle.Callsign, assignment.Number),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		metrics.IncAssignmentTransition(string(model.AssignmentStatusAssigned))
	}
	metrics.IncJournalEntry(model.EntryTypeVehicleAssigned)
	return s.Get(ctx, id)
}

// UnassignVehicle removes the link. The last removal reverts Assigned to
// Open; a Completed assignment stays Completed.
func (s *AssignmentService) UnassignVehicle(ctx context.Context, principal model.Principal, id, vehicleID uuid.UUID) (*model.AssignmentView, error) {
	if err := ensureWriter(principal); err != nil {
		return nil, err
	}
	transitioned := false
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		assignment, err := tx.Assignments().GetForUpdate(ctx, id)
		if err != nil {
			return translateStoreError(err, "assignment")
		}
		if err := ensureMutable(assignment.Operation); err != nil {
			return err
		}
		vehicle, err := tx.Vehicles().GetForUpdate(ctx, vehicleID)
		if err != nil {
			return translateStoreError(err, "vehicle")
		}

		link, err := tx.Assignments().FindLink(ctx, id, vehicleID)
		if err != nil {
			return err
		}
		if link == nil {
			return fmt.Errorf("%w: vehicle %s is not assigned to %s", ErrNotFound, vehicle.Callsign, assignment.Number)
		}
		if err := tx.Assignments().DeleteLink(ctx, link.ID); err != nil {
			return err
		}

		remaining, err := tx.Assignments().CountLinks(ctx, id)
		if err != nil {
			return err
		}
		if remaining == 0 && assignment.Status == model.AssignmentStatusAssigned {
			if err := tx.Assignments().Update(ctx, id, map[string]interface{}{
				"status": model.AssignmentStatusOpen,
			}); err != nil {
				return err
			}
			transitioned = true
		}

		_, err = s.journal.record(ctx, tx, journalRecord{
			OperationID:  assignment.OperationID,
			AssignmentID: &assignment.ID,
			AuthorID:     principal.Author(),
			EntryType:    model.EntryTypeVehicleUnassigned,
			Content:      fmt.Sprintf("Fahrzeug %s von Auftrag %s entfernt", vehicle.Callsign, assignment.Number),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		metrics.IncAssignmentTransition(string(model.AssignmentStatusOpen))
	}
	metrics.IncJournalEntry(model.EntryTypeVehicleUnassigned)
	return s.Get(ctx, id)
}

// AttachDocument stores a PDF as "<number>_<filename>" and records its path.
// It neither changes status nor writes a journal entry.
func (s *AssignmentService) AttachDocument(ctx context.Context, principal model.Principal, id uuid.UUID, filename string, content io.Reader) (*model.AssignmentView, error) {
	if err := ensureWriter(principal); err != nil {
		return nil, err
	}
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "." || base == "" || base == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	if !strings.EqualFold(filepath.Ext(base), documentExtension) {
		return nil, fmt.Errorf("%w: only %s documents are accepted", ErrInvalidInput, documentExtension)
	}
	if s.files == nil {
		return nil, fmt.Errorf("file store is not configured")
	}

	assignment, err := s.store.Assignments().GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "assignment")
	}
	if err := ensureMutable(assignment.Operation); err != nil {
		return nil, err
	}

	path, err := s.files.Save(ctx, fmt.Sprintf("%s_%s", assignment.Number, base), content)
	if err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		locked, err := tx.Assignments().GetForUpdate(ctx, id)
		if err != nil {
			return translateStoreError(err, "assignment")
		}
		if err := ensureMutable(locked.Operation); err != nil {
			return err
		}
		return tx.Assignments().Update(ctx, id, map[string]interface{}{"document_path": path})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// OpenDocument returns the stored document and its file name. The caller
// closes the reader.
func (s *AssignmentService) OpenDocument(ctx context.Context, id uuid.UUID) (io.ReadCloser, string, error) {
	assignment, err := s.store.Assignments().GetByID(ctx, id)
	if err != nil {
		return nil, "", translateStoreError(err, "assignment")
	}
	if assignment.DocumentPath == nil || *assignment.DocumentPath == "" {
		return nil, "", fmt.Errorf("%w: assignment %s has no document", ErrNotFound, assignment.Number)
	}
	if s.files == nil {
		return nil, "", fmt.Errorf("file store is not configured")
	}
	rc, err := s.files.Open(ctx, *assignment.DocumentPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: document %s", ErrNotFound, *assignment.DocumentPath)
		}
		return nil, "", err
	}
	return rc, *assignment.DocumentPath, nil
}

func (s *AssignmentService) Get(ctx context.Context, id uuid.UUID) (*model.AssignmentView, error) {
	assignment, err := s.store.Assignments().GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "assignment")
	}
	view := model.NewAssignmentView(*assignment)
	return &view, nil
}

// List returns the assignments of one operation, or of the active operation
// when operationID is nil. No active operation yields an empty list.
func (s *AssignmentService) List(ctx context.Context, operationID *uuid.UUID) ([]model.AssignmentView, error) {
	if operationID == nil {
		active, err := activeOperation(ctx, s.store)
		if err != nil {
			return nil, err
		}
		if active == nil {
			return []model.AssignmentView{}, nil
		}
		operationID = &active.ID
	}

	assignments, err := s.store.Assignments().ListByOperation(ctx, *operationID)
	if err != nil {
		return nil, err
	}
	views := make([]model.AssignmentView, 0, len(assignments))
	for _, a := range assignments {
		views = append(views, model.NewAssignmentView(a))
	}
	return views, nil
}

func (s *AssignmentService) precheckTarget(ctx context.Context, operationID *uuid.UUID) error {
	if operationID == nil {
		active, err := activeOperation(ctx, s.store)
		if err != nil {
			return err
		}
		if active == nil {
			return ErrNoActiveOperation
		}
		return nil
	}
	operation, err := s.store.Operations().GetByID(ctx, *operationID)
	if err != nil {
		return translateStoreError(err, "operation")
	}
	return ensureMutable(operation)
}

// explicitCoordinates reports whether a full coordinate pair was supplied.
func explicitCoordinates(lat, lon *float64) (bool, error) {
	switch {
	case lat == nil && lon == nil:
		return false, nil
	case lat == nil || lon == nil:
		return false, fmt.Errorf("%w: latitude and longitude must be given together", ErrInvalidInput)
	case *lat < -90 || *lat > 90:
		return false, fmt.Errorf("%w: latitude out of range", ErrInvalidInput)
	case *lon < -180 || *lon > 180:
		return false, fmt.Errorf("%w: longitude out of range", ErrInvalidInput)
	default:
		return true, nil
	}
}

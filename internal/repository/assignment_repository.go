package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"dispatch-service/internal/model"
)

type AssignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) Create(ctx context.Context, assignment *model.Assignment) error {
	return r.db.WithContext(ctx).Omit("Operation", "Vehicles").Create(assignment).Error
}

// GetByID loads the assignment with its owning operation and vehicle links.
func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	var assignment model.Assignment
	if err := r.withRelations(r.db.WithContext(ctx)).
		First(&assignment, "assignments.id = ?", id).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

// GetForUpdate locks the assignment row and share-locks its owning operation.
func (r *AssignmentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	var assignment model.Assignment
	if err := r.db.WithContext(ctx).
		Clauses(forUpdate()).
		First(&assignment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	operation, err := NewOperationRepository(r.db).GetForShare(ctx, assignment.OperationID)
	if err != nil {
		return nil, err
	}
	assignment.Operation = operation
	return &assignment, nil
}

func (r *AssignmentRepository) ListByOperation(ctx context.Context, operationID uuid.UUID) ([]model.Assignment, error) {
	var assignments []model.Assignment
	if err := r.withRelations(r.db.WithContext(ctx)).
		Where("operation_id = ?", operationID).
		Order("created_at ASC").
		Order("number ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *AssignmentRepository) NumbersByOperation(ctx context.Context, operationID uuid.UUID) ([]string, error) {
	var numbers []string
	if err := r.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Where("operation_id = ?", operationID).
		Pluck("number", &numbers).Error; err != nil {
		return nil, err
	}
	return numbers, nil
}

func (r *AssignmentRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// FindLink returns nil, nil when the vehicle is not attached to the assignment.
func (r *AssignmentRepository) FindLink(ctx context.Context, assignmentID, vehicleID uuid.UUID) (*model.VehicleAssignment, error) {
	var link model.VehicleAssignment
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND vehicle_id = ?", assignmentID, vehicleID).
		Take(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// MaxOrderForVehicle returns the highest queue order across every link of the
// vehicle, or 0 if it was never dispatched.
func (r *AssignmentRepository) MaxOrderForVehicle(ctx context.Context, vehicleID uuid.UUID) (int, error) {
	var highest int
	if err := r.db.WithContext(ctx).
		Model(&model.VehicleAssignment{}).
		Where("vehicle_id = ?", vehicleID).
		Select("COALESCE(MAX(queue_order), 0)").
		Scan(&highest).Error; err != nil {
		return 0, err
	}
	return highest, nil
}

func (r *AssignmentRepository) CreateLink(ctx context.Context, link *model.VehicleAssignment) error {
	return r.db.WithContext(ctx).Omit("Vehicle").Create(link).Error
}

func (r *AssignmentRepository) DeleteLink(ctx context.Context, linkID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.VehicleAssignment{}, "id = ?", linkID).Error
}

func (r *AssignmentRepository) CountLinks(ctx context.Context, assignmentID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.VehicleAssignment{}).
		Where("assignment_id = ?", assignmentID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AssignmentRepository) LinksByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]model.VehicleAssignment, error) {
	var links []model.VehicleAssignment
	if err := r.db.WithContext(ctx).
		Where("vehicle_id = ?", vehicleID).
		Order("queue_order ASC").
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (r *AssignmentRepository) withRelations(query *gorm.DB) *gorm.DB {
	return query.
		Preload("Operation").
		Preload("Vehicles", func(db *gorm.DB) *gorm.DB {
			return db.Order("assigned_at ASC").Order("queue_order ASC")
		}).
		Preload("Vehicles.Vehicle")
}

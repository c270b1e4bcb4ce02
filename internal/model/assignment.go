package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssignmentStatus string

const (
	AssignmentStatusOpen      AssignmentStatus = "open"
	AssignmentStatusAssigned  AssignmentStatus = "assigned"
	AssignmentStatusCompleted AssignmentStatus = "completed"
)

type Assignment struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	OperationID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"operation_id"`
	Number          string           `gorm:"type:varchar(20);not null;uniqueIndex" json:"number"`
	Title           string           `gorm:"type:varchar(200);not null" json:"title"`
	Description     string           `gorm:"type:text" json:"description"`
	LocationAddress string           `gorm:"type:varchar(500)" json:"location_address"`
	Latitude        *float64         `json:"latitude"`
	Longitude       *float64         `json:"longitude"`
	Status          AssignmentStatus `gorm:"type:varchar(16);not null;default:'open'" json:"status"`
	DocumentPath    *string          `gorm:"type:varchar(500)" json:"document_path"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	CompletedAt     *time.Time       `json:"completed_at"`

	Operation *Operation          `gorm:"foreignKey:OperationID" json:"-"`
	Vehicles  []VehicleAssignment `gorm:"foreignKey:AssignmentID" json:"-"`
}

func (Assignment) TableName() string {
	return "assignments"
}

func (a *Assignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// VehicleAssignment links one vehicle to one assignment. Order is a
// per-vehicle counter spanning every assignment the vehicle ever received.
type VehicleAssignment struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VehicleID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uniq_vehicle_assignment" json:"vehicle_id"`
	AssignmentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uniq_vehicle_assignment;index" json:"assignment_id"`
	Order        int       `gorm:"column:queue_order;not null;default:0" json:"order"`
	AssignedAt   time.Time `gorm:"not null" json:"assigned_at"`

	Vehicle *Vehicle `gorm:"foreignKey:VehicleID" json:"-"`
}

func (VehicleAssignment) TableName() string {
	return "vehicle_assignments"
}

func (va *VehicleAssignment) BeforeCreate(tx *gorm.DB) error {
	if va.ID == uuid.Nil {
		va.ID = uuid.New()
	}
	if va.AssignedAt.IsZero() {
		va.AssignedAt = time.Now()
	}
	return nil
}

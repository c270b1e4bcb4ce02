package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OperationStatus string

const (
	OperationStatusActive OperationStatus = "active"
	OperationStatusClosed OperationStatus = "closed"
)

// Operation is an incident ("Einsatzlage"). It owns its assignments and journal.
type Operation struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Number      string          `gorm:"type:varchar(20);not null;uniqueIndex" json:"number"`
	Title       string          `gorm:"type:varchar(200);not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	Status      OperationStatus `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	ClosedAt    *time.Time      `json:"closed_at"`
}

func (Operation) TableName() string {
	return "operations"
}

func (o *Operation) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// IsMutable reports whether writes against the operation, its assignments or
// its journal are allowed.
func (o *Operation) IsMutable() bool {
	return o.Status == OperationStatusActive
}

// ActiveOperation is the single-row pointer to the operation currently in
// progress. OperationID is nil when no operation is active.
type ActiveOperation struct {
	ID          int        `gorm:"primaryKey;autoIncrement:false"`
	OperationID *uuid.UUID `gorm:"type:uuid"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
}

func (ActiveOperation) TableName() string {
	return "active_operation"
}

const ActiveOperationRowID = 1

// NumberSequence is a per-scope counter used to hand out operation and
// assignment numbers.
type NumberSequence struct {
	Scope     string    `gorm:"type:varchar(64);primaryKey"`
	Value     int       `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (NumberSequence) TableName() string {
	return "number_sequences"
}

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	EntryTypeStatusChange      = "status_change"
	EntryTypeNote              = "note"
	EntryTypeVehicleAssigned   = "vehicle_assigned"
	EntryTypeVehicleUnassigned = "vehicle_unassigned"
	EntryTypeDecision          = "decision"
)

// KnownEntryType reports whether t is one of the predefined entry types.
func KnownEntryType(t string) bool {
	switch t {
	case EntryTypeStatusChange, EntryTypeNote, EntryTypeVehicleAssigned,
		EntryTypeVehicleUnassigned, EntryTypeDecision:
		return true
	}
	return false
}

// JournalEntry is one line of the operation log ("Einsatztagebuch").
// AssignmentID becomes nil when the referenced assignment is removed.
type JournalEntry struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OperationID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"operation_id"`
	AssignmentID *uuid.UUID `gorm:"type:uuid;index" json:"assignment_id"`
	AuthorID     *uuid.UUID `gorm:"type:uuid" json:"author_id"`
	Timestamp    time.Time  `gorm:"not null;index" json:"timestamp"`
	EntryType    string     `gorm:"type:varchar(50)" json:"entry_type"`
	Content      string     `gorm:"type:text;not null" json:"content"`

	Operation  *Operation  `gorm:"foreignKey:OperationID" json:"-"`
	Assignment *Assignment `gorm:"foreignKey:AssignmentID" json:"-"`
}

func (JournalEntry) TableName() string {
	return "journal_entries"
}

func (e *JournalEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return nil
}

type Setting struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	Key   string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"key"`
	Value string    `gorm:"type:text" json:"value"`
}

func (Setting) TableName() string {
	return "settings"
}

func (s *Setting) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Location is a fire station. Coordinates stay nil when geocoding fails.
type Location struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(200);not null" json:"name"`
	Address   string    `gorm:"type:varchar(500);not null" json:"address"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Location) TableName() string {
	return "locations"
}

func (l *Location) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

type Vehicle struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Callsign    string     `gorm:"type:varchar(50);not null;uniqueIndex" json:"callsign"`
	VehicleType string     `gorm:"type:varchar(100)" json:"vehicle_type"`
	CrewCount   int        `gorm:"not null;default:0" json:"crew_count"`
	LocationID  *uuid.UUID `gorm:"type:uuid;index" json:"location_id"`
	Notes       string     `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`

	Location *Location `gorm:"foreignKey:LocationID" json:"-"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}

func (v *Vehicle) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

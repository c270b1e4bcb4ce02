package model

import (
	"time"

	"github.com/google/uuid"
)

type AssignmentView struct {
	ID              uuid.UUID        `json:"id"`
	OperationID     uuid.UUID        `json:"operation_id"`
	Number          string           `json:"number"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	LocationAddress string           `json:"location_address"`
	Latitude        *float64         `json:"latitude"`
	Longitude       *float64         `json:"longitude"`
	Status          AssignmentStatus `json:"status"`
	DocumentPath    *string          `json:"document_path"`
	CreatedAt       time.Time        `json:"created_at"`
	CompletedAt     *time.Time       `json:"completed_at"`
	Vehicles        []string         `json:"vehicles"`
}

// NewAssignmentView expects the Vehicles links (and their Vehicle) preloaded.
func NewAssignmentView(a Assignment) AssignmentView {
	callsigns := make([]string, 0, len(a.Vehicles))
	for _, link := range a.Vehicles {
		if link.Vehicle != nil {
			callsigns = append(callsigns, link.Vehicle.Callsign)
		}
	}
	return AssignmentView{
		ID:              a.ID,
		OperationID:     a.OperationID,
		Number:          a.Number,
		Title:           a.Title,
		Description:     a.Description,
		LocationAddress: a.LocationAddress,
		Latitude:        a.Latitude,
		Longitude:       a.Longitude,
		Status:          a.Status,
		DocumentPath:    a.DocumentPath,
		CreatedAt:       a.CreatedAt,
		CompletedAt:     a.CompletedAt,
		Vehicles:        callsigns,
	}
}

type VehicleView struct {
	Vehicle
	LocationName *string `json:"location_name"`
}

func NewVehicleView(v Vehicle) VehicleView {
	view := VehicleView{Vehicle: v}
	if v.Location != nil {
		name := v.Location.Name
		view.LocationName = &name
	}
	return view
}

type JournalEntryView struct {
	JournalEntry
	AssignmentNumber *string `json:"assignment_number"`
}

func NewJournalEntryView(e JournalEntry) JournalEntryView {
	view := JournalEntryView{JournalEntry: e}
	if e.Assignment != nil {
		number := e.Assignment.Number
		view.AssignmentNumber = &number
	}
	return view
}

package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dispatch-service/internal/geocode"
	"dispatch-service/internal/model"
	"dispatch-service/internal/repository"
)

// NoLocationGroup is the group name for vehicles without a station.
const NoLocationGroup = "Ohne Standort"

// FleetService manages stations and vehicles. Neither is bound to an
// operation, so the closed-operation guard does not apply.
type FleetService struct {
	store    *repository.Store
	geocoder geocode.Geocoder
	log      zerolog.Logger
}

func NewFleetService(store *repository.Store, geocoder geocode.Geocoder, log zerolog.Logger) *FleetService {
	return &FleetService{store: store, geocoder: geocoder, log: log}
}

type LocationInput struct {
	Name    *string
	Address *string
}

func (s *FleetService) CreateLocation(ctx context.Context, principal model.Principal, input LocationInput) (*model.Location, error) {
	if err := ensureWriter(principal); err != nil {
		return nil, err
	}
	name, address := trimmed(input.Name), trimmed(input.Address)
	if name == "" || address == "" {
		return nil, fmt.Errorf("%w: name and address are required", ErrInvalidInput)
	}

	located := geocode.Resolve(ctx, s.geocoder, s.log, address)
	location := &model.Location{
		Name:      name,
		Address:   address,
		Latitude:  located.Lat(),
		Longitude: located.Lon(),
	}
	if err := s.store.Locations().Create(ctx, location); err != nil {
		return nil, err
	}
	return location, nil
}

func (s *FleetService) UpdateLocation(ctx context.Context, principal model.Principal, id uuid.UUID, input LocationInput) (*model.Location, error) {
	if err := ensureWriter(principal); err != nil {
		return nil, err
	}
	if _, err := s.store.Locations().GetByID(ctx, id); err != nil {
		return nil, translateStoreError(err, "location")
	}

	fields := map[string]interface{}{}
	if input.Name != nil {
		name := trimmed(input.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		fields["name"] = name
	}
	if input.Address != nil {
		address := trimmed(input.Address)
		if address == "" {
			return nil, fmt.Errorf("%w: address must not be empty", ErrInvalidInput)
		}
		fields["address"] = address
		if located := geocode.Resolve(ctx, s.geocoder, s.log, address); located.Found {
			fields["latitude"] = *located.Lat()
			fields["longitude"] = *located.Lon()
		}
	}
	if len(fields) > 0 {
		if err := s.store.Locations().Update(ctx, id, fields); err != nil {
			return nil, err
		}
	}
	return s.GetLocation(ctx, id)
}

func (s *FleetService) GetLocation(ctx context.Context, id uuid.UUID) (*model.Location, error) {
	location, err := s.store.Locations().GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "location")
	}
	return location, nil
}

func (s *FleetService) ListLocations(ctx context.Context) ([]model.Location, error) {
	return s.store.Locations().List(ctx)
}

// DeleteLocation keeps the vehicles stationed there; they lose their location.
func (s *FleetService) DeleteLocation(ctx context.Context, principal model.Principal, id uuid.UUID) error {
	if err := ensureWriter(principal); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(tx *repository.Store) error {
		return translateStoreError(tx.Locations().Delete(ctx, id), "location")
	})
}

type VehicleInput struct {
	Callsign      *string
	VehicleType   *string
	CrewCount     *int
	LocationID    *uuid.UUID
	ClearLocation bool
	Notes         *string
}

func (s *FleetService) CreateVehicle(ctx context.Context, principal model.Principal, input VehicleInput) (*model.VehicleView, error) {
	if err := ensureWriter(principal); err != nil {
		return nil, err
	}
	callsign := trimmed(input.Callsign)
	if callsign == "" {
		return nil, fmt.Errorf("%w: callsign is required", ErrInvalidInput)
	}
	crew := 0
	if input.CrewCount != nil {
		crew = *input.CrewCount
	}
	if crew < 0 {
		return nil, fmt.Errorf("%w: crew count must not be negative", ErrInvalidInput)
	}

	vehicle := &model.Vehicle{
		Callsign:    callsign,
		VehicleType: trimmed(input.VehicleType),
		CrewCount:   crew,
		Notes:       trimmed(input.Notes),
	}
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		taken, err := tx.Vehicles().CallsignTaken(ctx, callsign, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: callsign %s is already in use", ErrConflict, callsign)
		}
		if input.LocationID != nil && !input.ClearLocation {
			if _, err := tx.Locations().GetByID(ctx, *input.LocationID); err != nil {
				return translateStoreError(err, "location")
			}
			vehicle.LocationID = input.LocationID
		}
		return translateStoreError(tx.Vehicles().Create(ctx, vehicle), "callsign")
	})
	if err != nil {
		return nil, err
	}
	return s.GetVehicle(ctx, vehicle.ID)
}

func (s *FleetService) UpdateVehicle(ctx context.Context, principal model.Principal, id uuid.UUID, input VehicleInput) (*model.VehicleView, error) {
	if err := ensureWriter(principal); err != nil {
		return nil, err
	}
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		if _, err := tx.Vehicles().GetForUpdate(ctx, id); err != nil {
			return translateStoreError(err, "vehicle")
		}

		fields := map[string]interface{}{}
		if input.Callsign != nil {
			callsign := trimmed(input.Callsign)
			if callsign == "" {
				return fmt.Errorf("%w: callsign must not be empty", ErrInvalidInput)
			}
			taken, err := tx.Vehicles().CallsignTaken(ctx, callsign, id)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%w: callsign %s is already in use", ErrConflict, callsign)
			}
			fields["callsign"] = callsign
		}
		if input.VehicleType != nil {
			fields["vehicle_type"] = trimmed(input.VehicleType)
		}
		if input.CrewCount != nil {
			if *input.CrewCount < 0 {
				return fmt.Errorf("%w: crew count must not be negative", ErrInvalidInput)
			}
			fields["crew_count"] = *input.CrewCount
		}
		switch {
		case input.ClearLocation:
			fields["location_id"] = nil
		case input.LocationID != nil:
			if _, err := tx.Locations().GetByID(ctx, *input.LocationID); err != nil {
				return translateStoreError(err, "location")
			}
			fields["location_id"] = *input.LocationID
		}
		if input.Notes != nil {
			fields["notes"] = trimmed(input.Notes)
		}
		if len(fields) == 0 {
			return nil
		}
		return translateStoreError(tx.Vehicles().Update(ctx, id, fields), "callsign")
	})
	if err != nil {
		return nil, err
	}
	return s.GetVehicle(ctx, id)
}

func (s *FleetService) GetVehicle(ctx context.Context, id uuid.UUID) (*model.VehicleView, error) {
	vehicle, err := s.store.Vehicles().GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "vehicle")
	}
	view := model.NewVehicleView(*vehicle)
	return &view, nil
}

func (s *FleetService) ListVehicles(ctx context.Context) ([]model.VehicleView, error) {
	vehicles, err := s.store.Vehicles().List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]model.VehicleView, 0, len(vehicles))
	for _, v := range vehicles {
		views = append(views, model.NewVehicleView(v))
	}
	return views, nil
}

type VehicleGroup struct {
	Location string              `json:"location"`
	Vehicles []model.VehicleView `json:"vehicles"`
}

// VehiclesByLocation groups vehicles by station name, sorted by name with the
// "Ohne Standort" group last.
func (s *FleetService) VehiclesByLocation(ctx context.Context) ([]VehicleGroup, error) {
	vehicles, err := s.ListVehicles(ctx)
	if err != nil {
		return nil, err
	}

	index := map[string]int{}
	groups := []VehicleGroup{}
	for _, v := range vehicles {
		name := NoLocationGroup
		if v.LocationName != nil {
			name = *v.LocationName
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, VehicleGroup{Location: name})
		}
		groups[i].Vehicles = append(groups[i].Vehicles, v)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Location == NoLocationGroup {
			return false
		}
		if groups[j].Location == NoLocationGroup {
			return true
		}
		return groups[i].Location < groups[j].Location
	})
	return groups, nil
}

// DeleteVehicle removes the vehicle and its assignment links. Assignment
// statuses are left as they are.
func (s *FleetService) DeleteVehicle(ctx context.Context, principal model.Principal, id uuid.UUID) error {
	if err := ensureWriter(principal); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(tx *repository.Store) error {
		return translateStoreError(tx.Vehicles().Delete(ctx, id), "vehicle")
	})
}

func trimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store hands out repositories bound to one gorm handle. Inside InTx every
// repository shares the same transaction.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) Operations() *OperationRepository {
	return NewOperationRepository(s.db)
}

func (s *Store) Sequences() *SequenceRepository {
	return NewSequenceRepository(s.db)
}

func (s *Store) Assignments() *AssignmentRepository {
	return NewAssignmentRepository(s.db)
}

func (s *Store) Vehicles() *VehicleRepository {
	return NewVehicleRepository(s.db)
}

func (s *Store) Locations() *LocationRepository {
	return NewLocationRepository(s.db)
}

func (s *Store) Journal() *JournalRepository {
	return NewJournalRepository(s.db)
}

func (s *Store) Settings() *SettingRepository {
	return NewSettingRepository(s.db)
}

func forUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

func forShare() clause.Locking {
	return clause.Locking{Strength: "SHARE"}
}

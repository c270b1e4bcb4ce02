// Package dbtest opens throwaway SQLite databases carrying the dispatch
// schema. It is only imported from tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dispatch-service/internal/model"
)

// Models lists every table of the schema in dependency order.
var Models = []interface{}{
	&model.Operation{},
	&model.ActiveOperation{},
	&model.NumberSequence{},
	&model.Location{},
	&model.Vehicle{},
	&model.Assignment{},
	&model.VehicleAssignment{},
	&model.JournalEntry{},
	&model.Setting{},
}

// Open returns a migrated database in the test's temp dir. The pool holds a
// single connection: a query issued outside a running transaction blocks.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "dispatch.db") + "?_busy_timeout=5000&_foreign_keys=off"
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := gormDB.AutoMigrate(Models...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return gormDB
}

package testutil

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/bytecart/catalog-backend/internal/data/db"
	"github.com/bytecart/catalog-backend/internal/platform/logger"
)

var (
	dbOnce   sync.Once
	sharedDB *gorm.DB
	dbErr    error

	logOnce sync.Once
	logg    *logger.Logger
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg = logger.NewNop()
	})
	return logg
}

// DB returns a process-shared database: Postgres when TEST_POSTGRES_DSN is
// set, otherwise an in-memory SQLite database. Pair with Tx for isolation.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn != "" {
			sharedDB, dbErr = openPostgres(dsn)
			return
		}
		sharedDB, dbErr = openMemory("shared")
	})
	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return sharedDB
}

// MemDB returns a fresh in-memory database private to one test. Use it when
// the code under test manages its own transactions.
func MemDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	handle, err := openMemory(uuid.NewString())
	if err != nil {
		tb.Fatalf("failed to init in-memory db: %v", err)
	}
	return handle
}

func Tx(tb testing.TB, handle *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := handle.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

func openPostgres(dsn string) (*gorm.DB, error) {
	handle, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := handle.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, err
	}
	if err := db.AutoMigrateAll(handle); err != nil {
		return nil, err
	}
	return handle, nil
}

func openMemory(name string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	handle, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	// Shared-cache in-memory SQLite cannot serve concurrent connections.
	sqlDB, err := handle.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrateAll(handle); err != nil {
		return nil, err
	}
	return handle, nil
}

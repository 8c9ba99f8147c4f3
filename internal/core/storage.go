package core

import (
	"fmt"
	"os"

	"staircore/internal/infra/persistence/memory"
	"staircore/internal/infra/persistence/postgres"
	"staircore/internal/infra/persistence/sqlite"
	"staircore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenStoreFromEnv selects a storage backend using environment variables.
// Defaults to sqlite when unset.
//
//	STAIRCORE_STORE_DRIVER: memory|sqlite|postgres (default sqlite)
//	STAIRCORE_SQLITE_PATH: path to sqlite file (default ./staircore.db)
//	STAIRCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenStoreFromEnv() (domain.Store, error) {
	driver := os.Getenv("STAIRCORE_STORE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		path := os.Getenv("STAIRCORE_SQLITE_PATH")
		return sqlite.NewStore(path)
	case StoragePostgres:
		dsn := os.Getenv("STAIRCORE_POSTGRES_DSN")
		return postgres.NewStore(dsn)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

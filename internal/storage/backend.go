package storage

import (
	"context"
	"fmt"
)

// Keys of the three persisted records.
const (
	KeyUserProfile = "maf_user_profile"
	KeyActivities  = "maf_activities"
	KeyDailyStats  = "maf_daily_stats"
)

// Backend is a key-value store holding serialized records.
// SetMulti and Remove apply all of their keys atomically.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMulti(ctx context.Context, values map[string][]byte) error
	Remove(ctx context.Context, keys ...string) error
	Close() error
}

// Backend drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open constructs the backend named by driver. dsn is a file path for sqlite
// and a connection string for postgres; it is ignored for memory.
func Open(ctx context.Context, driver, dsn string) (Backend, error) {
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(dsn)
	case DriverPostgres:
		if err := RunMigrations(dsn); err != nil {
			return nil, err
		}
		return New(ctx, dsn)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

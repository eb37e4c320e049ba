// Package persist selects the snapshot persistence driver for
// environment opens.
package persist

import (
	"context"
	"fmt"

	"datagraph/internal/storage"
	"datagraph/internal/storage/persist/postgres"
	"datagraph/internal/storage/persist/sqlite"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Opener returns the PersisterOpener for the driver. The memory driver
// returns nil, meaning environments live only in process memory. The
// postgres driver shares one DSN across environments; rows are keyed by
// environment directory.
func Opener(driver, postgresDSN string) (storage.PersisterOpener, error) {
	switch driver {
	case DriverMemory, "":
		return nil, nil
	case DriverSQLite:
		return func(ctx context.Context, dir string) (storage.Persister, error) {
			return sqlite.Open(ctx, dir)
		}, nil
	case DriverPostgres:
		if postgresDSN == "" {
			return nil, fmt.Errorf("persist: postgres driver requires a DSN")
		}
		return func(ctx context.Context, dir string) (storage.Persister, error) {
			return postgres.Open(ctx, postgresDSN, dir)
		}, nil
	default:
		return nil, fmt.Errorf("persist: unknown driver %q", driver)
	}
}

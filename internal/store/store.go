// Package store provides the record stores a save batch writes to.
//
// Three backends implement core.RecordStore: Postgres through a pgx pool,
// SQLite through the pure-Go modernc driver, and an in-memory store used for
// demos and tests. Tables are derived from the registered entity definitions.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/gridedit/internal/core"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// ErrRecordNotFound is returned when an update targets a record that does not exist.
var ErrRecordNotFound = errors.New("record not found")

// Options selects and configures a backend.
type Options struct {
	Driver string

	// URL is the Postgres connection string or the SQLite file path.
	URL string

	// Postgres pool settings; zero values keep pgx defaults.
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store is a core.RecordStore that can also create tables and insert records.
type Store interface {
	core.RecordStore

	// EnsureSchema creates the table of every registered entity if missing.
	EnsureSchema(ctx context.Context) error

	// InsertRecord adds a new record; used for seeding.
	InsertRecord(ctx context.Context, entity, recordID string, fields map[string]core.Value) error
}

// Open connects to the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverPostgres:
		return OpenPostgres(ctx, opts)
	case DriverSQLite:
		return OpenSQLite(ctx, opts.URL)
	case DriverMemory, "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", opts.Driver)
	}
}

// definition looks up a registered entity.
func definition(entity string) (core.EntityDefinition, error) {
	def, ok := core.Get(entity)
	if !ok {
		return core.EntityDefinition{}, fmt.Errorf("%w: %s", core.ErrUnknownEntity, entity)
	}
	return def, nil
}

func notFound(entity, recordID string) error {
	return fmt.Errorf("update %s %s: %w", entity, recordID, ErrRecordNotFound)
}

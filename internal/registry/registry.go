// Package registry defines the persistence contract for jobs. Two backends
// implement it: gormreg (relational, sqlite/postgres) and dynamoreg
// (DynamoDB wide-column). The scheduler and reaper depend only on this
// interface, never on a concrete backend.
package registry

import (
	"context"

	"github.com/vizsched/vizsched/internal/job"
)

// Registry is the durable store mapping job id to owner and host.
// Only the operations spec.md enumerates are exposed: insert, fetch_by_id,
// scan_all, update_host, delete, ensure_schema.
type Registry interface {
	// EnsureSchema creates the backing table/collection if it does not
	// already exist. Called once at startup.
	EnsureSchema(ctx context.Context) error

	// Insert durably persists a new job row. Returns ErrConflict if a row
	// with the same id already exists (invariant 1).
	Insert(ctx context.Context, j job.Job) error

	// FetchByID returns the row for id, or ErrNotFound if it does not exist.
	FetchByID(ctx context.Context, id string) (job.Job, error)

	// ScanAll returns every row currently in the registry. Used only by the
	// reaper to find expired jobs.
	ScanAll(ctx context.Context) ([]job.Job, error)

	// UpdateHost sets the host column for id. Idempotent: writing the same
	// value twice is not an error and is expected under concurrent status
	// calls (spec.md §5).
	UpdateHost(ctx context.Context, id, host string) error

	// Delete removes the row for id. Returns ErrNotFound if it does not
	// exist — callers use this to detect the stop/reaper race (spec.md §5).
	Delete(ctx context.Context, id string) error

	// Close releases any resources (connection pool, client) held by the
	// registry. Called once at process shutdown.
	Close() error
}

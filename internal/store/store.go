// Package store provides the durable task_id -> Task mapping behind the
// analysis service. All mutation goes through the atomic operations below;
// no component writes task fields directly.
package store

import (
	"context"

	"github.com/speechcare/analysis-service/internal/task"
)

// Filter narrows List queries. Zero value matches everything.
type Filter struct {
	OwnerRef string
}

// Store is the durable task record store. Implementations must provide
// atomic per-document update semantics: concurrent UpsertCreate calls for the
// same task id must never produce duplicate records, and terminal writes
// (Complete, Fail) must never transition a task out of a terminal state.
//
// Unreachable backends surface as task.ErrStoreUnavailable, never as a task
// failure; unknown ids surface as task.ErrNotFound on Get.
type Store interface {
	// UpsertCreate creates the record with status processing if and only if no
	// record exists for the id. For an existing record (in progress or
	// terminal) it is a no-op.
	UpsertCreate(ctx context.Context, taskID string) error

	// Complete merges {status: completed, results} into the record and bumps
	// updated_at. It is a no-op for tasks already terminal.
	Complete(ctx context.Context, taskID string, results map[string]interface{}) error

	// Fail merges {status: failed, error} into the record and bumps
	// updated_at. It is a no-op for tasks already terminal.
	Fail(ctx context.Context, taskID, message string) error

	// SetOwner attaches an external owner reference to the record.
	SetOwner(ctx context.Context, taskID, ownerRef string) error

	// Get returns the task record for the id.
	Get(ctx context.Context, taskID string) (*task.Task, error)

	// List returns task projections matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]task.Projection, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close(ctx context.Context) error
}

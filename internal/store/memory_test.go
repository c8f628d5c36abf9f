package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speechcare/analysis-service/internal/task"
)

func TestUpsertCreateIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.UpsertCreate(ctx, "task-1"))

	first, err := s.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusProcessing, first.Status)

	// A repeat create must not reset anything.
	require.NoError(t, s.Complete(ctx, "task-1", map[string]interface{}{"score": 0.9}))
	require.NoError(t, s.UpsertCreate(ctx, "task-1"))

	got, err := s.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
}

func TestCompleteSetsResultsAndClearsError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.UpsertCreate(ctx, "task-1"))
	require.NoError(t, s.Complete(ctx, "task-1", map[string]interface{}{"stutter_rate": 0.12}))

	got, err := s.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, 0.12, got.Results["stutter_rate"])
	assert.Empty(t, got.Error)
}

func TestFailSetsErrorAndClearsResults(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.UpsertCreate(ctx, "task-1"))
	require.NoError(t, s.Fail(ctx, "task-1", "analysis crashed"))

	got, err := s.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, got.Status)
	assert.Equal(t, "analysis crashed", got.Error)
	assert.Nil(t, got.Results)
}

func TestTerminalStatesAreFinal(t *testing.T) {
	ctx := context.Background()

	t.Run("completed is not overwritten by fail", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.UpsertCreate(ctx, "task-1"))
		require.NoError(t, s.Complete(ctx, "task-1", map[string]interface{}{"ok": true}))
		require.NoError(t, s.Fail(ctx, "task-1", "late failure"))

		got, err := s.Get(ctx, "task-1")
		require.NoError(t, err)
		assert.Equal(t, task.StatusCompleted, got.Status)
		assert.Empty(t, got.Error)
	})

	t.Run("failed is not overwritten by complete", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.UpsertCreate(ctx, "task-1"))
		require.NoError(t, s.Fail(ctx, "task-1", "corrupt audio"))
		require.NoError(t, s.Complete(ctx, "task-1", map[string]interface{}{"ok": true}))

		got, err := s.Get(ctx, "task-1")
		require.NoError(t, err)
		assert.Equal(t, task.StatusFailed, got.Status)
		assert.Equal(t, "corrupt audio", got.Error)
	})
}

func TestTerminalWritesOnUnknownTaskAreNoOps(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Complete(ctx, "ghost", map[string]interface{}{"ok": true}))
	require.NoError(t, s.Fail(ctx, "ghost", "nope"))

	_, err := s.Get(ctx, "ghost")
	assert.ErrorIs(t, err, task.ErrNotFound)
}

func TestGetUnknownTaskReturnsNotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, task.ErrNotFound)
}

func TestSetOwner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.UpsertCreate(ctx, "task-1"))
	require.NoError(t, s.SetOwner(ctx, "task-1", "user-7"))

	got, err := s.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "user-7", got.OwnerRef)

	// Unknown task is tolerated.
	require.NoError(t, s.SetOwner(ctx, "ghost", "user-7"))
}

func TestListNewestFirstAndOwnerFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.UpsertCreate(ctx, id))
		time.Sleep(2 * time.Millisecond)
	}
	require.NoError(t, s.SetOwner(ctx, "b", "user-7"))

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].TaskID)
	assert.Equal(t, "a", all[2].TaskID)

	owned, err := s.List(ctx, Filter{OwnerRef: "user-7"})
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "b", owned[0].TaskID)
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.UpsertCreate(ctx, "task-1"))

	got, err := s.Get(ctx, "task-1")
	require.NoError(t, err)
	got.Status = task.StatusFailed

	again, err := s.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusProcessing, again.Status)
}

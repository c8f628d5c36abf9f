package jobs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speechcare/analysis-service/internal/artifacts"
	"github.com/speechcare/analysis-service/internal/store"
)

func newSweeperEnv(t *testing.T, minAge time.Duration) (*ScratchSweeper, *store.MemoryStore, *artifacts.Workspace) {
	t.Helper()
	s := store.NewMemoryStore()
	ws, err := artifacts.NewWorkspace(t.TempDir())
	require.NoError(t, err)
	logger := zerolog.Nop()
	return NewScratchSweeper(s, ws, &logger, time.Minute, minAge), s, ws
}

func seedScratch(t *testing.T, ws *artifacts.Workspace, taskID string) {
	t.Helper()
	_, err := ws.SaveUpload(taskID, "audio.wav", strings.NewReader("bytes"))
	require.NoError(t, err)
}

func TestSweepRemovesTerminalTaskDirs(t *testing.T) {
	sweeper, s, ws := newSweeperEnv(t, 0)
	ctx := context.Background()

	seedScratch(t, ws, "done")
	require.NoError(t, s.UpsertCreate(ctx, "done"))
	require.NoError(t, s.Complete(ctx, "done", map[string]interface{}{"ok": true}))

	seedScratch(t, ws, "dead")
	require.NoError(t, s.UpsertCreate(ctx, "dead"))
	require.NoError(t, s.Fail(ctx, "dead", "crashed"))

	require.NoError(t, sweeper.Sweep(ctx))

	ids, err := ws.TaskIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSweepRemovesOrphanDirsWithoutRecord(t *testing.T) {
	sweeper, _, ws := newSweeperEnv(t, 0)

	seedScratch(t, ws, "never-admitted")

	require.NoError(t, sweeper.Sweep(context.Background()))

	ids, err := ws.TaskIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSweepKeepsProcessingTaskDirs(t *testing.T) {
	sweeper, s, ws := newSweeperEnv(t, 0)
	ctx := context.Background()

	seedScratch(t, ws, "in-flight")
	require.NoError(t, s.UpsertCreate(ctx, "in-flight"))

	require.NoError(t, sweeper.Sweep(ctx))

	ids, err := ws.TaskIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"in-flight"}, ids)
}

func TestSweepSkipsYoungDirs(t *testing.T) {
	sweeper, s, ws := newSweeperEnv(t, time.Hour)
	ctx := context.Background()

	seedScratch(t, ws, "fresh")
	require.NoError(t, s.UpsertCreate(ctx, "fresh"))
	require.NoError(t, s.Fail(ctx, "fresh", "failed"))

	require.NoError(t, sweeper.Sweep(ctx))

	// Terminal but too young to be swept.
	ids, err := ws.TaskIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, ids)
}

func TestStartStopsOnSignal(t *testing.T) {
	sweeper, _, _ := newSweeperEnv(t, 0)

	done := make(chan struct{})
	go func() {
		sweeper.Start(context.Background())
		close(done)
	}()

	sweeper.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadKey(t *testing.T) {
	received := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	key := UploadKey("session-42", received, "recording.wav")
	assert.Equal(t, "uploads/2026-03-14/session-42/recording.wav", key)
}

func TestLocalArchiveRoundTrip(t *testing.T) {
	archive, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := UploadKey("task-1", time.Now().UTC(), "clip.mp4")
	require.NoError(t, archive.Put(ctx, key, []byte("video bytes"), "application/octet-stream"))

	exists, err := archive.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	content, err := archive.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("video bytes"), content)
}

func TestLocalArchiveExistsForUnknownKey(t *testing.T) {
	archive, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)

	exists, err := archive.Exists(context.Background(), "uploads/2026-01-01/nope/file.wav")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalArchiveListByPrefix(t *testing.T) {
	archive, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	require.NoError(t, archive.Put(ctx, UploadKey("a", day, "one.wav"), []byte("1"), ""))
	require.NoError(t, archive.Put(ctx, UploadKey("b", day, "two.wav"), []byte("2"), ""))
	require.NoError(t, archive.Put(ctx, UploadKey("c", day.AddDate(0, 0, 1), "three.wav"), []byte("3"), ""))

	keys, err := archive.List(ctx, "uploads/2026-03-14/")
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	all, err := archive.List(ctx, "uploads/")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsVideoContainer(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"clip.mp4", true},
		{"CLIP.MP4", true},
		{"session.mov", true},
		{"talk.mkv", true},
		{"webcam.webm", true},
		{"old.avi", true},
		{"phone.m4v", true},
		{"recording.wav", false},
		{"voice.mp3", false},
		{"speech.flac", false},
		{"noextension", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, IsVideoContainer(tt.filename))
		})
	}
}

func TestWavPath(t *testing.T) {
	assert.Equal(t, "/scratch/t1/clip.wav", WavPath("/scratch/t1/clip.mp4"))
	assert.Equal(t, "/scratch/t1/voice.wav", WavPath("/scratch/t1/voice.wav"))
	assert.Equal(t, "rec.wav", WavPath("rec.mov"))
	assert.Equal(t, "noext.wav", WavPath("noext"))
}

func TestNewNormalizerDefaultsBinary(t *testing.T) {
	n := NewNormalizer("", zerolog.Nop())
	assert.Equal(t, "ffmpeg", n.ffmpegPath)
}

func TestExtractFailsOnGarbageInput(t *testing.T) {
	n := NewNormalizer("ffmpeg", zerolog.Nop())
	if !n.Available() {
		t.Skip("ffmpeg not installed")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "garbage.mp4")
	require.NoError(t, os.WriteFile(src, []byte("this is not a video"), 0o644))

	err := n.Extract(context.Background(), src, filepath.Join(dir, "out.wav"))
	assert.Error(t, err)
}

func TestExtractFailsOnMissingInput(t *testing.T) {
	n := NewNormalizer("ffmpeg", zerolog.Nop())
	if !n.Available() {
		t.Skip("ffmpeg not installed")
	}

	dir := t.TempDir()
	err := n.Extract(context.Background(), filepath.Join(dir, "absent.mp4"), filepath.Join(dir, "out.wav"))
	assert.Error(t, err)
}

func TestAvailableWithBogusBinary(t *testing.T) {
	n := NewNormalizer("definitely-not-a-real-binary-9321", zerolog.Nop())
	assert.False(t, n.Available())
}

// Package media converts uploaded containers to the canonical waveform
// format the analyzer expects: mono, 16 kHz, 16-bit linear PCM.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// videoExtensions are container formats that need audio extraction before
// analysis. Plain audio uploads pass through unchanged.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
	".m4v":  true,
}

// IsVideoContainer reports whether the filename's extension indicates a
// video container.
func IsVideoContainer(filename string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(filename))]
}

// WavPath returns the output waveform path for a given source path.
func WavPath(sourcePath string) string {
	ext := filepath.Ext(sourcePath)
	return strings.TrimSuffix(sourcePath, ext) + ".wav"
}

// Normalizer extracts audio from media containers using the ffmpeg binary.
type Normalizer struct {
	ffmpegPath string
	logger     zerolog.Logger
}

// NewNormalizer creates a normalizer that shells out to the given ffmpeg
// binary ("ffmpeg" resolves via PATH).
func NewNormalizer(ffmpegPath string, logger zerolog.Logger) *Normalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Normalizer{ffmpegPath: ffmpegPath, logger: logger}
}

// Available reports whether the ffmpeg binary can be resolved.
func (n *Normalizer) Available() bool {
	_, err := exec.LookPath(n.ffmpegPath)
	return err == nil
}

// Extract decodes sourcePath and writes a mono 16 kHz pcm_s16le WAV to
// outputPath, overwriting any existing file there. The source file is never
// modified. Decoding failures (unsupported codec, corrupt stream, zero-length
// input) are returned as errors, not panics.
func (n *Normalizer) Extract(ctx context.Context, sourcePath, outputPath string) error {
	args := []string{
		"-y",
		"-i", sourcePath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-f", "wav",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, n.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		n.logger.Error().
			Err(err).
			Str("source", sourcePath).
			Str("ffmpeg_output", lastLine(stderr.String())).
			Msg("Audio extraction failed")
		return fmt.Errorf("ffmpeg extraction: %w", err)
	}
	return nil
}

// lastLine trims ffmpeg's stderr down to its final line, which carries the
// actual failure reason.
func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

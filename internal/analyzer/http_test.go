package analyzer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(endpoint string) HTTPConfig {
	return HTTPConfig{
		Endpoint:          endpoint,
		Timeout:           5 * time.Second,
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		RequestsPerSecond: 1000,
	}
}

func writeWaveform(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	require.NoError(t, os.WriteFile(path, []byte("pcm bytes"), 0o644))
	return path
}

func TestAnalyzePostsWaveformAndDecodesResult(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		json.NewEncoder(w).Encode(map[string]interface{}{"stutter_rate": 0.15})
	}))
	defer server.Close()

	a := NewHTTPAnalyzer(fastConfig(server.URL))
	results, err := a.Analyze(context.Background(), writeWaveform(t))
	require.NoError(t, err)

	assert.Equal(t, 0.15, results["stutter_rate"])
	assert.Equal(t, []byte("pcm bytes"), gotBody)
	assert.Equal(t, "audio/wav", gotContentType)
}

func TestAnalyzeRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
	}))
	defer server.Close()

	a := NewHTTPAnalyzer(fastConfig(server.URL))
	results, err := a.Analyze(context.Background(), writeWaveform(t))
	require.NoError(t, err)

	assert.Equal(t, true, results["ok"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnalyzeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	a := NewHTTPAnalyzer(fastConfig(server.URL))
	_, err := a.Analyze(context.Background(), writeWaveform(t))

	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAnalyzeGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	a := NewHTTPAnalyzer(fastConfig(server.URL))
	_, err := a.Analyze(context.Background(), writeWaveform(t))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnalyzeFailsOnMissingWaveform(t *testing.T) {
	a := NewHTTPAnalyzer(fastConfig("http://localhost:1"))
	_, err := a.Analyze(context.Background(), filepath.Join(t.TempDir(), "absent.wav"))
	assert.Error(t, err)
}

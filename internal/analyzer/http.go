package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"
)

// HTTPConfig configures the remote analyzer client.
type HTTPConfig struct {
	Endpoint          string
	Timeout           time.Duration
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	RequestsPerSecond float64
}

// DefaultHTTPConfig returns client defaults suitable for a single analyzer
// backend.
func DefaultHTTPConfig(endpoint string) HTTPConfig {
	return HTTPConfig{
		Endpoint:          endpoint,
		Timeout:           5 * time.Minute,
		MaxRetries:        2,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		RequestsPerSecond: 2,
	}
}

// HTTPAnalyzer calls a remote analysis service over HTTP. The waveform is
// posted as the request body; the response is the result document. Requests
// are throttled with a token bucket and retried on transient failures.
type HTTPAnalyzer struct {
	config  HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPAnalyzer creates a client for the configured analyzer endpoint.
func NewHTTPAnalyzer(cfg HTTPConfig) *HTTPAnalyzer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 2
	}
	return &HTTPAnalyzer{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, audioPath string) (map[string]interface{}, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("read waveform: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		result, retryable, err := a.post(ctx, audio)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable || attempt == a.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.backoff(attempt)):
		}
	}
	return nil, fmt.Errorf("analyzer request failed after %d attempts: %w", a.config.MaxRetries+1, lastErr)
}

// post performs one request. The second return value reports whether the
// failure is worth retrying (network errors, 429, 5xx).
func (a *HTTPAnalyzer) post(ctx context.Context, audio []byte) (map[string]interface{}, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.Endpoint, bytes.NewReader(audio))
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("analyzer unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("analyzer returned HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("analyzer returned HTTP %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, false, fmt.Errorf("decode analyzer response: %w", err)
	}
	return result, false, nil
}

func (a *HTTPAnalyzer) backoff(attempt int) time.Duration {
	d := float64(a.config.InitialBackoff) * math.Pow(2, float64(attempt))
	if max := float64(a.config.MaxBackoff); d > max {
		d = max
	}
	return time.Duration(d)
}

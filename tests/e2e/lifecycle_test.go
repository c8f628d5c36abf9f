package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speechcare/analysis-service/internal/analyzer"
	"github.com/speechcare/analysis-service/internal/artifacts"
	"github.com/speechcare/analysis-service/internal/handlers"
	"github.com/speechcare/analysis-service/internal/media"
	"github.com/speechcare/analysis-service/internal/middleware"
	"github.com/speechcare/analysis-service/internal/store"
	"github.com/speechcare/analysis-service/internal/worker"
)

// TestTaskLifecycle runs the full submit, poll, fetch-result flow over HTTP
// the way a client would drive it.
func TestTaskLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	gin.SetMode(gin.TestMode)

	s := store.NewMemoryStore()
	ws, err := artifacts.NewWorkspace(t.TempDir())
	require.NoError(t, err)

	a := analyzer.Func(func(ctx context.Context, audioPath string) (map[string]interface{}, error) {
		return map[string]interface{}{"stutter_rate": 0.08, "severity": "mild"}, nil
	})
	pool := worker.NewPool(s, ws, a, worker.Config{MaxConcurrent: 2}, zerolog.Nop())
	normalizer := media.NewNormalizer("ffmpeg", zerolog.Nop())
	h := handlers.NewTaskHandlers(s, ws, nil, normalizer, pool, zerolog.Nop())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RateLimit(middleware.RateLimiterConfig{RequestsPerSecond: 1000, BurstSize: 1000}))
	router.GET("/health", handlers.HealthCheck(s))
	router.POST("/tasks/:taskId", h.Submit)
	router.GET("/tasks", h.List)
	router.GET("/tasks/:taskId/status", h.Status)
	router.GET("/tasks/:taskId/result", h.Result)

	server := httptest.NewServer(router)
	defer server.Close()

	client := &http.Client{Timeout: 10 * time.Second}

	t.Run("Health", func(t *testing.T) {
		resp, err := client.Get(server.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("SubmitAndPoll", func(t *testing.T) {
		resp := upload(t, client, server.URL, "session-42", "recording.wav", 4096)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var submitted struct {
			TaskID  string `json:"task_id"`
			Message string `json:"message"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))
		assert.Equal(t, "session-42", submitted.TaskID)
		assert.Equal(t, "Processing started", submitted.Message)

		// Poll until terminal the way a client would.
		var status string
		deadline := time.Now().Add(10 * time.Second)
		for time.Now().Before(deadline) {
			st, code := getJSON(t, client, server.URL+"/tasks/session-42/status")
			require.Equal(t, http.StatusOK, code)
			status = st["status"].(string)
			if status == "completed" || status == "failed" {
				break
			}
			time.Sleep(50 * time.Millisecond)
		}
		require.Equal(t, "completed", status)

		results, code := getJSON(t, client, server.URL+"/tasks/session-42/result")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 0.08, results["stutter_rate"])
		assert.Equal(t, "mild", results["severity"])
	})

	t.Run("RejectedUploadIsObservable", func(t *testing.T) {
		resp := upload(t, client, server.URL, "session-43", "tiny.wav", 10)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		st, code := getJSON(t, client, server.URL+"/tasks/session-43/status")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "failed", st["status"])
	})

	t.Run("ListShowsBothTasks", func(t *testing.T) {
		pool.Wait()

		listing, code := getJSON(t, client, server.URL+"/tasks")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, float64(2), listing["count"])
	})

	t.Run("UnknownTaskIs404", func(t *testing.T) {
		resp, err := client.Get(server.URL + "/tasks/ghost/status")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func upload(t *testing.T, client *http.Client, baseURL, taskID, filename string, size int) *http.Response {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("a"), size))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/tasks/%s", baseURL, taskID), &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, client *http.Client, url string) (map[string]interface{}, int) {
	t.Helper()

	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &out))
	return out, resp.StatusCode
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/speechcare/analysis-service/internal/artifacts"
	"github.com/speechcare/analysis-service/internal/media"
	"github.com/speechcare/analysis-service/internal/metrics"
	"github.com/speechcare/analysis-service/internal/storage"
	"github.com/speechcare/analysis-service/internal/store"
	"github.com/speechcare/analysis-service/internal/task"
	"github.com/speechcare/analysis-service/internal/worker"
)

// MinAudioBytes is the floor below which an upload is considered empty or
// corrupted. Matches the smallest plausible waveform with a valid header.
const MinAudioBytes int64 = 2048

// SubmitResponse acknowledges an accepted task submission.
type SubmitResponse struct {
	TaskID  string `json:"task_id" jsonschema:"required"`
	Message string `json:"message" jsonschema:"required"`
}

// StatusResponse is the polling projection of a task record.
type StatusResponse struct {
	TaskID  string                 `json:"task_id" jsonschema:"required"`
	Status  task.Status            `json:"status" jsonschema:"required,enum=processing,enum=completed,enum=failed"`
	Results map[string]interface{} `json:"results,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// ListTasksResponse wraps a filtered task listing.
type ListTasksResponse struct {
	Count int               `json:"count" jsonschema:"required"`
	Tasks []task.Projection `json:"tasks" jsonschema:"required"`
}

// TaskHandlers serves the task lifecycle endpoints. All dependencies are
// injected; there is no ambient store handle.
type TaskHandlers struct {
	store      store.Store
	workspace  *artifacts.Workspace
	archive    storage.Archive
	normalizer *media.Normalizer
	pool       *worker.Pool
	logger     zerolog.Logger
}

// NewTaskHandlers wires the task endpoints.
func NewTaskHandlers(s store.Store, ws *artifacts.Workspace, archive storage.Archive, n *media.Normalizer, pool *worker.Pool, logger zerolog.Logger) *TaskHandlers {
	return &TaskHandlers{
		store:      s,
		workspace:  ws,
		archive:    archive,
		normalizer: n,
		pool:       pool,
		logger:     logger.With().Str("component", "handlers").Logger(),
	}
}

// Submit admits a task: persists the upload, creates the task record,
// normalizes video containers, validates the artifact and dispatches the
// worker. The response returns before analysis runs.
// POST /tasks/:taskId
func (h *TaskHandlers) Submit(c *gin.Context) {
	taskID := c.Param("taskId")
	ctx := c.Request.Context()
	logger := h.logger.With().Str("task_id", taskID).Logger()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": task.ErrMissingPayload.Error()})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": task.ErrMissingPayload.Error()})
		return
	}
	defer src.Close()

	artifactPath, err := h.workspace.SaveUpload(taskID, fileHeader.Filename, src)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to persist upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}

	// Create-if-absent: a resubmission never resets a task already in
	// progress or terminal. The store's atomic upsert is the only
	// synchronization point between racing admissions.
	if err := h.store.UpsertCreate(ctx, taskID); err != nil {
		logger.Error().Err(err).Msg("Task store unreachable during admission")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "task store unavailable"})
		return
	}

	h.archiveSource(taskID, fileHeader.Filename, artifactPath, logger)

	if media.IsVideoContainer(fileHeader.Filename) {
		wavPath := media.WavPath(artifactPath)
		if err := h.normalizer.Extract(ctx, artifactPath, wavPath); err != nil {
			h.failSync(ctx, taskID, task.ErrExtractionFailed.Error(), "extraction_failed", logger)
			c.JSON(http.StatusInternalServerError, gin.H{"error": task.ErrExtractionFailed.Error()})
			return
		}
		artifactPath = wavPath
	}

	size, err := h.workspace.Size(artifactPath)
	if err != nil || size < MinAudioBytes {
		h.failSync(ctx, taskID, task.ErrCorruptAudio.Error(), "corrupt_audio", logger)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Audio file is empty or corrupted. Please record again."})
		return
	}

	h.pool.Dispatch(taskID, artifactPath)
	metrics.TasksSubmitted.Inc()

	if ownerRef := c.PostForm("owner_ref"); ownerRef != "" {
		if err := h.store.SetOwner(ctx, taskID, ownerRef); err != nil {
			// The task is already dispatched; owner attachment is advisory.
			logger.Warn().Err(err).Msg("Failed to attach owner to task")
		}
	}

	logger.Info().Int64("bytes", size).Msg("Task admitted")
	c.JSON(http.StatusOK, SubmitResponse{TaskID: taskID, Message: "Processing started"})
}

// failSync records a pre-dispatch failure so a subsequent poll agrees with
// the synchronous error response, then releases the scratch directory (no
// worker will run for this task).
func (h *TaskHandlers) failSync(ctx context.Context, taskID, message, cause string, logger zerolog.Logger) {
	metrics.TasksFailed.WithLabelValues(cause).Inc()
	if err := h.store.Fail(ctx, taskID, message); err != nil {
		logger.Error().Err(err).Msg("Failed to record admission failure")
	}
	if err := h.workspace.Cleanup(taskID); err != nil {
		metrics.CleanupFailures.Inc()
		logger.Error().Err(err).Msg("Failed to clean up task scratch directory")
	}
	logger.Warn().Str("cause", cause).Msg("Task rejected at admission")
}

// archiveSource copies the raw upload into durable archive storage. Archive
// problems never fail the task; the scratch copy is what processing uses.
func (h *TaskHandlers) archiveSource(taskID, filename, artifactPath string, logger zerolog.Logger) {
	if h.archive == nil {
		return
	}
	content, err := os.ReadFile(artifactPath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read upload for archiving")
		return
	}
	key := storage.UploadKey(taskID, time.Now().UTC(), filename)
	if err := h.archive.Put(context.Background(), key, content, "application/octet-stream"); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Failed to archive upload source")
	}
}

// Status returns the current state of a task.
// GET /tasks/:taskId/status
func (h *TaskHandlers) Status(c *gin.Context) {
	taskID := c.Param("taskId")

	t, err := h.store.Get(c.Request.Context(), taskID)
	if err != nil {
		h.renderLookupError(c, err)
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		TaskID:  t.TaskID,
		Status:  t.Status,
		Results: t.Results,
		Error:   t.Error,
	})
}

// Result returns the analysis result document once the task has completed.
// While the task is processing or failed it returns 202 with the current
// status so pollers can distinguish "keep polling" from "done".
// GET /tasks/:taskId/result
func (h *TaskHandlers) Result(c *gin.Context) {
	taskID := c.Param("taskId")

	t, err := h.store.Get(c.Request.Context(), taskID)
	if err != nil {
		h.renderLookupError(c, err)
		return
	}

	if t.Status != task.StatusCompleted {
		c.JSON(http.StatusAccepted, gin.H{"status": t.Status})
		return
	}

	// Completed records written before results were stored inline have no
	// payload; report that instead of fabricating one.
	if len(t.Results) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": task.ErrResultsUnavailable.Error()})
		return
	}

	c.JSON(http.StatusOK, t.Results)
}

// List returns task projections, optionally filtered by owner.
// GET /tasks?owner_ref=...
func (h *TaskHandlers) List(c *gin.Context) {
	tasks, err := h.store.List(c.Request.Context(), store.Filter{
		OwnerRef: c.Query("owner_ref"),
	})
	if err != nil {
		h.renderLookupError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListTasksResponse{Count: len(tasks), Tasks: tasks})
}

func (h *TaskHandlers) renderLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, task.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": task.ErrNotFound.Error()})
	case errors.Is(err, task.ErrStoreUnavailable):
		h.logger.Error().Err(err).Msg("Task store unreachable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "task store unavailable"})
	default:
		h.logger.Error().Err(err).Msg("Task lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

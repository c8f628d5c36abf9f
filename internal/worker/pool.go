// Package worker runs analysis off the request path. Each admitted task is
// handed to one goroutine; a weighted semaphore caps how many analyses run
// at once. Excess dispatches queue inside their goroutine, so admission
// never blocks on the cap.
package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"

	"github.com/speechcare/analysis-service/internal/analyzer"
	"github.com/speechcare/analysis-service/internal/artifacts"
	"github.com/speechcare/analysis-service/internal/metrics"
	"github.com/speechcare/analysis-service/internal/store"
	"github.com/speechcare/analysis-service/internal/task"
)

// Config configures the worker pool.
type Config struct {
	// MaxConcurrent caps simultaneously running analyses.
	MaxConcurrent int
	// AnalysisTimeout bounds a single analysis run. Zero means no timeout.
	AnalysisTimeout time.Duration
}

// Pool executes analysis tasks detached from the HTTP requests that
// admitted them.
type Pool struct {
	store     store.Store
	workspace *artifacts.Workspace
	analyzer  analyzer.Analyzer
	sem       *semaphore.Weighted
	timeout   time.Duration
	logger    zerolog.Logger
	wg        sync.WaitGroup
}

// NewPool creates a worker pool with the given dependencies.
func NewPool(s store.Store, ws *artifacts.Workspace, a analyzer.Analyzer, cfg Config, logger zerolog.Logger) *Pool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	return &Pool{
		store:     s,
		workspace: ws,
		analyzer:  a,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		timeout:   cfg.AnalysisTimeout,
		logger:    logger.With().Str("component", "worker").Logger(),
	}
}

// Dispatch hands the validated artifact to a background worker and returns
// immediately. Exactly one worker runs per dispatch.
func (p *Pool) Dispatch(taskID, artifactPath string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// Detached from the request lifetime on purpose: the admission
		// response must not wait for analysis.
		p.run(context.Background(), taskID, artifactPath)
	}()
}

// Wait blocks until all in-flight workers have finished. Used during
// shutdown and by tests.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, taskID, artifactPath string) {
	workerID := uuid.NewString()[:8]
	logger := p.logger.With().Str("worker_id", workerID).Str("task_id", taskID).Logger()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		logger.Error().Err(err).Msg("Failed to acquire worker slot")
		return
	}
	defer p.sem.Release(1)

	metrics.WorkersInFlight.Inc()
	defer metrics.WorkersInFlight.Dec()

	// Cleanup is a scoped-resource-release guarantee: the scratch directory
	// goes away whether analysis succeeded, failed, or panicked.
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Analysis panicked")
			p.recordFailure(ctx, taskID, "internal error during analysis", "analysis_failed", logger)
		}
		if err := p.workspace.Cleanup(taskID); err != nil {
			metrics.CleanupFailures.Inc()
			logger.Error().Err(err).Msg("Failed to clean up task scratch directory")
		}
	}()

	logger.Info().Msg("Worker processing task")

	tracer := otel.Tracer("worker")
	ctx, span := tracer.Start(ctx, "task.analyze")
	span.SetAttributes(attribute.String("task.id", taskID))
	defer span.End()

	// Guards against cleanup or an external process removing the artifact
	// between dispatch and processing.
	if !p.workspace.Exists(artifactPath) {
		span.SetStatus(codes.Error, "artifact missing")
		p.recordFailure(ctx, taskID, task.ErrArtifactMissing.Error(), "artifact_missing", logger)
		return
	}

	analysisCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		analysisCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	results, err := p.analyzer.Analyze(analysisCtx, artifactPath)
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		span.SetStatus(codes.Error, "analysis failed")
		msg := fmt.Sprintf("%s: %s", task.ErrAnalysisFailed.Error(), p.scrub(err.Error(), taskID, artifactPath))
		p.recordFailure(ctx, taskID, msg, "analysis_failed", logger)
		return
	}
	if len(results) == 0 {
		span.SetStatus(codes.Error, "empty result")
		p.recordFailure(ctx, taskID, "analysis returned empty result", "analysis_failed", logger)
		return
	}

	if err := p.store.Complete(ctx, taskID, results); err != nil {
		// Store unavailability is a service-level problem, not a task
		// failure; the record is left as-is for a later poll to observe.
		logger.Error().Err(err).Msg("Failed to record task completion")
		return
	}

	metrics.TasksCompleted.Inc()
	logger.Info().Dur("analysis_duration", time.Since(start)).Msg("Task completed")
}

func (p *Pool) recordFailure(ctx context.Context, taskID, message, cause string, logger zerolog.Logger) {
	metrics.TasksFailed.WithLabelValues(cause).Inc()
	if err := p.store.Fail(ctx, taskID, message); err != nil {
		logger.Error().Err(err).Msg("Failed to record task failure")
		return
	}
	logger.Warn().Str("cause", cause).Msg("Task failed")
}

// scrub keeps failure messages displayable without exposing server paths.
func (p *Pool) scrub(msg, taskID, artifactPath string) string {
	msg = strings.ReplaceAll(msg, artifactPath, "<audio>")
	msg = strings.ReplaceAll(msg, p.workspace.TaskDir(taskID), "<task dir>")
	msg = strings.ReplaceAll(msg, p.workspace.Root(), "<workspace>")
	return msg
}

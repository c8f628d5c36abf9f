// Package jobs contains background maintenance for the analysis service.
package jobs

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/speechcare/analysis-service/internal/artifacts"
	"github.com/speechcare/analysis-service/internal/store"
	"github.com/speechcare/analysis-service/internal/task"
)

// ScratchSweeper periodically removes scratch directories left behind by
// workers that crashed or were killed before their deferred cleanup ran.
// Directories belonging to processing tasks are never touched.
type ScratchSweeper struct {
	store     store.Store
	workspace *artifacts.Workspace
	logger    *zerolog.Logger
	interval  time.Duration
	minAge    time.Duration
	stopChan  chan struct{}
}

// NewScratchSweeper creates a sweeper. minAge is how old a directory must be
// before it is considered orphaned, which keeps the sweeper from racing a
// worker that is just finishing.
func NewScratchSweeper(s store.Store, ws *artifacts.Workspace, logger *zerolog.Logger, interval, minAge time.Duration) *ScratchSweeper {
	return &ScratchSweeper{
		store:     s,
		workspace: ws,
		logger:    logger,
		interval:  interval,
		minAge:    minAge,
		stopChan:  make(chan struct{}),
	}
}

// Start runs one sweep immediately, then sweeps on the configured interval
// until stopped.
func (s *ScratchSweeper) Start(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.interval).
		Msg("Starting scratch sweeper")

	if err := s.Sweep(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Initial scratch sweep failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Scratch sweeper stopping (context cancelled)")
			return
		case <-s.stopChan:
			s.logger.Info().Msg("Scratch sweeper stopping (stop signal)")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Scratch sweep failed")
			}
		}
	}
}

// Stop signals the sweeper to stop.
func (s *ScratchSweeper) Stop() {
	close(s.stopChan)
}

// Sweep removes orphaned scratch directories: those whose task is terminal,
// or whose task record does not exist, provided the directory is older than
// minAge.
func (s *ScratchSweeper) Sweep(ctx context.Context) error {
	ids, err := s.workspace.TaskIDs()
	if err != nil {
		return err
	}

	removed := 0
	for _, id := range ids {
		if !s.olderThanMinAge(id) {
			continue
		}

		t, err := s.store.Get(ctx, id)
		switch {
		case errors.Is(err, task.ErrNotFound):
			// Admission failed before the record was created; nothing will
			// ever process this directory.
		case err != nil:
			s.logger.Warn().Err(err).Str("task_id", id).Msg("Skipping scratch dir, store lookup failed")
			continue
		case !t.Status.IsTerminal():
			continue
		}

		if err := s.workspace.Cleanup(id); err != nil {
			s.logger.Error().Err(err).Str("task_id", id).Msg("Failed to remove orphaned scratch dir")
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Removed orphaned scratch directories")
	}
	return nil
}

func (s *ScratchSweeper) olderThanMinAge(taskID string) bool {
	info, err := os.Stat(s.workspace.TaskDir(taskID))
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) >= s.minAge
}

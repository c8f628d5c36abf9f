package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/speechcare/analysis-service/internal/task"
)

// MemoryStore is an in-process Store used for tests and the "memory" driver
// in local development. State does not survive a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*task.Task
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*task.Task)}
}

func (s *MemoryStore) UpsertCreate(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[taskID]; exists {
		return nil
	}
	now := time.Now().UTC()
	s.tasks[taskID] = &task.Task{
		TaskID:    taskID,
		Status:    task.StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *MemoryStore) Complete(ctx context.Context, taskID string, results map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tasks[taskID]
	if !exists || t.Status.IsTerminal() {
		return nil
	}
	t.Status = task.StatusCompleted
	t.Results = results
	t.Error = ""
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Fail(ctx context.Context, taskID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tasks[taskID]
	if !exists || t.Status.IsTerminal() {
		return nil
	}
	t.Status = task.StatusFailed
	t.Error = message
	t.Results = nil
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) SetOwner(ctx context.Context, taskID, ownerRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tasks[taskID]
	if !exists {
		return nil
	}
	t.OwnerRef = ownerRef
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, taskID string) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.tasks[taskID]
	if !exists {
		return nil, task.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]task.Projection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]task.Projection, 0, len(s.tasks))
	for _, t := range s.tasks {
		if f.OwnerRef != "" && t.OwnerRef != f.OwnerRef {
			continue
		}
		out = append(out, task.Projection{
			TaskID:    t.TaskID,
			Status:    t.Status,
			OwnerRef:  t.OwnerRef,
			CreatedAt: t.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close(ctx context.Context) error { return nil }

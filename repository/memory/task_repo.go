// Package memory provides process-local repositories for development mode and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/repository"
)

type storedTask struct {
	task domain.Task
	seq  uint64
}

// TaskRepository keeps tasks in a map guarded by a RWMutex.
type TaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]storedTask
	seq   uint64
	now   func() time.Time
}

var _ repository.TaskRepository = (*TaskRepository)(nil)

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{
		tasks: make(map[string]storedTask),
		now:   time.Now,
	}
}

// WithClock overrides the timestamp source.
func (r *TaskRepository) WithClock(now func() time.Time) *TaskRepository {
	r.now = now
	return r
}

func (r *TaskRepository) GetByID(_ context.Context, ownerID, id string) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.tasks[id]
	if !ok || stored.task.OwnerID != ownerID {
		return nil, domain.ErrTaskNotFound
	}
	task := stored.task
	return &task, nil
}

func (r *TaskRepository) List(_ context.Context, ownerID string) ([]domain.Task, error) {
	r.mu.RLock()
	owned := make([]storedTask, 0)
	for _, stored := range r.tasks {
		if stored.task.OwnerID == ownerID {
			owned = append(owned, stored)
		}
	}
	r.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		a, b := owned[i], owned[j]
		if !a.task.CreatedAt.Equal(b.task.CreatedAt) {
			return a.task.CreatedAt.After(b.task.CreatedAt)
		}
		return a.seq > b.seq
	})

	tasks := make([]domain.Task, len(owned))
	for i, stored := range owned {
		tasks[i] = stored.task
	}
	return tasks, nil
}

func (r *TaskRepository) Create(_ context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil || task.OwnerID == "" {
		return nil, domain.ErrInvalidPayload
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if _, exists := r.tasks[task.ID]; exists {
		return nil, domain.NewError(domain.ErrCodeConflict, "task already exists")
	}
	now := r.now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	r.seq++
	r.tasks[task.ID] = storedTask{task: *task, seq: r.seq}
	created := *task
	return &created, nil
}

func (r *TaskRepository) Update(_ context.Context, ownerID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tasks[id]
	if !ok || stored.task.OwnerID != ownerID {
		return nil, domain.ErrTaskNotFound
	}
	patch.Apply(&stored.task)
	stored.task.UpdatedAt = r.now()
	r.tasks[id] = stored

	updated := stored.task
	return &updated, nil
}

func (r *TaskRepository) Delete(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tasks[id]
	if !ok || stored.task.OwnerID != ownerID {
		return domain.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

// Len reports how many tasks are stored across all owners.
func (r *TaskRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

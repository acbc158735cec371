package repository

import (
	"context"

	"github.com/fastygo/taskhub/domain"
)

// TaskRepository persists tasks. Every method is scoped to an owner; a task belonging to
// someone else is reported as domain.ErrTaskNotFound.
type TaskRepository interface {
	GetByID(ctx context.Context, ownerID, id string) (*domain.Task, error)
	// List returns the owner's tasks, newest created first.
	List(ctx context.Context, ownerID string) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, ownerID, id string, patch domain.TaskPatch) (*domain.Task, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// TaskCache holds per-owner task lists in front of a TaskRepository.
type TaskCache interface {
	GetList(ctx context.Context, ownerID string) ([]domain.Task, bool, error)
	SetList(ctx context.Context, ownerID string, tasks []domain.Task) error
	Invalidate(ctx context.Context, ownerID string) error
}

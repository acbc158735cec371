package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskhub/domain"
)

func TestTaskRepositoryOwnership(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository()

	created, err := repo.Create(ctx, &domain.Task{OwnerID: "alice", Title: "mine", Priority: domain.PriorityLow})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	_, err = repo.GetByID(ctx, "bob", created.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	title := "stolen"
	_, err = repo.Update(ctx, "bob", created.ID, domain.TaskPatch{Title: &title})
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "bob", created.ID), domain.ErrTaskNotFound)

	got, err := repo.GetByID(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", got.Title)

	bobs, err := repo.List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bobs)
}

func TestTaskRepositoryListNewestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)
	repo := NewTaskRepository()

	for i, title := range []string{"first", "second", "third"} {
		_, err := repo.Create(ctx, &domain.Task{OwnerID: "alice", Title: title, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}
	// Same timestamp as "third"; insertion order breaks the tie.
	_, err := repo.Create(ctx, &domain.Task{OwnerID: "alice", Title: "fourth", CreatedAt: base.Add(2 * time.Minute)})
	require.NoError(t, err)

	tasks, err := repo.List(ctx, "alice")
	require.NoError(t, err)
	titles := make([]string, len(tasks))
	for i, task := range tasks {
		titles[i] = task.Title
	}
	assert.Equal(t, []string{"fourth", "third", "second", "first"}, titles)
}

func TestTaskRepositoryUpdateIsPartial(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)
	repo := NewTaskRepository().WithClock(func() time.Time { return clock })

	due := domain.NewDate(2026, time.October, 20)
	created, err := repo.Create(ctx, &domain.Task{OwnerID: "alice", Title: "t", Description: "d", Priority: domain.PriorityHigh, DueDate: due})
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	completed := true
	updated, err := repo.Update(ctx, "alice", created.ID, domain.TaskPatch{Completed: &completed})
	require.NoError(t, err)

	assert.True(t, updated.Completed)
	assert.Equal(t, "t", updated.Title)
	assert.Equal(t, "d", updated.Description)
	assert.Equal(t, domain.PriorityHigh, updated.Priority)
	assert.True(t, due.Equal(updated.DueDate))
	assert.Equal(t, clock, updated.UpdatedAt)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestTaskRepositoryRepeatedDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository()
	created, err := repo.Create(ctx, &domain.Task{OwnerID: "alice", Title: "t"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "alice", created.ID))
	assert.ErrorIs(t, repo.Delete(ctx, "alice", created.ID), domain.ErrTaskNotFound)
	assert.Equal(t, 0, repo.Len())
}

func TestTaskRepositoryRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository()
	_, err := repo.Create(ctx, &domain.Task{ID: "fixed", OwnerID: "alice", Title: "t"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &domain.Task{ID: "fixed", OwnerID: "alice", Title: "t"})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))
}

package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/repository"
	"github.com/fastygo/taskhub/repository/memory"
)

type fakeCache struct {
	mu          sync.Mutex
	lists       map[string][]domain.Task
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{lists: make(map[string][]domain.Task)}
}

func (c *fakeCache) GetList(_ context.Context, owner string) ([]domain.Task, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tasks, ok := c.lists[owner]
	return tasks, ok, nil
}

func (c *fakeCache) SetList(_ context.Context, owner string, tasks []domain.Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[owner] = tasks
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, owner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lists, owner)
	c.invalidated = append(c.invalidated, owner)
	return nil
}

type fakeBuffer struct {
	buffered []*domain.Task
	err      error
}

func (b *fakeBuffer) BufferTask(_ context.Context, _ string, task *domain.Task) error {
	if b.err != nil {
		return b.err
	}
	b.buffered = append(b.buffered, task)
	return nil
}

// failingRepo fails every write with an infrastructure error.
type failingRepo struct {
	repository.TaskRepository
	err error
}

func (r failingRepo) Create(context.Context, *domain.Task) (*domain.Task, error) {
	return nil, r.err
}

func TestCreateTask(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.October, 17, 10, 0, 0, 0, time.UTC)
	repo := memory.NewTaskRepository()
	uc := New(repo, nil, WithClock(func() time.Time { return now }))

	task, err := uc.CreateTask(ctx, "alice", domain.NewTask{Title: "Pay bills", Priority: "high"})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "alice", task.OwnerID)
	assert.Equal(t, domain.PriorityHigh, task.Priority)
	assert.False(t, task.Completed)
	assert.Equal(t, now, task.CreatedAt)
	assert.Equal(t, now, task.UpdatedAt)
	assert.Equal(t, 1, repo.Len())
}

func TestCreateTaskBlankTitlePersistsNothing(t *testing.T) {
	repo := memory.NewTaskRepository()
	uc := New(repo, nil)

	_, err := uc.CreateTask(context.Background(), "alice", domain.NewTask{Title: "  "})
	assert.ErrorIs(t, err, domain.ErrTitleRequired)
	assert.Equal(t, 0, repo.Len())
}

func TestOwnershipIsEnforced(t *testing.T) {
	ctx := context.Background()
	uc := New(memory.NewTaskRepository(), nil)

	task, err := uc.CreateTask(ctx, "alice", domain.NewTask{Title: "private"})
	require.NoError(t, err)

	_, err = uc.GetTask(ctx, "bob", task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	completed := true
	_, err = uc.UpdateTask(ctx, "bob", task.ID, domain.TaskPatch{Completed: &completed})
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	assert.ErrorIs(t, uc.DeleteTask(ctx, "bob", task.ID), domain.ErrTaskNotFound)

	// A missing id looks the same as someone else's task.
	_, err = uc.GetTask(ctx, "bob", "does-not-exist")
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	bobs, err := uc.ListTasks(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bobs)

	got, err := uc.GetTask(ctx, "alice", task.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
}

func TestUpdateTaskPartial(t *testing.T) {
	ctx := context.Background()
	uc := New(memory.NewTaskRepository(), nil)
	due := domain.NewDate(2026, time.October, 20)

	task, err := uc.CreateTask(ctx, "alice", domain.NewTask{Title: "t", Description: "d", Priority: "low", DueDate: due})
	require.NoError(t, err)

	title := "renamed"
	updated, err := uc.UpdateTask(ctx, "alice", task.ID, domain.TaskPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, "d", updated.Description)
	assert.Equal(t, domain.PriorityLow, updated.Priority)
	assert.True(t, due.Equal(updated.DueDate))

	cleared, err := uc.UpdateTask(ctx, "alice", task.ID, domain.TaskPatch{DueDate: domain.ClearDate()})
	require.NoError(t, err)
	assert.False(t, cleared.HasDueDate())

	blank := " "
	_, err = uc.UpdateTask(ctx, "alice", task.ID, domain.TaskPatch{Title: &blank})
	assert.ErrorIs(t, err, domain.ErrTitleRequired)
}

func TestDeleteTaskTwice(t *testing.T) {
	ctx := context.Background()
	uc := New(memory.NewTaskRepository(), nil)
	task, err := uc.CreateTask(ctx, "alice", domain.NewTask{Title: "t"})
	require.NoError(t, err)

	require.NoError(t, uc.DeleteTask(ctx, "alice", task.ID))
	assert.ErrorIs(t, uc.DeleteTask(ctx, "alice", task.ID), domain.ErrTaskNotFound)
}

func TestListTasksUsesCache(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	uc := New(memory.NewTaskRepository(), nil, WithCache(cache))

	_, err := uc.CreateTask(ctx, "alice", domain.NewTask{Title: "one"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, cache.invalidated)

	tasks, err := uc.ListTasks(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	cached, ok, _ := cache.GetList(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, tasks, cached)

	_, err = uc.CreateTask(ctx, "alice", domain.NewTask{Title: "two"})
	require.NoError(t, err)
	_, ok, _ = cache.GetList(ctx, "alice")
	assert.False(t, ok, "create must invalidate the owner's list")

	tasks, err = uc.ListTasks(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestCreateTaskBuffersOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	buf := &fakeBuffer{}
	uc := New(failingRepo{err: errors.New("connection refused")}, nil, WithBuffer(buf))

	task, err := uc.CreateTask(ctx, "alice", domain.NewTask{Title: "offline"})
	require.NoError(t, err)
	require.Len(t, buf.buffered, 1)
	assert.Equal(t, task.ID, buf.buffered[0].ID)
	assert.Equal(t, "alice", buf.buffered[0].OwnerID)
}

func TestCreateTaskDoesNotBufferDomainErrors(t *testing.T) {
	buf := &fakeBuffer{}
	uc := New(failingRepo{err: domain.ErrInvalidPayload}, nil, WithBuffer(buf))

	_, err := uc.CreateTask(context.Background(), "alice", domain.NewTask{Title: "t"})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	assert.Empty(t, buf.buffered)
}

func TestCreateTaskWithoutBufferSurfacesError(t *testing.T) {
	cause := errors.New("connection refused")
	uc := New(failingRepo{err: cause}, nil)

	_, err := uc.CreateTask(context.Background(), "alice", domain.NewTask{Title: "t"})
	assert.ErrorIs(t, err, cause)
}

// gatedRepo snapshots the list, then waits on release before returning it.
type gatedRepo struct {
	*memory.TaskRepository
	started chan struct{}
	release chan struct{}
	gated   atomic.Bool
}

func newGatedRepo() *gatedRepo {
	return &gatedRepo{
		TaskRepository: memory.NewTaskRepository(),
		started:        make(chan struct{}, 1),
		release:        make(chan struct{}),
	}
}

func (r *gatedRepo) List(ctx context.Context, ownerID string) ([]domain.Task, error) {
	tasks, err := r.TaskRepository.List(ctx, ownerID)
	if r.gated.Load() {
		r.started <- struct{}{}
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return tasks, err
}

func TestListOverlappingCreateDoesNotCacheStaleList(t *testing.T) {
	ctx := context.Background()
	repo := newGatedRepo()
	uc := New(repo, nil, WithCache(newFakeCache()))

	repo.gated.Store(true)
	slow := make(chan []domain.Task, 1)
	go func() {
		tasks, err := uc.ListTasks(ctx, "alice")
		assert.NoError(t, err)
		slow <- tasks
	}()
	<-repo.started

	_, err := uc.CreateTask(ctx, "alice", domain.NewTask{Title: "Pay bills"})
	require.NoError(t, err)

	repo.gated.Store(false)
	// A list issued after the create returned must not join the earlier load.
	tasks, err := uc.ListTasks(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	close(repo.release)
	assert.Empty(t, <-slow)

	tasks, err = uc.ListTasks(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tasks, 1, "the overlapped load must not overwrite the cache")
}

func TestSharedLoadSurvivesCancelledCaller(t *testing.T) {
	repo := newGatedRepo()
	uc := New(repo, nil, WithLoadTimeout(5*time.Second))
	_, err := uc.CreateTask(context.Background(), "alice", domain.NewTask{Title: "Pay bills"})
	require.NoError(t, err)

	repo.gated.Store(true)
	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := uc.ListTasks(firstCtx, "alice")
		firstErr <- err
	}()
	<-repo.started

	second := make(chan []domain.Task, 1)
	go func() {
		tasks, err := uc.ListTasks(context.Background(), "alice")
		assert.NoError(t, err)
		second <- tasks
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(repo.release)
	select {
	case tasks := <-second:
		assert.Len(t, tasks, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("second caller never received the shared load")
	}
}

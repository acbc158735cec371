package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/internal/infrastructure/buffer"
	"github.com/fastygo/taskhub/repository"
	"github.com/fastygo/taskhub/repository/memory"
	"github.com/fastygo/taskhub/usecase"
	taskUC "github.com/fastygo/taskhub/usecase/task"
)

type staticHealth bool

func (h staticHealth) IsOnline() bool { return bool(h) }

type flakyRepo struct {
	repository.TaskRepository
	err error
}

func (r flakyRepo) Create(context.Context, *domain.Task) (*domain.Task, error) {
	return nil, r.err
}

func newProcessor(t *testing.T, repo repository.TaskRepository, online bool) (*BufferProcessor, *buffer.Store) {
	t.Helper()
	store, err := buffer.Open(filepath.Join(t.TempDir(), "buffer.db"), buffer.EntityTask)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	bp := NewBufferProcessor(store, staticHealth(online), repo, nil, ProcessorConfig{
		Interval:   time.Minute,
		BatchSize:  10,
		MaxRetries: 2,
	})
	return bp, store
}

func bufferedTask(t *testing.T, bridge usecase.OperationBuffer, title string) *domain.Task {
	t.Helper()
	task := &domain.Task{
		ID:        title + "-id",
		OwnerID:   "alice",
		Title:     title,
		Priority:  domain.PriorityHigh,
		DueDate:   domain.NewDate(2026, time.October, 20),
		CreatedAt: time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, bridge.BufferTask(context.Background(), usecase.OperationCreate, task))
	return task
}

func TestDrainReplaysBufferedCreates(t *testing.T) {
	repo := memory.NewTaskRepository()
	bp, _ := newProcessor(t, repo, true)
	original := bufferedTask(t, NewBufferBridge(bp), "offline")
	assert.Equal(t, 1, bp.Size())

	applied, err := bp.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 0, bp.Size())

	stored, err := repo.GetByID(context.Background(), "alice", original.ID)
	require.NoError(t, err)
	assert.Equal(t, "offline", stored.Title)
	assert.Equal(t, domain.PriorityHigh, stored.Priority)
	assert.True(t, original.DueDate.Equal(stored.DueDate))
}

func TestDrainSkipsWhileOffline(t *testing.T) {
	repo := memory.NewTaskRepository()
	bp, _ := newProcessor(t, repo, false)
	bufferedTask(t, NewBufferBridge(bp), "waiting")

	applied, err := bp.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.Equal(t, 1, bp.Size())
	assert.Equal(t, 0, repo.Len())
}

func TestDrainRetriesThenDrops(t *testing.T) {
	bp, store := newProcessor(t, flakyRepo{err: errors.New("connection refused")}, true)
	bufferedTask(t, NewBufferBridge(bp), "flaky")

	_, err := bp.Drain(context.Background())
	require.NoError(t, err)
	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Retries)

	_, err = bp.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, bp.Size(), "item dropped after MaxRetries")
}

func TestDrainDropsDomainFailuresImmediately(t *testing.T) {
	bp, _ := newProcessor(t, flakyRepo{err: domain.ErrInvalidPayload}, true)
	bufferedTask(t, NewBufferBridge(bp), "rejected")

	_, err := bp.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, bp.Size())
}

func TestBridgeRejectsNilTask(t *testing.T) {
	bp, _ := newProcessor(t, memory.NewTaskRepository(), true)
	err := NewBufferBridge(bp).BufferTask(context.Background(), usecase.OperationCreate, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

// switchRepo fails creates while down is set.
type switchRepo struct {
	*memory.TaskRepository
	down atomic.Bool
}

func (r *switchRepo) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if r.down.Load() {
		return nil, errors.New("connection refused")
	}
	return r.TaskRepository.Create(ctx, task)
}

type mapCache struct {
	mu    sync.Mutex
	lists map[string][]domain.Task
}

func (c *mapCache) GetList(_ context.Context, owner string) ([]domain.Task, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tasks, ok := c.lists[owner]
	return tasks, ok, nil
}

func (c *mapCache) SetList(_ context.Context, owner string, tasks []domain.Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[owner] = tasks
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, owner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lists, owner)
	return nil
}

func TestDrainRunsReplayHooks(t *testing.T) {
	bp, _ := newProcessor(t, memory.NewTaskRepository(), true)
	var owners []string
	bp.OnReplay(func(_ context.Context, ownerID string) { owners = append(owners, ownerID) })
	bufferedTask(t, NewBufferBridge(bp), "offline")

	_, err := bp.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, owners)
}

func TestReplayedCreateShowsUpInCachedList(t *testing.T) {
	ctx := context.Background()
	repo := &switchRepo{TaskRepository: memory.NewTaskRepository()}
	repo.down.Store(true)
	bp, _ := newProcessor(t, repo, true)
	uc := taskUC.New(repo, nil,
		taskUC.WithCache(&mapCache{lists: map[string][]domain.Task{}}),
		taskUC.WithBuffer(NewBufferBridge(bp)),
	)
	bp.OnReplay(uc.InvalidateOwner)

	created, err := uc.CreateTask(ctx, "alice", domain.NewTask{Title: "Pay bills"})
	require.NoError(t, err)

	// The store is still empty, so this caches an empty list.
	tasks, err := uc.ListTasks(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, tasks)

	repo.down.Store(false)
	applied, err := bp.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, applied)

	tasks, err = uc.ListTasks(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, created.ID, tasks[0].ID)
}

package task

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/pkg/logger"
	"github.com/fastygo/taskhub/repository"
	"github.com/fastygo/taskhub/usecase"
)

// UseCase enforces task ownership. Every method takes the caller's owner id, which
// always comes from the verified credential.
type UseCase struct {
	tasks  repository.TaskRepository
	cache  repository.TaskCache
	buffer usecase.OperationBuffer
	logger *zap.Logger
	now    func() time.Time
	loads  singleflight.Group

	loadTimeout time.Duration

	// generations counts invalidations per owner. A loaded list is cached only if no
	// invalidation happened since the load began.
	genMu       sync.Mutex
	generations map[string]uint64
}

const defaultLoadTimeout = 5 * time.Second

type Option func(*UseCase)

// WithCache serves List through a per-owner cache.
func WithCache(cache repository.TaskCache) Option {
	return func(uc *UseCase) { uc.cache = cache }
}

// WithBuffer persists creates that the store rejects for later replay.
func WithBuffer(buffer usecase.OperationBuffer) Option {
	return func(uc *UseCase) { uc.buffer = buffer }
}

func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) { uc.now = now }
}

// WithLoadTimeout bounds a shared list load, which runs detached from any single caller.
func WithLoadTimeout(timeout time.Duration) Option {
	return func(uc *UseCase) {
		if timeout > 0 {
			uc.loadTimeout = timeout
		}
	}
}

func New(tasks repository.TaskRepository, logger *zap.Logger, opts ...Option) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	uc := &UseCase{
		tasks:       tasks,
		logger:      logger,
		now:         time.Now,
		loadTimeout: defaultLoadTimeout,
		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ListTasks returns all of the owner's tasks, newest created first.
func (uc *UseCase) ListTasks(ctx context.Context, ownerID string) ([]domain.Task, error) {
	log := logger.WithRequestID(ctx, uc.logger)

	if uc.cache != nil {
		cached, ok, err := uc.cache.GetList(ctx, ownerID)
		if err != nil {
			log.Warn("task cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	gen := uc.generation(ownerID)
	// Callers arriving after an invalidation get a fresh load instead of joining one that
	// may predate the write.
	key := ownerID + "#" + strconv.FormatUint(gen, 10)
	ch := uc.loads.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.loadTimeout)
		defer cancel()
		return uc.tasks.List(loadCtx, ownerID)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	shared := res.Val.([]domain.Task)
	tasks := make([]domain.Task, len(shared))
	copy(tasks, shared)

	if uc.cache != nil {
		uc.storeList(ctx, ownerID, gen, tasks)
	}
	return tasks, nil
}

func (uc *UseCase) GetTask(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	return uc.tasks.GetByID(ctx, ownerID, id)
}

// CreateTask validates input and stores a task owned by ownerID. Nothing is persisted
// when validation fails.
func (uc *UseCase) CreateTask(ctx context.Context, ownerID string, input domain.NewTask) (*domain.Task, error) {
	task, err := input.Build(ownerID)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	task.ID = uuid.NewString()
	task.CreatedAt = now
	task.UpdatedAt = now

	created, err := uc.tasks.Create(ctx, task)
	if err != nil {
		if uc.shouldBuffer(ctx, usecase.OperationCreate, task, err) {
			uc.invalidate(ctx, ownerID)
			return task, nil
		}
		return nil, err
	}
	uc.invalidate(ctx, ownerID)
	return created, nil
}

// UpdateTask applies only the supplied fields.
func (uc *UseCase) UpdateTask(ctx context.Context, ownerID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	updated, err := uc.tasks.Update(ctx, ownerID, id, patch)
	if err != nil {
		return nil, err
	}
	uc.invalidate(ctx, ownerID)
	return updated, nil
}

func (uc *UseCase) DeleteTask(ctx context.Context, ownerID, id string) error {
	if err := uc.tasks.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	uc.invalidate(ctx, ownerID)
	return nil
}

// InvalidateOwner drops the owner's cached list. The buffer processor calls it after a
// replayed create lands in the store.
func (uc *UseCase) InvalidateOwner(ctx context.Context, ownerID string) {
	uc.invalidate(ctx, ownerID)
}

func (uc *UseCase) generation(ownerID string) uint64 {
	uc.genMu.Lock()
	defer uc.genMu.Unlock()
	return uc.generations[ownerID]
}

// storeList caches tasks unless the owner was invalidated after gen was read. The lock is
// held across the write so a concurrent invalidate either wins before it or deletes it after.
func (uc *UseCase) storeList(ctx context.Context, ownerID string, gen uint64, tasks []domain.Task) {
	uc.genMu.Lock()
	defer uc.genMu.Unlock()
	if uc.generations[ownerID] != gen {
		return
	}
	if err := uc.cache.SetList(ctx, ownerID, tasks); err != nil {
		logger.WithRequestID(ctx, uc.logger).Warn("task cache write failed", zap.Error(err))
	}
}

func (uc *UseCase) invalidate(ctx context.Context, ownerID string) {
	uc.genMu.Lock()
	uc.generations[ownerID]++
	uc.genMu.Unlock()

	if uc.cache == nil {
		return
	}
	if err := uc.cache.Invalidate(ctx, ownerID); err != nil {
		logger.WithRequestID(ctx, uc.logger).Warn("task cache invalidation failed",
			zap.String("owner_id", ownerID), zap.Error(err))
	}
}

func (uc *UseCase) shouldBuffer(ctx context.Context, operation string, task *domain.Task, cause error) bool {
	if uc.buffer == nil {
		return false
	}
	var dErr *domain.Error
	if errors.As(cause, &dErr) {
		return false
	}
	log := logger.WithRequestID(ctx, uc.logger)
	if err := uc.buffer.BufferTask(ctx, operation, task); err != nil {
		log.Error("failed to buffer task operation", zap.String("operation", operation), zap.Error(err))
		return false
	}
	log.Warn("task operation buffered", zap.String("operation", operation), zap.NamedError("cause", cause))
	return true
}

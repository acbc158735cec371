package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/internal/infrastructure/buffer"
	"github.com/fastygo/taskhub/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the buffer is drained and how long items live.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// BufferProcessor replays buffered task creates into the primary store.
type BufferProcessor struct {
	store    *buffer.Store
	monitor  ConnectionHealth
	taskRepo repository.TaskRepository
	logger   *zap.Logger
	cron     *cron.Cron
	cfg      ProcessorConfig

	replayed []func(ctx context.Context, ownerID string)
}

// OnReplay registers fn to run after a buffered create reaches the store. The server uses it
// to drop the owner's cached task list. Register before Start.
func (bp *BufferProcessor) OnReplay(fn func(ctx context.Context, ownerID string)) {
	if fn != nil {
		bp.replayed = append(bp.replayed, fn)
	}
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	taskRepo repository.TaskRepository,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval < time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:    store,
		monitor:  monitor,
		taskRepo: taskRepo,
		logger:   logger.Named("buffer"),
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
	}

	drainSpec := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	if _, err := bp.cron.AddFunc(drainSpec, bp.scheduledDrain); err != nil {
		bp.logger.Error("invalid drain schedule", zap.String("spec", drainSpec), zap.Error(err))
	}
	if _, err := bp.cron.AddFunc("@hourly", bp.scheduledCleanup); err != nil {
		bp.logger.Error("invalid cleanup schedule", zap.Error(err))
	}

	return bp
}

// Start launches the cron scheduler.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started", zap.Duration("interval", bp.cfg.Interval))
}

// Stop waits for a running job to finish or ctx to expire.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	bp.logger.Info("buffer processor stopped")
}

func (bp *BufferProcessor) scheduledDrain() {
	ctx, cancel := context.WithTimeout(context.Background(), bp.cfg.Interval)
	defer cancel()
	if _, err := bp.Drain(ctx); err != nil {
		bp.logger.Error("buffer drain failed", zap.Error(err))
	}
}

func (bp *BufferProcessor) scheduledCleanup() {
	removed, err := bp.store.Cleanup(time.Now().Add(-bp.cfg.Retention))
	if err != nil {
		bp.logger.Error("buffer cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		bp.logger.Warn("expired buffer items dropped", zap.Int("count", removed))
	}
}

// Drain replays one batch and returns how many items were applied.
func (bp *BufferProcessor) Drain(ctx context.Context) (int, error) {
	if bp == nil || bp.store == nil {
		return 0, nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping buffer drain (offline)")
		return 0, nil
	}

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, item := range items {
		if err := bp.processItem(ctx, item); err != nil {
			bp.handleFailure(item, err)
			continue
		}
		applied++
		if err := bp.store.Remove(item); err != nil {
			bp.logger.Warn("failed to purge processed buffer item", zap.Error(err))
		}
	}
	return applied, nil
}

func (bp *BufferProcessor) handleFailure(item buffer.Item, err error) {
	bp.logger.Error("failed to process buffer item",
		zap.String("item_id", item.ID),
		zap.String("entity", item.Entity),
		zap.Error(err))

	item.Retries++
	// A domain error will not go away on retry.
	var dErr *domain.Error
	if item.Retries >= bp.cfg.MaxRetries || errors.As(err, &dErr) {
		bp.logger.Warn("dropping buffer item", zap.String("item_id", item.ID), zap.Int("retries", item.Retries))
		if err := bp.store.Remove(item); err != nil {
			bp.logger.Warn("failed to remove buffer item", zap.Error(err))
		}
		return
	}
	if err := bp.store.Requeue(item); err != nil {
		bp.logger.Error("failed to requeue buffer item", zap.Error(err))
	}
}

// Enqueue persists an item for later replay.
func (bp *BufferProcessor) Enqueue(item buffer.Item) error {
	if bp == nil || bp.store == nil {
		return fmt.Errorf("buffer processor not configured")
	}
	return bp.store.Enqueue(item)
}

// Size returns the number of buffered items.
func (bp *BufferProcessor) Size() int {
	if bp == nil || bp.store == nil {
		return 0
	}
	size, err := bp.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (bp *BufferProcessor) processItem(ctx context.Context, item buffer.Item) error {
	if item.Entity != buffer.EntityTask {
		return fmt.Errorf("unsupported entity %s", item.Entity)
	}

	var task domain.Task
	if err := json.Unmarshal(item.Data, &task); err != nil {
		return err
	}
	task.OwnerID = item.OwnerID

	switch item.Operation {
	case buffer.OperationCreate:
		if _, err := bp.taskRepo.Create(ctx, &task); err != nil {
			return err
		}
		for _, fn := range bp.replayed {
			fn(ctx, task.OwnerID)
		}
		return nil
	default:
		return fmt.Errorf("unsupported operation %s", item.Operation)
	}
}

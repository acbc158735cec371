package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/repository"
)

type taskCache struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewTaskCache stores each owner's task list as one JSON value.
func NewTaskCache(client *redislib.Client, ttl time.Duration) repository.TaskCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &taskCache{
		client: client,
		prefix: "taskhub:tasks:",
		ttl:    ttl,
	}
}

func (c *taskCache) GetList(ctx context.Context, ownerID string) ([]domain.Task, bool, error) {
	data, err := c.client.Get(ctx, c.key(ownerID)).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	// OwnerID is not serialized.
	for i := range tasks {
		tasks[i].OwnerID = ownerID
	}
	return tasks, true, nil
}

func (c *taskCache) SetList(ctx context.Context, ownerID string, tasks []domain.Task) error {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	return c.client.Set(ctx, c.key(ownerID), data, c.ttl).Err()
}

func (c *taskCache) Invalidate(ctx context.Context, ownerID string) error {
	return c.client.Del(ctx, c.key(ownerID)).Err()
}

func (c *taskCache) key(ownerID string) string {
	return c.prefix + ownerID
}

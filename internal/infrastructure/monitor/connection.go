package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/taskhub/internal/infrastructure/buffer"
)

// Monitor pings the configured dependencies on an interval and caches the result.
type Monitor struct {
	pg     *pgxpool.Pool
	redis  *redislib.Client
	buffer *buffer.Store

	status    Status
	mu        sync.RWMutex
	interval  time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
	logger    *zap.Logger
	observers []func(Status)
}

// New accepts nil for any dependency that is not in use.
func New(pg *pgxpool.Pool, redis *redislib.Client, buf *buffer.Store, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		pg:       pg,
		redis:    redis,
		buffer:   buf,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
		status:   Status{Healthy: pg == nil && redis == nil},
	}
}

// OnRefresh registers a callback invoked after every check. Register before Start.
func (m *Monitor) OnRefresh(fn func(Status)) {
	if fn != nil {
		m.observers = append(m.observers, fn)
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether the primary stores are reachable.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Healthy
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh()
	for {
		select {
		case <-ticker.C:
			m.Refresh()
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs all checks synchronously.
func (m *Monitor) Refresh() {
	bufferCheck, bufferSize := m.checkBuffer()
	status := Status{
		PostgreSQL: Check{Enabled: m.pg != nil, Online: m.checkPostgres()},
		Redis:      Check{Enabled: m.redis != nil, Online: m.checkRedis()},
		Buffer:     bufferCheck,
		BufferSize: bufferSize,
		LastCheck:  time.Now(),
	}
	status.Healthy = status.PostgreSQL.ok() && status.Redis.ok()

	m.mu.Lock()
	previous := m.status
	m.status = status
	m.mu.Unlock()

	if previous.Healthy != status.Healthy && !previous.LastCheck.IsZero() {
		m.logger.Warn("dependency health changed",
			zap.Bool("healthy", status.Healthy),
			zap.Bool("postgresql", status.PostgreSQL.Online),
			zap.Bool("redis", status.Redis.Online))
	}
	for _, fn := range m.observers {
		fn(status)
	}
}

func (m *Monitor) checkPostgres() bool {
	if m.pg == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return m.pg.Ping(ctx) == nil
}

func (m *Monitor) checkRedis() bool {
	if m.redis == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return m.redis.Ping(ctx).Err() == nil
}

func (m *Monitor) checkBuffer() (Check, int) {
	if m.buffer == nil {
		return Check{}, 0
	}
	size, err := m.buffer.Size()
	if err != nil {
		m.logger.Warn("buffer size check failed", zap.Error(err))
		return Check{Enabled: true}, size
	}
	return Check{Enabled: true, Online: true}, size
}

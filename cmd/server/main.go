package main

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goRedis "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskhub/api/handler"
	"github.com/fastygo/taskhub/internal/config"
	"github.com/fastygo/taskhub/internal/credential"
	"github.com/fastygo/taskhub/internal/infrastructure/buffer"
	"github.com/fastygo/taskhub/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/taskhub/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskhub/internal/infrastructure/redis"
	"github.com/fastygo/taskhub/internal/metrics"
	"github.com/fastygo/taskhub/internal/middleware"
	"github.com/fastygo/taskhub/internal/router"
	"github.com/fastygo/taskhub/internal/services"
	"github.com/fastygo/taskhub/internal/services/lifecycle"
	"github.com/fastygo/taskhub/pkg/httpcontext"
	"github.com/fastygo/taskhub/pkg/logger"
	"github.com/fastygo/taskhub/repository"
	"github.com/fastygo/taskhub/repository/memory"
	"github.com/fastygo/taskhub/repository/postgres"
	redisRepo "github.com/fastygo/taskhub/repository/redis"
	authUC "github.com/fastygo/taskhub/usecase/auth"
	chatUC "github.com/fastygo/taskhub/usecase/chat"
	profileUC "github.com/fastygo/taskhub/usecase/profile"
	taskUC "github.com/fastygo/taskhub/usecase/task"
)

const monitorInterval = 10 * time.Second

type stores struct {
	users    repository.UserRepository
	tasks    repository.TaskRepository
	sessions repository.SessionRepository
	cache    repository.TaskCache

	pool  *pgxpool.Pool
	redis *goRedis.Client
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	st := openStores(appCtx, cfg, manager, zapLogger)

	var bufferStore *buffer.Store
	if cfg.Buffer.Enabled {
		bufferStore, err = buffer.Open(cfg.Buffer.Path, buffer.EntityTask)
		if err != nil {
			zapLogger.Fatal("failed to open buffer store", zap.Error(err))
		}
		manager.RegisterCloser("buffer", bufferStore.Close)
	}

	mon := monitor.New(st.pool, st.redis, bufferStore, monitorInterval, zapLogger)

	var appMetrics *metrics.Metrics
	if cfg.HTTP.EnableMetrics {
		appMetrics = metrics.New(cfg.AppName)
		mon.OnRefresh(appMetrics.ObserveStatus)
	}
	mon.Start()
	manager.Register("monitor", func(context.Context) error {
		mon.Stop()
		return nil
	})

	taskOpts := []taskUC.Option{taskUC.WithLoadTimeout(cfg.Context.RequestTimeout)}
	if st.cache != nil {
		taskOpts = append(taskOpts, taskUC.WithCache(st.cache))
	}
	var processor *services.BufferProcessor
	if bufferStore != nil {
		processor = services.NewBufferProcessor(bufferStore, mon, st.tasks, zapLogger, services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  cfg.Buffer.BatchSize,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		})
		taskOpts = append(taskOpts, taskUC.WithBuffer(services.NewBufferBridge(processor)))
	}

	tokens := credential.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	hasher := credential.NewPasswordHasher(cfg.Auth.BcryptCost)

	authUseCase := authUC.New(st.users, st.sessions, tokens, hasher, zapLogger)
	profileUseCase := profileUC.New(st.users, zapLogger)
	taskUseCase := taskUC.New(st.tasks, zapLogger, taskOpts...)
	if processor != nil {
		processor.OnReplay(taskUseCase.InvalidateOwner)
		processor.Start()
		manager.Register("buffer_processor", func(ctx context.Context) error {
			processor.Stop(ctx)
			return nil
		})
	}
	chatUseCase := chatUC.New()

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:   apiHandler.NewAuthHandler(authUseCase, profileUseCase, ctxAdapter, zapLogger),
		Task:   apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Chat:   apiHandler.NewChatHandler(chatUseCase, ctxAdapter, zapLogger),
		Health: apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	opts := router.Options{
		Auth:  middleware.BearerAuth(authUseCase, ctxAdapter, zapLogger),
		Pprof: cfg.HTTP.EnablePprof,
	}
	if appMetrics != nil {
		opts.AccessLog = middleware.AccessLog(zapLogger, appMetrics)
		opts.Metrics = appMetrics.Handler()
	} else {
		opts.AccessLog = middleware.AccessLog(zapLogger, nil)
	}
	r := router.New(handlers, opts)

	server := &fasthttp.Server{
		Handler:            r.Handler,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		Concurrency:        cfg.HTTP.MaxConn,
		Name:               cfg.AppName,
		MaxRequestBodySize: 1 << 20,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("storage", cfg.Storage),
			zap.Bool("cache", st.cache != nil),
			zap.Bool("buffer", bufferStore != nil),
		)
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Error("server stopped", zap.Error(err))
			cancel()
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

// openStores picks the user, task and session stores. Redis is optional: without it
// sessions stay in memory and task lists are not cached.
func openStores(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, log *zap.Logger) stores {
	var st stores

	switch cfg.Storage {
	case config.StorageMemory:
		st.users = memory.NewUserRepository()
		st.tasks = memory.NewTaskRepository()
		log.Warn("using in-memory storage; data is lost on restart")
	default:
		if err := pgInfra.RunMigrations(cfg.Database, cfg.Migrations, log); err != nil {
			log.Fatal("migrations failed", zap.Error(err))
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal("postgres connection failed", zap.Error(err))
		}
		manager.Register("postgres", func(context.Context) error {
			pgInfra.Close(pool, log)
			return nil
		})
		st.pool = pool
		st.users = postgres.NewUserRepository(pool)
		st.tasks = postgres.NewTaskRepository(pool)
	}

	client, err := redisInfra.NewClient(ctx, cfg.Redis)
	switch {
	case err == nil:
		manager.RegisterCloser("redis", client.Close)
		st.redis = client
		st.sessions = redisRepo.NewSessionRepository(client, cfg.JWT.TTL)
		if cfg.Cache.Enabled {
			st.cache = redisRepo.NewTaskCache(client, cfg.Cache.TTL)
		}
	case err == redisInfra.ErrDisabled:
		st.sessions = memory.NewSessionRepository()
		log.Info("redis disabled; sessions kept in memory")
	default:
		log.Fatal("redis connection failed", zap.Error(err))
	}

	return st
}

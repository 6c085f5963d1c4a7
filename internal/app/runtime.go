package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goRedis "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/banking/api/handler"
	"github.com/fastygo/banking/internal/config"
	amqpInfra "github.com/fastygo/banking/internal/infrastructure/amqp"
	"github.com/fastygo/banking/internal/infrastructure/buffer"
	"github.com/fastygo/banking/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/banking/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/banking/internal/infrastructure/redis"
	"github.com/fastygo/banking/internal/metrics"
	"github.com/fastygo/banking/internal/middleware"
	"github.com/fastygo/banking/internal/router"
	"github.com/fastygo/banking/internal/services/lifecycle"
	"github.com/fastygo/banking/pkg/httpcontext"
	"github.com/fastygo/banking/repository"
	"github.com/fastygo/banking/repository/memory"
	"github.com/fastygo/banking/repository/postgres"
)

// Runtime holds the process-wide infrastructure of one service binary.
type Runtime struct {
	Config   *config.Config
	Logger   *zap.Logger
	Manager  *lifecycle.Manager
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Redis    *goRedis.Client
	Pool     *pgxpool.Pool
	Store    *buffer.Store
	Monitor  *monitor.Monitor
	Locks    *redisInfra.Locker
}

// Bootstrap connects to Redis, opens the channel store, and, for postgres storage,
// migrates and connects the database. Every opened resource is registered with manager.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger, manager *lifecycle.Manager) (*Runtime, error) {
	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Manager:  manager,
		Metrics:  metrics.New(),
		Registry: prometheus.NewRegistry(),
	}
	if err := rt.Metrics.Register(rt.Registry); err != nil {
		return nil, err
	}
	if err := rt.Registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}

	if cfg.Storage.Driver == config.StoragePostgres {
		if err := pgInfra.RunMigrations(cfg, logger); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		rt.Pool = pool
		manager.Register("postgres", func(context.Context) error {
			pgInfra.Close(pool, logger)
			return nil
		})
	}

	redisClient, err := redisInfra.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	rt.Redis = redisClient
	manager.Register("redis", func(context.Context) error {
		return redisClient.Close()
	})
	rt.Locks = redisInfra.NewLocker(redisClient, cfg.Lock, rt.Metrics, logger)

	store, err := buffer.Open(cfg.Channels.Path, buffer.Options{MaxSize: cfg.Channels.MaxSize})
	if err != nil {
		return nil, fmt.Errorf("channel store: %w", err)
	}
	rt.Store = store
	manager.Register("channels", func(context.Context) error {
		return store.Close()
	})

	var pg monitor.Pinger
	if rt.Pool != nil {
		pg = rt.Pool
	}
	rt.Monitor = monitor.New(pg, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}, nil, 10*time.Second, logger)
	rt.Monitor.Refresh()
	rt.Monitor.Start()
	manager.Register("monitor", func(context.Context) error {
		rt.Monitor.Stop()
		return nil
	})
	return rt, nil
}

func (rt *Runtime) Deps() Deps {
	return Deps{
		Store:   rt.Store,
		Locks:   rt.Locks,
		Health:  rt.Monitor,
		Metrics: rt.Metrics,
		Logger:  rt.Logger,
	}
}

// AccountRepositories returns the account store and its outbox for the configured driver.
func (rt *Runtime) AccountRepositories() (repository.AccountRepository, repository.OutboxRepository) {
	if rt.Pool != nil {
		return postgres.NewAccountRepository(rt.Pool), postgres.NewOutboxRepository(rt.Pool)
	}
	store := memory.NewAccountStore()
	return store, store.Outbox()
}

// TransactionRepositories returns the transaction store, the account projection and the
// outbox for the configured driver.
func (rt *Runtime) TransactionRepositories() (repository.TransactionRepository, repository.AccountViewRepository, repository.OutboxRepository) {
	if rt.Pool != nil {
		return postgres.NewTransactionRepository(rt.Pool), postgres.NewAccountViewRepository(rt.Pool), postgres.NewOutboxRepository(rt.Pool)
	}
	store := memory.NewTransactionStore()
	return store, memory.NewAccountViewStore(), store.Outbox()
}

// ConnectBroker forwards the pipeline's outbound channel to the AMQP exchange and feeds
// deliveries of the peer context into its inbound channel. Without AMQP_URL events stay
// queued in the outbound channel.
func (rt *Runtime) ConnectBroker(ctx context.Context, p *Pipeline, peer string) error {
	cfg := rt.Config.AMQP
	if !cfg.Enabled() {
		rt.Logger.Warn("AMQP_URL not set, outbound events will queue locally")
		return nil
	}

	publisher, err := amqpInfra.NewPublisher(cfg.Exchange, amqpInfra.DialPublisher(cfg.URL, cfg.Exchange), rt.Logger)
	if err != nil {
		return fmt.Errorf("amqp publisher: %w", err)
	}
	rt.Manager.Register("amqp_publisher", func(context.Context) error {
		return publisher.Close()
	})
	p.ForwardTo(publisher)

	listener, err := amqpInfra.NewListener(
		amqpInfra.DialConsumer(cfg.URL, cfg.Exchange, cfg.Queue, []string{peer + ".#"}),
		cfg.ReconnectMin,
		cfg.ReconnectMax,
		rt.Logger,
	)
	if err != nil {
		return fmt.Errorf("amqp listener: %w", err)
	}
	stopped := make(chan struct{})
	rt.Manager.Go(ctx, "amqp_listener", func(ctx context.Context) error {
		defer close(stopped)
		return listener.Listen(ctx, p.Sink().Accept)
	})
	// Registered after the channel store so the listener is gone before the store closes.
	rt.Manager.Register("amqp_listener", func(ctx context.Context) error {
		select {
		case <-stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	return nil
}

// StartPipelines starts the background loops and reports channel sizes to the monitor.
func (rt *Runtime) StartPipelines(pipelines ...*Pipeline) {
	for _, p := range pipelines {
		rt.Monitor.Watch(p.Channels()...)
		p.Start()
		rt.Manager.Register("pipeline", p.Stop)
	}
}

// Serve starts the HTTP server in the background.
func (rt *Runtime) Serve(ctx context.Context, handlers router.Handlers) {
	handlers.Health = apiHandler.NewHealthHandler(rt.Monitor, rt.Config.App.Service, nil, rt.Logger)
	if rt.Config.HTTP.EnableMetrics {
		handlers.Metrics = apiHandler.NewMetricsHandler(rt.Registry)
	}
	r := router.New(handlers, middleware.JWTAuth(rt.Config.JWT.Secret, rt.Config.JWT.Issuer, rt.Logger))

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  rt.Config.HTTP.ReadTimeout,
		WriteTimeout: rt.Config.HTTP.WriteTimeout,
		IdleTimeout:  rt.Config.HTTP.IdleTimeout,
		Concurrency:  rt.Config.HTTP.MaxConn,
		Name:         rt.Config.App.Service,
	}
	rt.Manager.Go(ctx, "http_server", func(context.Context) error {
		rt.Logger.Info("server started", zap.String("address", rt.Config.Address()))
		return server.ListenAndServe(rt.Config.Address())
	})
	rt.Manager.Register("http_server", func(context.Context) error {
		return server.Shutdown()
	})
}

// Adapter builds the request context adapter for handlers.
func (rt *Runtime) Adapter() *httpcontext.Adapter {
	return httpcontext.NewAdapter(rt.Config.Context.RequestTimeout)
}

// Wait blocks until ctx is cancelled or a background component fails, then shuts down.
func (rt *Runtime) Wait(ctx context.Context, cancel context.CancelFunc) error {
	var failure error
	select {
	case <-ctx.Done():
	case failure = <-rt.Manager.Failed():
		rt.Logger.Error("component failure, shutting down", zap.Error(failure))
	}
	cancel()
	if err := rt.Manager.Shutdown(context.Background()); err != nil {
		return err
	}
	return failure
}

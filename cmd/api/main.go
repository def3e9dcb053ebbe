package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-navi/internal/config"
	"backend-navi/internal/db"
	"backend-navi/internal/events"
	"backend-navi/internal/logging"
	"backend-navi/internal/server"
	"backend-navi/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

// Resources are the long-lived connections Run owns and closes on shutdown.
type Resources struct {
	Postgres  *pgxpool.Pool
	Redis     *redis.Client
	Store     storage.Store
	Publisher events.Publisher
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	migrate         func(databaseURL string) error
	dialBroker      func(config.Config) (events.Publisher, error)
	connectStore    func(context.Context, config.Config) (storage.Store, error)
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, Resources, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		migrate:         db.RunMigrations,
		dialBroker:      dialBroker,
		connectStore:    connectStore,
		notify:          signal.Notify,
		run:             Run,
	}
}

func dialBroker(cfg config.Config) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		return events.Noop{}, nil
	}
	return events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
}

func connectStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	if cfg.S3Bucket == "" {
		return nil, nil
	}
	return storage.NewS3(ctx, storage.S3Config{
		Region:          cfg.AWSRegion,
		Bucket:          cfg.S3Bucket,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		Timeout:         cfg.S3Timeout,
	})
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	var res Resources
	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		logging.Error().Err(err).Msg("postgres connection failed")
	} else {
		res.Postgres = pg
		if cfg.RunMigrations {
			if err := deps.migrate(cfg.PostgresURL); err != nil {
				logging.Error().Err(err).Msg("migrations failed")
			}
		}
	}

	res.Redis = deps.connectRedis(cfg)

	res.Publisher, err = deps.dialBroker(cfg)
	if err != nil {
		logging.Warn().Err(err).Msg("amqp unavailable, domain events are dropped")
		res.Publisher = events.Noop{}
	}

	res.Store, err = deps.connectStore(context.Background(), cfg)
	if err != nil {
		logging.Warn().Err(err).Msg("object storage unavailable, uploads disabled")
		res.Store = nil
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, res, signals, nil); err != nil {
		logging.Error().Err(err).Msg("server exited with error")
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, res Resources, signals <-chan os.Signal, listen ListenFunc) error {
	deps := server.Deps{
		Redis:     res.Redis,
		Store:     res.Store,
		Publisher: res.Publisher,
	}
	if res.Postgres != nil {
		deps.DB = res.Postgres
	}
	srv := server.NewServer(cfg, deps)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
		logging.Info().Msg("shutdown signal received")
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	if err := srv.Stream.Close(); err != nil {
		logging.Warn().Err(err).Msg("close stream hub")
	}
	if closer, ok := res.Publisher.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logging.Warn().Err(err).Msg("close amqp publisher")
		}
	}
	if res.Postgres != nil {
		res.Postgres.Close()
	}
	if res.Redis != nil {
		_ = res.Redis.Close()
	}
	return nil
}

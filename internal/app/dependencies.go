// Package app holds the process bootstrap shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/kec-gateway/internal/config"
	"github.com/noah-isme/kec-gateway/internal/db"
	"github.com/noah-isme/kec-gateway/internal/klarna"
	"github.com/noah-isme/kec-gateway/internal/lock"
	"github.com/noah-isme/kec-gateway/internal/obs"
	"github.com/noah-isme/kec-gateway/internal/resilience"
	"github.com/noah-isme/kec-gateway/internal/settings"
)

// Dependencies enumerates the infrastructure shared across modules.
type Dependencies struct {
	Config    *config.Config
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Validator *validator.Validate
	Locker    lock.Locker
	Logger    zerolog.Logger
}

// Close releases the connections.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

// Open connects Postgres and Redis and builds the shared helpers.
func Open(ctx context.Context, cfg *config.Config, appName string, redisMetrics bool, logger zerolog.Logger) (*Dependencies, error) {
	pool, err := OpenPostgres(ctx, cfg.DatabaseURL, appName)
	if err != nil {
		return nil, err
	}
	rdb, err := OpenRedis(ctx, cfg.RedisURL, redisMetrics, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &Dependencies{
		Config:    cfg,
		DB:        pool,
		Redis:     rdb,
		Validator: validator.New(validator.WithRequiredStructEnabled()),
		Locker:    lock.Locker{R: rdb, RetryBackoff: cfg.LockRetryBackoff, Prefix: "kec:lock:"},
		Logger:    logger,
	}, nil
}

// OpenPostgres creates a traced pgx pool and pings it.
func OpenPostgres(ctx context.Context, databaseURL, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// OpenRedis creates an instrumented Redis client and pings it.
func OpenRedis(ctx context.Context, redisURL string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(databaseURL string) error {
	if databaseURL == "" {
		return errors.New("database url not configured")
	}
	return db.Up(databaseURL)
}

// NewKlarnaClient builds the webhook management client. The environment follows the stored
// testmode setting unless KLARNA_BASE_URL overrides it.
func NewKlarnaClient(cfg config.KlarnaConfig, store *settings.Service, logger zerolog.Logger) *klarna.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &klarna.Client{
		HTTP: resilience.HTTPClient{
			Client: &http.Client{
				Timeout:   timeout,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker: resilience.NewBreaker(resilience.BreakerConfig{
				Target:       "klarna",
				MinRequests:  5,
				FailureRatio: 0.5,
				OpenFor:      30 * time.Second,
				Logger:       &logger,
			}),
			Timeout: timeout,
		},
		Username:      cfg.Username,
		Password:      cfg.Password,
		ModuleVersion: cfg.ModuleVersion,
		BaseURL:       cfg.BaseURL,
		Testmode: func(ctx context.Context) (bool, error) {
			st, err := store.Load(ctx)
			if err != nil {
				return false, err
			}
			return st.IsTestmode(), nil
		},
	}
}

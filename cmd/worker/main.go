package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/kec-gateway/internal/app"
	"github.com/noah-isme/kec-gateway/internal/checkout"
	"github.com/noah-isme/kec-gateway/internal/config"
	"github.com/noah-isme/kec-gateway/internal/obs"
	"github.com/noah-isme/kec-gateway/internal/order"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "kec"), nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	deps, err := app.Open(startCtx, cfg, "kec-worker", false, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("open dependencies")
	}
	defer deps.Close()

	sweeper := &checkout.Sweeper{
		Orders:       order.NewPGRepository(deps.DB),
		Locker:       deps.Locker,
		LockTTL:      cfg.SweepInterval,
		AbandonAfter: cfg.SweepAbandonAfter,
		Batch:        100,
		Logger:       &logger,
	}

	logger.Info().Dur("interval", cfg.SweepInterval).Dur("abandon_after", cfg.SweepAbandonAfter).Msg("worker starting")
	run(ctx, sweeper, cfg.SweepInterval, logger)
	logger.Info().Msg("worker shutdown complete")
}

func run(ctx context.Context, sweeper *checkout.Sweeper, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := sweeper.RunOnce(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Error().Err(err).Msg("sweep abandoned drafts")
		case n > 0:
			logger.Info().Int("cancelled", n).Msg("swept abandoned drafts")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

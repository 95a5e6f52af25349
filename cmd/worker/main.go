package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ativasaude/guia-api/internal/config"
	"github.com/ativasaude/guia-api/internal/repository/postgres"
	auditService "github.com/ativasaude/guia-api/internal/service/audit"
	internalworker "github.com/ativasaude/guia-api/internal/worker"
	"github.com/ativasaude/guia-api/pkg/clock"
	"github.com/ativasaude/guia-api/pkg/logger"
	"github.com/ativasaude/guia-api/pkg/messaging/redis"
	"github.com/ativasaude/guia-api/pkg/metrics"
	"github.com/ativasaude/guia-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	appLogger := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{URL: cfg.Redis.URL}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	m := metrics.NewMetrics("guia", "worker")
	clk := clock.System()

	base := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(base)
	materialRepo := postgres.NewMaterialRepository(base)
	authRepo := postgres.NewAuthorizationRepository(base)

	auditSvc := auditService.NewService(materialRepo, authRepo, m)

	outboxProcessor := worker.NewOutboxProcessor(outboxRepo, &base, broker, worker.OutboxProcessorConfig{
		BatchSize:    cfg.Worker.OutboxBatchSize,
		PollInterval: cfg.Worker.OutboxInterval,
		Retention:    cfg.Worker.OutboxRetention,
	}, appLogger, m)
	auditSweep := internalworker.NewAuditSweepWorker(auditSvc, clk, cfg.Worker.AuditScanInterval, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	go outboxProcessor.Start(ctx)
	go auditSweep.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down workers...")
	cancel()

	// Give in-flight batches a moment to finish before the process exits.
	time.Sleep(time.Second)
	log.Info().Msg("workers exited")
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ativasaude/guia-api/internal/config"
	"github.com/ativasaude/guia-api/internal/handler"
	auditHandler "github.com/ativasaude/guia-api/internal/handler/audit"
	authorizationHandler "github.com/ativasaude/guia-api/internal/handler/authorization"
	guideHandler "github.com/ativasaude/guia-api/internal/handler/guide"
	invoiceHandler "github.com/ativasaude/guia-api/internal/handler/invoice"
	referenceHandler "github.com/ativasaude/guia-api/internal/handler/reference"
	"github.com/ativasaude/guia-api/internal/lifecycle"
	"github.com/ativasaude/guia-api/internal/middleware"
	"github.com/ativasaude/guia-api/internal/repository/postgres"
	"github.com/ativasaude/guia-api/internal/router"
	auditService "github.com/ativasaude/guia-api/internal/service/audit"
	authorizationService "github.com/ativasaude/guia-api/internal/service/authorization"
	guideService "github.com/ativasaude/guia-api/internal/service/guide"
	invoiceService "github.com/ativasaude/guia-api/internal/service/invoice"
	materialService "github.com/ativasaude/guia-api/internal/service/material"
	referenceService "github.com/ativasaude/guia-api/internal/service/reference"
	"github.com/ativasaude/guia-api/pkg/clock"
	"github.com/ativasaude/guia-api/pkg/logger"
	"github.com/ativasaude/guia-api/pkg/messaging/redis"
	"github.com/ativasaude/guia-api/pkg/metrics"
	"github.com/ativasaude/guia-api/pkg/notifier"
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

	if err := middleware.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	m := metrics.NewMetrics("guia", "api")
	clk := clock.System()
	policy := lifecycle.Policy{RequireMaterialAuthorization: cfg.Policy.RequireMaterialAuthorization}

	base := postgres.NewBaseRepository(db)
	beneficiaryRepo := postgres.NewBeneficiaryRepository(base)
	professionalRepo := postgres.NewProfessionalRepository(base)
	providerRepo := postgres.NewProviderRepository(base)
	guideRepo := postgres.NewGuideRepository(base)
	procedureRepo := postgres.NewProcedureRepository(base)
	materialRepo := postgres.NewMaterialRepository(base)
	authRepo := postgres.NewAuthorizationRepository(base)
	invoiceRepo := postgres.NewInvoiceRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	guideSvc := guideService.NewService(&base, guideRepo, procedureRepo, materialRepo, authRepo,
		beneficiaryRepo, professionalRepo, providerRepo, policy, clk, m)
	materialSvc := materialService.NewService(&base, materialRepo, procedureRepo, guideRepo, guideSvc, m)
	authSvc := authorizationService.NewService(&base, authRepo, procedureRepo, materialRepo, providerRepo, guideSvc, clk)
	auditSvc := auditService.NewService(materialRepo, authRepo, m)
	invoiceSvc := invoiceService.NewService(&base, invoiceRepo, guideRepo, providerRepo, outboxRepo,
		auditSvc, clk, m, log.Logger)
	referenceSvc := referenceService.NewService(beneficiaryRepo, professionalRepo, providerRepo, clk)

	if cfg.SMTP.Host != "" {
		emailNotifier := notifier.NewEmailNotifier(notifier.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, appLogger)
		invoiceSvc.Register(invoiceService.NewEmailObserver(emailNotifier, providerRepo, log.Logger))
	}

	broker, err := redis.NewRedisBroker(redis.Config{URL: cfg.Redis.URL}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT)
	healthHandler := handler.NewHealthHandler(db, broker)

	r := router.NewRouter(
		authMiddleware,
		healthHandler,
		router.Config{
			RateLimitRPS:   cfg.RateLimit.RequestsPerSecond,
			RateLimitBurst: cfg.RateLimit.Burst,
			CORS:           middleware.DefaultCORSConfig(),
		},
		referenceHandler.NewHandler(referenceSvc),
		guideHandler.NewHandler(guideSvc, materialSvc),
		authorizationHandler.NewHandler(authSvc),
		invoiceHandler.NewHandler(invoiceSvc),
		auditHandler.NewHandler(auditSvc, clk, cfg.Cache.ReportTTL, cfg.Cache.CleanupInterval),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/config"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/abuse"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/delivery"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/handler"
	submissionHandler "github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/handler/submission"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/middleware"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/notifier"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/repository"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/repository/memory"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/repository/postgres"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/router"
	submissionService "github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/service/submission"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/logger"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	appLogger := logger.New(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Pretty:     cfg.Log.Pretty,
	})

	m := metrics.New("lead_pipeline", nil)

	// Submission store: Postgres when configured, in-memory otherwise.
	var repo repository.SubmissionRepository
	if cfg.Database.DSN != "" {
		db, err := postgres.NewDB(cfg.Database.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		repo = postgres.NewSubmissionRepository(db)
		appLogger.Info("using postgres submission store")
	} else {
		repo = memory.NewSubmissionRepository()
		appLogger.Warn("no database configured, submissions are stored in memory only")
	}

	// Rate-limit window: shared via Redis when configured.
	var rateStore abuse.RateStore
	if cfg.Redis.URL != "" {
		redisStore, err := abuse.NewRedisRateStore(cfg.Redis.URL, cfg.RateLimit.Max, cfg.RateLimit.Window)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redisStore.Close()
		rateStore = redisStore
		appLogger.Info("using redis rate-limit store")
	} else {
		rateStore = abuse.NewMemoryRateStore(cfg.RateLimit.Max, cfg.RateLimit.Window)
	}

	filter := abuse.NewFilter(rateStore, appLogger)

	engine := delivery.NewEngine(delivery.Config{
		Endpoint:    cfg.Webhook.URL,
		Timeout:     cfg.Webhook.Timeout,
		MaxAttempts: cfg.Webhook.MaxAttempts,
	}, repo, appLogger, m)

	fallback := notifier.NewEmailNotifier(notifier.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		To:       cfg.SMTP.To,
	}, appLogger, m)

	svc := submissionService.NewService(
		submissionService.Config{DedupTTL: cfg.DedupTTL},
		repo, filter, engine, fallback, appLogger, m,
	)

	r := router.NewRouter(
		submissionHandler.NewHandler(svc),
		handler.NewHandler(),
		router.Config{
			RateLimitRPS:   cfg.RateLimit.GlobalRPS,
			RateLimitBurst: cfg.RateLimit.GlobalBurst,
			CORS:           middleware.DefaultCORSConfig(),
			AdminToken:     cfg.AdminToken,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server")

	// In-flight submissions can take the full delivery worst case.
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info("server exited")
}

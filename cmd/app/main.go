package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"subscription-radar/internal/config"
	"subscription-radar/internal/domain/ports/repository"
	"subscription-radar/internal/infra/api"
	"subscription-radar/internal/infra/api/apiv1"
	"subscription-radar/internal/infra/db/postgres"
	"subscription-radar/internal/infra/logging"
	"subscription-radar/internal/infra/metrics"
	rds "subscription-radar/internal/infra/redis"
	"subscription-radar/internal/infra/sched"
	"subscription-radar/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dev := flag.Bool("dev", false, "development mode (console logging, relaxed validation)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath, *dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	log := logger.With().Str("component", "main").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	redisClient, err := rds.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()

	metrics.MustRegister()

	var (
		subRepo     repository.SubscriptionRepository = postgres.NewPostgresSubscriptionRepo(pool)
		txnRepo     repository.TransactionRepository  = postgres.NewPostgresTransactionRepo(pool)
		accountRepo repository.AccountRepository      = postgres.NewPostgresAccountRepo(pool)
		notifRepo   repository.NotificationRepository = postgres.NewPostgresNotificationRepo(pool)
		userRepo    repository.UserRepository         = postgres.NewPostgresUserRepo(pool)
	)

	locker := rds.NewLocker(redisClient)
	limiter := rds.NewRateLimiter(redisClient)
	txManager := postgres.NewTxManager(pool)

	detectionUC := usecase.NewDetectionUseCase(txnRepo, subRepo, txManager, locker, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, detectionUC, logger)
	notifUC := usecase.NewNotificationUseCase(subRepo, notifRepo, cfg.Detection.UpcomingWindowDays, logger)
	accountUC := usecase.NewAccountUseCase(accountRepo)
	txnUC := usecase.NewTransactionUseCase(txnRepo, accountRepo)
	statsUC := usecase.NewStatsUseCase(subRepo)

	detectOpts := usecase.DetectionOptions{
		LookbackDays:   cfg.Detection.LookbackDays,
		MinOccurrences: cfg.Detection.MinOccurrences,
	}

	v1 := apiv1.NewServer(subUC, notifUC, accountUC, txnUC, limiter, apiv1.RateLimitConfig{
		Limit:  cfg.Detection.RecomputeRateLimit,
		Window: cfg.Detection.RecomputeRateWindow,
		KeyFn:  rds.RecomputeKey,
	}, logger)

	r := chi.NewRouter()
	r.Use(api.TraceID())
	r.Use(api.Recover(logger))
	r.Use(api.Timeout(30 * time.Second))
	r.Use(api.RequestLog(logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(api.RequireAuth(cfg.Auth.JWTSecret))
		v1.Register(r)
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	recomputeWorker := sched.NewRecomputeWorker(cfg.Detection.RecomputeInterval, userRepo, detectionUC, statsUC, detectOpts, logger)
	notifWorker := sched.NewNotificationWorker(cfg.Detection.NotificationInterval, notifUC, logger)
	go func() { _ = recomputeWorker.Run(ctx) }()
	go func() { _ = notifWorker.Run(ctx) }()

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("bye")
}

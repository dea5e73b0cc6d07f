package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/handler"
	"stockledger/internal/infra"
	"stockledger/internal/router"
	"stockledger/internal/service"
	"stockledger/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL, cfg.MigrationsAuto)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Infrastructure ───────────────────────────────────────────────────────
	catalogCB := infra.NewCircuitBreaker(infra.DefaultCBConfig("catalog"))
	catalog := infra.NewCatalogClient(cfg.CatalogURL, rdb, time.Duration(cfg.CatalogCacheTTLMinutes)*time.Minute, catalogCB)
	if catalog == nil {
		catalogCB = nil
	}

	var (
		dispatcher *worker.Dispatcher
		notifier   service.Notifier
	)
	if rdb != nil {
		dispatcher = worker.NewDispatcher(rdb)
		if n := worker.NewEmailNotifier(dispatcher, cfg.AlertEmail); n != nil {
			notifier = n
		}
	}

	svcs := router.NewServices(cfg, db, catalog, notifier)

	// ── Background consumers ─────────────────────────────────────────────────
	orderWorker := worker.NewOrderEventWorker(svcs.OrderEvents)
	var queue handler.OrderEventQueue
	if rdb != nil {
		handlers := map[string]worker.JobHandler{worker.JobOrderEvent: orderWorker}
		if mailer := infra.NewMailer(cfg); mailer != nil {
			handlers[worker.JobEmail] = worker.NewEmailWorker(mailer)
		}
		worker.NewPool(rdb, cfg.OrderEventMaxAttempts, handlers).Start(ctx, cfg.WorkerPoolSize)
		worker.StartRetryCron(ctx, rdb)
		if cfg.OrderEventsAsync {
			queue = dispatcher
		}
	} else if cfg.OrderEventsAsync {
		log.Warn().Msg("ORDER_EVENTS_ASYNC needs REDIS_URL; processing order events inline")
	}

	if cfg.SQSOrderQueueURL != "" {
		consumer, err := infra.NewSQSConsumer(ctx, cfg.SQSOrderQueueURL, cfg.AWSRegion, cfg.AWSEndpoint)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create sqs consumer")
		}
		go consumer.Run(ctx, orderWorker.HandleSQS)
	}

	r := router.New(cfg, db, svcs, router.Options{Redis: rdb, Queue: queue, CatalogCB: catalogCB})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("stockledger listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server exited")
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/audit"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/config"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/database"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/handler"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/matching"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/notify"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/queue"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/ranking"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/repository"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/router"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/scheduler"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/service"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("APP_ENV") == "dev" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unavailable, rate limit and cache disabled, exclusions in memory")
	}

	// Repositories.
	entryRepo := repository.NewWaitlistRepo(db)
	slotRepo := repository.NewSlotRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	notificationRepo := repository.NewNotificationRepo(db)

	// Engines.
	ranker := ranking.New(config.LoadRankingWeights())
	matcher := matching.New(entryRepo, ranker)
	sink := audit.NewLogSink(log)

	publisher := queue.NewPublisher(cfg.AMQPURL, log)

	gateway := notify.New(
		notify.NewLogSender(log),
		notify.TextRenderer{},
		notify.FixedClock{},
		notify.NewRedisQuota(rdb, cfg.NotifyQuotaPerHour, time.Hour),
		notificationRepo,
		publisher,
		sink,
		notify.Config{
			TokenSecret: cfg.TokenSecret,
			TokenTTL:    cfg.TokenTTL,
			BaseURL:     cfg.BaseURL,
			MaxAttempts: cfg.NotifyMaxAttempts,
		},
		log,
	)

	// Services.
	exclusions := service.NewExclusionStore(rdb, 24*time.Hour)
	slotSvc := service.NewSlotService(db, slotRepo, entryRepo, bookingRepo, sink, cfg.HoldTTL, log)
	cascadeSvc := service.NewCascadeService(db, slotRepo, entryRepo, matcher, gateway,
		exclusions, slotSvc, publisher, sink, cfg.TokenSecret, log)
	waitlistSvc := service.NewWaitlistService(entryRepo, ranker, sink, cfg.MaxActivePerPhone, log)

	// Background workers: the queue consumer and the periodic tickers.
	worker := scheduler.NewWorker(cascadeSvc, cascadeSvc, exclusions,
		notificationRepo, entryRepo, slotRepo, gateway, log)
	consumer := queue.NewConsumer(cfg.AMQPURL, worker, publisher, log)
	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("queue consumer stopped")
		}
	}()

	ticker := scheduler.New(scheduler.Config{
		SweepInterval:   cfg.SweepInterval,
		RescoreInterval: cfg.RescoreInterval,
		CleanupInterval: cfg.CleanupInterval,
		RetentionDays:   cfg.RetentionDays,
	}, publisher, entryRepo, ranker, log)
	go func() {
		if err := ticker.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	// HTTP.
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	router.Register(e, router.Handlers{
		Waitlist: handler.NewWaitlistHandler(waitlistSvc),
		Slots:    handler.NewSlotHandler(slotSvc, cascadeSvc, slotRepo),
		Confirm:  handler.NewConfirmHandler(cascadeSvc),
	}, rdb)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
	if err := e.Start(addr); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

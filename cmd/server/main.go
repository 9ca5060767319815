package main // Entry point package

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"concert-reservation/internal/config"
	"concert-reservation/internal/database"
	"concert-reservation/internal/handler"
	"concert-reservation/internal/lock"
	"concert-reservation/internal/logger"
	"concert-reservation/internal/queue"
	"concert-reservation/internal/repository"
	"concert-reservation/internal/router"
	"concert-reservation/internal/service"
	"concert-reservation/internal/waitingqueue"
	"concert-reservation/internal/worker"
)

func main() {
	_ = godotenv.Load() // load .env when present; real env always wins

	cfg := config.Load()
	adm := config.LoadAdmissionConfig()

	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		zl.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		// The admission queue, lock and retry pipeline all live in Redis.
		zl.Fatal("redis connect failed")
	}
	defer rdb.Close()

	// Repositories
	tokens := repository.NewTokenRepo(db)
	seats := repository.NewSeatRepo(db)
	reservations := repository.NewReservationRepo(db)
	balances := repository.NewBalanceRepo(db)
	payments := repository.NewPaymentRepo(db)

	// Queue-side infrastructure
	wq := waitingqueue.New(rdb)
	locker := lock.New(rdb)
	retryQueue := service.NewRetryQueue(rdb)
	ranking := service.NewRankingUpdater(rdb, zl)
	publisher := service.NewEventPublisher(cfg.AMQPURL)

	// Services
	admission := service.NewAdmissionService(wq, tokens, cfg.TokenSecret, adm.Capacity, adm.ActiveWindow, zl)
	reservationSvc := service.NewReservationService(db, seats, reservations, zl)
	paymentSvc := service.NewPaymentService(db, reservations, seats, balances, payments, zl)

	// Post-commit fan-out: ranking is best-effort, the bus publish falls
	// back to the persistent retry queue on failure.
	paymentSvc.RegisterHook(func(ctx context.Context, ev queue.PaymentCompletedEvent) {
		ranking.Record(ctx, ev.ScheduleID, time.Now().UTC())
	})
	paymentSvc.RegisterHook(func(ctx context.Context, ev queue.PaymentCompletedEvent) {
		if err := publisher.PublishPaymentCompleted(ctx, ev); err != nil {
			zl.Warn("publish failed, queueing for retry", zap.Error(err))
			body, mErr := json.Marshal(ev)
			if mErr != nil {
				zl.Error("event marshal failed", zap.Error(mErr))
				return
			}
			if qErr := retryQueue.Enqueue(ctx, body); qErr != nil {
				zl.Error("retry enqueue failed", zap.Error(qErr))
			}
		}
	})

	// Background workers; every instance runs all three.
	scheduler := worker.NewActivationScheduler(admission, locker, adm.ActivateInterval, adm.LockWait, adm.LockLease, zl)
	reaper := worker.NewReaper(db, reservations, seats, adm.ReapInterval, zl)
	retrier := worker.NewRetryWorker(retryQueue, publisher, adm.RetryInterval, zl)
	scheduler.Start()
	reaper.Start()
	retrier.Start()

	if os.Getenv("PAYMENT_CONSUMER_ENABLED") == "true" {
		go func() {
			if err := queue.StartPaymentConsumer(cfg.AMQPURL); err != nil {
				zl.Error("payment consumer stopped", zap.Error(err))
			}
		}()
	}

	// HTTP surface
	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterQueue(e, handler.NewQueueHandler(admission), rdb, cfg.TokenSecret)
	router.RegisterReservation(e, handler.NewReservationHandler(reservationSvc), handler.NewPaymentHandler(paymentSvc), wq, cfg.TokenSecret)

	addr := ":" + cfg.Port
	zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	go func() {
		if err := e.Start(addr); err != nil {
			zl.Info("http server stopped", zap.Error(err))
		}
	}()

	// Graceful shutdown: stop accepting requests, then stop the workers.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		zl.Warn("http shutdown", zap.Error(err))
	}
	scheduler.Stop()
	reaper.Stop()
	retrier.Stop()
}

// cmd/nudge-engine/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nudge-engine/internal/common/config"
	"nudge-engine/internal/common/database"
	"nudge-engine/internal/common/logger"
	"nudge-engine/internal/common/mailer"
	"nudge-engine/internal/common/observability"
	"nudge-engine/internal/scheduler"
	"nudge-engine/internal/store"
	"nudge-engine/internal/tasks/deliverytrack"
	"nudge-engine/internal/tasks/dispatch"
	"nudge-engine/internal/tasks/draftexpire"
	"nudge-engine/internal/tasks/remindscan"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting nudge engine...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init SES mailer ---
	sender, err := mailer.NewSESMailer(
		ctx,
		cfg.Integrations.AWS.Region,
		cfg.Integrations.AWS.SES.FromEmail,
		config.GetDuration(cfg.Notifications.SendTimeout),
	)
	if err != nil {
		zapLog.Fatal("ses mailer init failed", zap.Error(err))
	}
	zapLog.Info("SES mailer initialized")

	// --- Stores ---
	queueStore := store.NewQueueStore(pg.GetDB())
	ruleStore := store.NewRuleStore(pg.GetDB())
	snapshotStore := store.NewSnapshotStore(pg.GetDB())
	milestoneStore := store.NewMilestoneStore(pg.GetDB())
	draftStore := store.NewDraftStore(pg.GetDB())
	commStore := store.NewCommunicationStore(pg.GetDB())
	partyStore := store.NewPartyStore(pg.GetDB())

	// --- Services ---
	scanner := remindscan.NewService(
		&remindscan.Config{DefaultTimezone: cfg.Notifications.DefaultTimezone},
		snapshotStore, ruleStore, queueStore, milestoneStore, log,
	)

	dispatcher := dispatch.NewService(
		&dispatch.Config{
			BatchSize:  cfg.Notifications.DispatchBatch,
			MaxRetries: cfg.Notifications.MaxSendRetries,
		},
		queueStore, snapshotStore, commStore, esClient, sender, log,
	)

	janitor := draftexpire.NewService(
		draftStore,
		time.Duration(cfg.Notifications.DraftTTLHours)*time.Hour,
		log,
	)

	tracker := deliverytrack.NewService(queueStore, partyStore, redisClient, log)

	// --- Scheduler ---
	sched := scheduler.New(log, obs)
	sched.Register(scheduler.Task{
		Name:  "reminder-scan",
		Every: config.GetInterval(cfg.Scheduler.ScanInterval),
		Run:   scanner.Run,
	})
	sched.Register(scheduler.Task{
		Name:  "notification-dispatch",
		Every: config.GetInterval(cfg.Scheduler.DispatchInterval),
		Run:   dispatcher.Run,
	})
	sched.Register(scheduler.Task{
		Name:  "draft-expiry",
		Every: config.GetInterval(cfg.Scheduler.JanitorInterval),
		Run:   janitor.Run,
	})
	sched.Start(ctx)

	// --- HTTP listener: webhooks, unsubscribe, health, metrics ---
	mux := http.NewServeMux()
	deliverytrack.NewHandler(tracker, log).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: mux,
	}
	go func() {
		zapLog.Info("HTTP listener started", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http listener failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping tasks...")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("http shutdown incomplete", zap.Error(err))
	}

	zapLog.Info("Nudge engine stopped gracefully")
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/banking/compliance-engine/internal/config"
	"github.com/banking/compliance-engine/internal/crypto"
	"github.com/banking/compliance-engine/internal/repository/postgres"
	redisrepo "github.com/banking/compliance-engine/internal/repository/redis"
	"github.com/banking/compliance-engine/internal/repository/s3"
	"github.com/banking/compliance-engine/internal/service"
	"github.com/banking/compliance-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Info("Starting compliance reconciliation worker...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	encryptor, err := crypto.NewFieldEncryptor(
		cfg.Encryption.EncryptionKeysBase64,
		cfg.Encryption.CurrentKeyVersion,
	)
	if err != nil {
		sugar.Fatalf("Failed to initialize encryptor: %v", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		sugar.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pool.Close()

	checkRepo := postgres.NewCheckRepository(pool)
	reportRepo := postgres.NewReportRepository(pool, encryptor)
	txRepo := postgres.NewTransactionRepository(pool)
	settingsRepo := postgres.NewSettingsRepository(pool)
	alertRepo := postgres.NewAlertRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)

	s3Repo, err := s3.NewArchiveRepository(ctx, cfg.S3)
	if err != nil {
		sugar.Fatalf("Failed to initialize S3 repository: %v", err)
	}

	regulatoryService := service.NewRegulatoryService(
		reportRepo, settingsRepo, checkRepo, txRepo, alertRepo, auditRepo,
		s3Repo, nil, logger)

	// The lease keeps concurrent worker replicas from sweeping the same
	// organization; without Redis the worker still runs, unleased.
	var leaser worker.Leaser
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		sugar.Warnf("Redis unavailable: %v (running without sweep leases)", err)
	} else {
		leaser = redisrepo.NewLease(redisClient, cfg.Worker.LeaseTTL)
	}
	defer redisClient.Close()

	reconciler := worker.NewReconciler(
		regulatoryService, settingsRepo, txRepo, checkRepo, reportRepo, alertRepo, auditRepo,
		leaser, worker.Options{
			Interval:       cfg.Worker.Interval,
			SweepLookback:  cfg.Worker.SweepLookback,
			ReviewCheckTTL: cfg.Reporting.ReviewCheckTTL,
		}, logger)

	go func() {
		if err := reconciler.Run(ctx); err != nil && err != context.Canceled {
			sugar.Errorf("Reconciler stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sugar.Info("Shutting down worker...")
	cancel()
}

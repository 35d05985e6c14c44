package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/banking/compliance-engine/internal/api"
	"github.com/banking/compliance-engine/internal/config"
	"github.com/banking/compliance-engine/internal/crypto"
	"github.com/banking/compliance-engine/internal/events"
	"github.com/banking/compliance-engine/internal/repository/elasticsearch"
	"github.com/banking/compliance-engine/internal/repository/postgres"
	redisrepo "github.com/banking/compliance-engine/internal/repository/redis"
	"github.com/banking/compliance-engine/internal/repository/s3"
	"github.com/banking/compliance-engine/internal/risk"
	"github.com/banking/compliance-engine/internal/rules"
	"github.com/banking/compliance-engine/internal/screening"
	"github.com/banking/compliance-engine/internal/service"
	"github.com/banking/compliance-engine/internal/velocity"
)

func main() {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Info("Starting Compliance Decision Engine...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Crypto
	encryptor, err := crypto.NewFieldEncryptor(
		cfg.Encryption.EncryptionKeysBase64,
		cfg.Encryption.CurrentKeyVersion,
	)
	if err != nil {
		sugar.Fatalf("Failed to initialize encryptor: %v", err)
	}

	// 4. Repositories
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		sugar.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pool.Close()

	checkRepo := postgres.NewCheckRepository(pool)
	ruleRepo := postgres.NewRuleRepository(pool)
	reportRepo := postgres.NewReportRepository(pool, encryptor)
	txRepo := postgres.NewTransactionRepository(pool)
	settingsRepo := postgres.NewSettingsRepository(pool)
	alertRepo := postgres.NewAlertRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	watchlistRepo := postgres.NewWatchlistRepository(pool)

	esRepo, err := elasticsearch.NewSearchRepository(cfg.Elasticsearch)
	if err != nil {
		sugar.Warnf("Failed to connect to Elasticsearch: %v (search will be unavailable)", err)
		esRepo = nil
	}

	s3Repo, err := s3.NewArchiveRepository(ctx, cfg.S3)
	if err != nil {
		sugar.Fatalf("Failed to initialize S3 repository: %v", err)
	}

	cache := redisrepo.NewCache(cfg.Redis, logger)
	if err := cache.Ping(ctx); err != nil {
		sugar.Warnf("Redis unavailable: %v (caching disabled until it recovers)", err)
	}
	defer cache.Close()

	// 5. Engines
	screener := screening.NewScreener(watchlistRepo, screening.Config{
		MatchThreshold: cfg.Screening.MatchThreshold,
		MaxMatches:     cfg.Screening.MaxMatches,
	}, logger)
	monitor := velocity.NewMonitor(txRepo, cfg.Velocity.Window, logger)
	ruleEngine := rules.NewEngine(logger)
	scorer := risk.NewScorer(risk.Weights{
		KYC:         cfg.Risk.KYCWeight,
		Sanctions:   cfg.Risk.SanctionsWeight,
		Transaction: cfg.Risk.TransactionWeight,
		Geographic:  cfg.Risk.GeographicWeight,
		Velocity:    cfg.Risk.VelocityWeight,
	})

	// 6. Events producer
	producer, err := events.NewProducer(cfg.Kafka, logger)
	if err != nil {
		sugar.Warnf("Failed to create Kafka producer: %v (alert publishing disabled)", err)
		producer = nil
	} else {
		defer producer.Close()
	}

	// 7. Services
	var indexer service.DecisionIndexer
	var reportIndexer service.ReportIndexer
	var searcher api.DecisionSearcher
	if esRepo != nil {
		indexer = esRepo
		reportIndexer = esRepo
		searcher = esRepo
	}
	var publisher service.AlertPublisher
	if producer != nil {
		publisher = producer
	}

	complianceService := service.NewComplianceService(
		checkRepo, ruleRepo, settingsRepo, alertRepo, auditRepo,
		screener, monitor, ruleEngine, scorer,
		cache, indexer, publisher,
		service.ComplianceOptions{
			EvaluationTimeout:    cfg.Reporting.EvaluationTimeout,
			ReviewCheckTTL:       cfg.Reporting.ReviewCheckTTL,
			ReviewThreshold:      cfg.Risk.ReviewThreshold,
			BlockMatchConfidence: cfg.Screening.BlockConfidence,
		}, logger)

	regulatoryService := service.NewRegulatoryService(
		reportRepo, settingsRepo, checkRepo, txRepo, alertRepo, auditRepo,
		s3Repo, reportIndexer, logger)

	// 8. Kafka consumer
	consumer, err := events.NewTransactionConsumer(cfg.Kafka, complianceService, txRepo, producer, logger)
	if err != nil {
		sugar.Warnf("Failed to create Kafka consumer: %v (transaction stream disabled)", err)
	} else {
		go func() {
			sugar.Info("Starting transaction consumer loop...")
			if err := consumer.Start(ctx); err != nil {
				sugar.Errorf("Kafka consumer failed: %v", err)
			}
		}()
		defer consumer.Close()
	}

	// 9. API server
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	complianceGroup := e.Group("/compliance")
	reportsGroup := e.Group("/reports")

	keyData, err := os.ReadFile(cfg.Auth.JWTPublicKeyPath)
	var signingKey interface{}
	if err == nil {
		signingKey, err = jwt.ParseRSAPublicKeyFromPEM(keyData)
		if err != nil {
			sugar.Warnf("Failed to parse JWT public key: %v", err)
		}
	} else {
		sugar.Warnf("JWT public key not found at %s: %v", cfg.Auth.JWTPublicKeyPath, err)
	}

	if signingKey != nil {
		jwtConfig := echojwt.Config{
			SigningKey:    signingKey,
			SigningMethod: "RS256",
			NewClaimsFunc: func(c echo.Context) jwt.Claims {
				return new(jwt.MapClaims)
			},
		}
		complianceGroup.Use(echojwt.WithConfig(jwtConfig))
		reportsGroup.Use(echojwt.WithConfig(jwtConfig))
		sugar.Info("JWT Authentication enabled")
	} else {
		sugar.Warn("JWT Authentication DISABLED - Missing Public Key (Security Risk)")
	}

	api.NewComplianceHandler(complianceService, searcher).RegisterRoutes(complianceGroup)
	api.NewRegulatoryHandler(regulatoryService).RegisterRoutes(reportsGroup)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Shutting down the server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sugar.Info("Shutting down service...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		sugar.Fatal(err)
	}
}

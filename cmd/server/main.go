package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourorg/pairs-analytics/internal/alert"
	"github.com/yourorg/pairs-analytics/internal/config"
	"github.com/yourorg/pairs-analytics/internal/feed"
	"github.com/yourorg/pairs-analytics/internal/handler"
	"github.com/yourorg/pairs-analytics/internal/kafka"
	"github.com/yourorg/pairs-analytics/internal/live"
	"github.com/yourorg/pairs-analytics/internal/metrics"
	"github.com/yourorg/pairs-analytics/internal/middleware"
	"github.com/yourorg/pairs-analytics/internal/notify"
	"github.com/yourorg/pairs-analytics/internal/repository"
	"github.com/yourorg/pairs-analytics/internal/service"
	"github.com/yourorg/pairs-analytics/internal/store"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logger
	logger, err := createLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Durable tick and bar logs
	var tickLog store.TickLog
	var barLog store.BarLog
	if cfg.Database.Enabled {
		db, err := connectToDB(cfg.Database, logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := repository.EnsureSchema(ctx, db); err != nil {
			logger.Fatal("Failed to create schema", zap.Error(err))
		}
		tickLog = repository.NewTickRepository(db, logger)
		barLog = repository.NewBarRepository(db, logger)
	} else {
		logger.Warn("Database disabled, ticks are kept in memory only")
		memLog := store.NewMemoryLog()
		tickLog, barLog = memLog, memLog
	}

	// Tick store, restored from the durable log
	tickStore := store.NewStore(tickLog, barLog, cfg.Store.Retention, logger)
	if err := tickStore.Restore(ctx); err != nil {
		logger.Fatal("Failed to restore tick store", zap.Error(err))
	}

	// Optional downstream channels
	redisClient := setupRedis(cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	producer := setupKafka(cfg.Kafka, logger)
	if producer != nil {
		defer producer.Close()
	}

	// Live websocket hub
	hub := live.NewHub(tickStore, cfg.Live.HeartbeatInterval, logger)
	go hub.Run(ctx)

	// Alert fan-out
	notifiers := []notify.Notifier{hub}
	if redisClient != nil {
		notifiers = append(notifiers, notify.NewRedisNotifier(redisClient, cfg.Redis.AlertChannel, logger))
	}
	if producer != nil {
		notifiers = append(notifiers, notify.NewKafkaNotifier(producer, cfg.Kafka.AlertsTopic))
	}
	alertEngine := alert.NewEngine(logger)

	// Live feeds
	runner := setupFeeds(cfg, tickStore, logger)
	if cfg.Feed.AutoStart {
		if err := runner.Start(cfg.Feed.Mode, cfg.Feed.Symbols); err != nil {
			logger.Error("Failed to auto-start feed", zap.String("mode", cfg.Feed.Mode), zap.Error(err))
		}
	}

	// Initialize services
	marketDataService := service.NewMarketDataService(tickStore, cfg.Analytics.Timeframe, logger)
	analyticsService := service.NewAnalyticsService(
		tickStore,
		alertEngine,
		notify.NewMulti(logger, notifiers...),
		cfg.Analytics,
		logger,
	)

	// Initialize handlers
	marketDataHandler := handler.NewMarketDataHandler(marketDataService, logger)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService, logger)
	alertHandler := handler.NewAlertHandler(alertEngine, logger)
	ingestHandler := handler.NewIngestHandler(runner, cfg.Feed.Mode, logger)
	liveHandler := handler.NewLiveHandler(hub, logger)

	// Set up HTTP server with Gin
	router := setupRouter(
		marketDataHandler,
		analyticsHandler,
		alertHandler,
		ingestHandler,
		liveHandler,
		redisClient,
		logger,
		cfg,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		metricsSrv = metrics.Serve(cfg.Server.MetricsAddr)
		logger.Info("Serving metrics", zap.String("addr", cfg.Server.MetricsAddr))
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	runner.Stop()
	cancel()

	// Create a deadline for server shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func createLogger(level string) (*zap.Logger, error) {
	// Parse log level
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Create logger config
	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

// connectToDB retries with exponential backoff until ConnectTimeout elapses
func connectToDB(dbConfig config.DatabaseConfig, logger *zap.Logger) (*sqlx.DB, error) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = dbConfig.ConnectTimeout

	var db *sqlx.DB
	err := backoff.RetryNotify(func() error {
		var err error
		db, err = sqlx.Connect("pgx", dbConfig.DSN())
		return err
	}, policy, func(err error, wait time.Duration) {
		logger.Warn("Database not ready, retrying",
			zap.Error(err),
			zap.Duration("retry_in", wait))
	})
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(dbConfig.MaxOpenConns)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	return db, nil
}

// setupRedis returns nil when Redis is not configured or not reachable
func setupRedis(cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logger.Error("Failed to connect to Redis", zap.Error(err))
		_ = client.Close()
		return nil
	}

	logger.Info("Connected to Redis", zap.String("addr", cfg.Addr))
	return client
}

// setupKafka returns nil when no brokers are configured
func setupKafka(cfg config.KafkaConfig, logger *zap.Logger) *kafka.Producer {
	brokers := cfg.BrokerList()
	if len(brokers) == 0 {
		return nil
	}

	producer := kafka.NewProducer(brokers, cfg.ClientID, logger)

	logger.Info("Initialized Kafka producer", zap.Strings("brokers", brokers))
	return producer
}

func setupFeeds(cfg *config.Config, sink feed.Sink, logger *zap.Logger) *feed.Runner {
	runner := feed.NewRunner(sink, logger)

	runner.Register("ws", func(symbols []string) (feed.Source, error) {
		return feed.NewBinanceFeed(cfg.Feed.BinanceURL, symbols, logger)
	})

	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		runner.Register("kafka", func(symbols []string) (feed.Source, error) {
			return feed.NewKafkaFeed(feed.KafkaConfig{
				Brokers: brokers,
				Topic:   cfg.Kafka.TicksTopic,
				GroupID: cfg.Kafka.GroupID,
			}, symbols, logger), nil
		})
	}

	return runner
}

func setupRouter(
	marketDataHandler *handler.MarketDataHandler,
	analyticsHandler *handler.AnalyticsHandler,
	alertHandler *handler.AlertHandler,
	ingestHandler *handler.IngestHandler,
	liveHandler *handler.LiveHandler,
	redisClient *redis.Client,
	logger *zap.Logger,
	cfg *config.Config,
) *gin.Engine {
	router := gin.New()

	// Use middlewares
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		status := "healthy"

		if redisClient != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
			defer cancel()

			if _, err := redisClient.Ping(ctx).Result(); err != nil {
				status = "degraded"
				logger.Warn("Redis health check failed", zap.Error(err))
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status": status,
			"redis":  redisClient != nil,
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Live stream
	router.GET("/ws/live", liveHandler.Stream)

	// API routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.RedisRateLimit(redisClient, middleware.RateLimitConfig{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		KeyPrefix:         "pairs:",
	}, logger))
	{
		// Market data routes
		v1.GET("/symbols", marketDataHandler.GetSymbols)
		v1.GET("/resampled/:symbol", marketDataHandler.GetResampled)
		v1.GET("/export/:symbol", marketDataHandler.ExportCSV)

		// Analytics routes
		analytics := v1.Group("/analytics")
		{
			analytics.GET("/pair", analyticsHandler.GetPairAnalytics)
			analytics.GET("/pair/export", analyticsHandler.ExportPairCSV)
			analytics.GET("/corr-matrix", analyticsHandler.GetCorrelationMatrix)
		}

		// Protected uploads
		upload := v1.Group("/upload")
		upload.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret, logger))
		{
			upload.POST("/ndjson", marketDataHandler.UploadNDJSON)
			upload.POST("/bars", marketDataHandler.UploadBars)
		}

		// Alert routes
		alerts := v1.Group("/alerts")
		{
			alerts.GET("", alertHandler.ListRules)

			// Protected rule management
			alertsAuth := alerts.Group("")
			alertsAuth.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret, logger))
			alertsAuth.POST("", alertHandler.CreateRule)
			alertsAuth.DELETE("/:id", alertHandler.DeleteRule)
		}

		// Feed control routes
		ingest := v1.Group("/ingest")
		{
			ingest.GET("/status", ingestHandler.Status)

			ingestAuth := ingest.Group("")
			ingestAuth.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret, logger))
			ingestAuth.POST("/start", ingestHandler.Start)
			ingestAuth.POST("/stop", ingestHandler.Stop)
		}

		// Service-to-service routes (requires service key)
		serviceRoutes := v1.Group("/service")
		serviceRoutes.Use(middleware.ServiceAuthMiddleware(cfg.Auth.ServiceKey, logger))
		{
			serviceRoutes.POST("/ticks", marketDataHandler.AppendTicks)
		}
	}
	return router
}

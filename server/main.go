package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anvers/formcoach/server/config"
	"github.com/anvers/formcoach/server/handlers"
	"github.com/anvers/formcoach/server/middleware"
	"github.com/anvers/formcoach/server/persist"
	"github.com/anvers/formcoach/server/pipeline"
	"github.com/anvers/formcoach/server/processor"
	"github.com/anvers/formcoach/server/store"
)

type Server struct {
	router      *gin.Engine
	logger      *zap.Logger
	engine      *store.Engine
	ingestor    *processor.Ingestor
	persistence persist.Store
	rateLimiter *middleware.RateLimiter
	config      *config.Config
}

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize logger
	var logger *zap.Logger
	var err error

	if cfg.Logging.Format == "json" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	// Validate configuration
	if err := cfg.ValidateConfig(); err != nil {
		logger.Fatal("Configuration validation failed", zap.Error(err))
	}

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("addr", addr),
			zap.String("environment", cfg.Server.Environment))

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Drain the ingestion queue before the stores go away
	if err := server.ingestor.Shutdown(10 * time.Second); err != nil {
		logger.Error("Failed to shutdown ingestor", zap.Error(err))
	}

	if server.rateLimiter != nil {
		server.rateLimiter.Shutdown()
	}

	server.engine.Close()

	if err := server.persistence.Close(); err != nil {
		logger.Error("Failed to close persistence", zap.Error(err))
	}

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Initialize persistence. Try sqlite first, fall back to memory so a
	// broken data directory never keeps the engine from starting.
	var persistence persist.Store
	if cfg.Persistence.Backend == "sqlite" {
		sqliteStore, err := persist.NewSQLiteStore(cfg.Persistence.Path, logger)
		if err != nil {
			logger.Warn("Failed to open sqlite persistence, using memory store", zap.Error(err))
			persistence = persist.NewMemoryStore(logger)
		} else {
			persistence = sqliteStore
		}
	} else {
		persistence = persist.NewMemoryStore(logger)
	}

	// Initialize the engine and its stores
	engineCfg := store.EngineConfig{
		PoseHistoryCap:  cfg.Engine.PoseHistoryCap,
		PoseErrorCap:    cfg.Engine.PoseErrorCap,
		AnalysisPoseCap: cfg.Engine.AnalysisPoseCap,
		Monitor: store.MonitorConfig{
			HistoryCap:        cfg.Monitor.HistoryCap,
			RetentionWindow:   cfg.Monitor.RetentionWindow,
			ThermalHistoryCap: cfg.Monitor.ThermalCap,
			MinFPS:            cfg.Monitor.MinFPS,
			MaxMemoryMB:       cfg.Monitor.MaxMemoryMB,
			MaxCPUUsage:       cfg.Monitor.MaxCPUUsage,
			LowBatteryLevel:   cfg.Monitor.LowBatteryLevel,
			MaxPoseDetectMs:   cfg.Monitor.MaxPoseDetectMs,
			BatteryThreshold:  cfg.Monitor.BatteryThreshold,
			BatteryHysteresis: store.DefaultMonitorConfig().BatteryHysteresis,
		},
		Thermal: store.DefaultThermalTable(),
	}
	engine := store.NewEngine(engineCfg, store.NewSimulatedHardware(), persistence, logger)

	// Initialize the telemetry/frame ingestor
	ingestor := processor.NewIngestor(engine, processor.IngestorConfig{
		QueueSize: cfg.Engine.IngestQueueSize,
		Workers:   cfg.Engine.IngestWorkers,
	}, logger)

	// Initialize the inference pipeline
	inferenceClient := pipeline.NewClient(cfg.Pipeline.BaseURL, &pipeline.ClientConfig{
		Timeout:             cfg.Pipeline.Timeout,
		MaxRetries:          cfg.Pipeline.MaxRetries,
		RetryDelay:          cfg.Pipeline.RetryDelay,
		HealthCheckInterval: cfg.Pipeline.HealthCheckInterval,
	}, logger)
	runner := pipeline.NewRunner(inferenceClient, engine.Analysis, logger)

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(
		cfg.Security.RateLimitRPS,
		cfg.Security.RateLimitBurst,
		logger,
	)

	// Setup router
	router := gin.New()

	// Add middleware
	router.Use(middleware.RequestLogger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Security.AllowedOrigins))
	router.Use(middleware.RequestSizeLimit(cfg.Security.MaxRequestSize))

	// Initialize handlers
	wsHandler := handlers.NewWebSocketHandler(engine, ingestor, logger)
	stateHandler := handlers.NewStateHandler(engine, ingestor, runner, logger)

	// Setup routes
	setupRoutes(router, wsHandler, stateHandler, rateLimiter)

	return &Server{
		router:      router,
		logger:      logger,
		engine:      engine,
		ingestor:    ingestor,
		persistence: persistence,
		rateLimiter: rateLimiter,
		config:      cfg,
	}, nil
}

func setupRoutes(router *gin.Engine, wsHandler *handlers.WebSocketHandler, stateHandler *handlers.StateHandler, rateLimiter *middleware.RateLimiter) {
	// Health check
	router.GET("/health", middleware.HealthCheck())

	// WebSocket endpoint (rate limited)
	router.GET("/ws", rateLimiter.RateLimit(), wsHandler.HandleWebSocket)

	// API routes
	api := router.Group("/api/v1")
	{
		api.GET("/health", middleware.HealthCheck())

		protected := api.Group("/")
		protected.Use(rateLimiter.RateLimit())
		{
			protected.GET("/state", stateHandler.GetState)
			protected.GET("/stats", stateHandler.GetStats)
			protected.GET("/performance", stateHandler.GetPerformance)

			protected.POST("/recording/start", stateHandler.StartRecording)
			protected.POST("/recording/pause", stateHandler.PauseRecording)
			protected.POST("/recording/resume", stateHandler.ResumeRecording)
			protected.POST("/recording/stop", stateHandler.StopRecording)
			protected.POST("/recording/reset", stateHandler.ResetEngine)

			protected.POST("/camera/initialize", stateHandler.InitializeCamera)
			protected.POST("/camera/switch", stateHandler.SwitchCamera)
			protected.POST("/camera/permissions", stateHandler.RequestPermissions)
			protected.PATCH("/camera/settings", stateHandler.UpdateSettings)

			protected.GET("/analysis", stateHandler.GetAnalysis)
			protected.POST("/analysis/start", stateHandler.StartAnalysis)
			protected.POST("/analysis/retry", stateHandler.RetryAnalysis)
			protected.PATCH("/analysis/audio", stateHandler.UpdateAudio)
			protected.POST("/analysis/audio/toggle-controls", stateHandler.ToggleAudioControls)
		}
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"synccode/internal/core/services"
	httphandlers "synccode/internal/handlers/http"
	"synccode/internal/infrastructure/middleware"
	"synccode/internal/infrastructure/monitoring"
	"synccode/internal/infrastructure/repositories/memory"
	"synccode/internal/infrastructure/sandbox"
	syncer "synccode/internal/infrastructure/sync"
	"synccode/pkg/config"
	"synccode/pkg/logger"
	"synccode/pkg/tracing"
	"synccode/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/synccode/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize tracing
	if cfg.Tracing.Enabled {
		tracingCfg := tracing.DefaultConfig()
		tracingCfg.Enabled = true
		tracingCfg.JaegerURL = cfg.Tracing.JaegerURL
		tracingCfg.SampleRate = cfg.Tracing.SampleRate

		tp, err := tracing.Init(tracingCfg)
		if err != nil {
			log.Fatalw("failed to initialize tracing", "error", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			tp.Shutdown(ctx)
		}()
	}

	// Initialize repositories
	sessionRepo := memory.NewMemorySessionRepository()
	inviteRepo := memory.NewMemoryInviteRepository()
	capabilityRepo := memory.NewMemoryCapabilityRepository()

	// Initialize redis bridge for cross-instance room replication
	instanceID := utils.GenerateInstanceID()

	var redisClient *redis.Client
	var bridge *syncer.RedisBridge
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		bridge = syncer.NewRedisBridge(redisClient, instanceID, log)
		defer bridge.Close()
	}

	// Initialize sync hub
	var hub *syncer.Hub
	if bridge != nil {
		hub = syncer.NewHub(cfg, bridge, log)
	} else {
		hub = syncer.NewHub(cfg, nil, log)
	}

	bridgeCtx, bridgeCancel := context.WithCancel(context.Background())
	defer bridgeCancel()
	if bridge != nil {
		go func() {
			if err := bridge.Subscribe(bridgeCtx, hub); err != nil && err != context.Canceled {
				log.Errorw("redis bridge subscription ended", "error", err)
			}
		}()
	}

	// Initialize services
	sessionService := services.NewSessionService(sessionRepo, inviteRepo, capabilityRepo, log)
	runner := sandbox.NewDockerRunner(sandbox.Config{
		Runtime:     cfg.Sandbox.Runtime,
		Images:      cfg.Sandbox.Images,
		MemoryLimit: cfg.Sandbox.MemoryLimit,
		CPULimit:    cfg.Sandbox.CPULimit,
	}, log)
	executionService := services.NewExecutionService(runner, log)

	// Initialize monitoring
	var collector *monitoring.PrometheusCollector
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector()
	}

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddSandboxCheck(cfg.Sandbox.Runtime, 2*time.Second)
	if redisClient != nil {
		healthChecker.AddRedisCheck(redisClient, 2*time.Second)
	}

	// Initialize HTTP handlers
	sessionHandler := httphandlers.NewSessionHandler(sessionService, collector, log)
	executeHandler := httphandlers.NewExecuteHandler(executionService, hub, collector, log)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	auth := middleware.AuthMiddleware(sessionService)

	var onLimited func()
	if collector != nil {
		onLimited = collector.RecordRateLimited
	}
	rateLimit := middleware.NewExecuteRateLimitMiddleware(cfg, onLimited)

	sessionHandler.SetupRoutes(router, auth)
	executeHandler.SetupRoutes(router, auth, rateLimit)

	// Sync hub websocket endpoint
	router.GET("/ws", gin.WrapF(hub.HandleWebSocket))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})

	// Readiness endpoint with real dependency checks
	router.GET("/ready", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		if status.Status != "healthy" {
			c.JSON(503, status)
			return
		}
		c.JSON(200, status)
	})

	// Prometheus metrics endpoint
	if collector != nil {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")

		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-bridgeCtx.Done():
					return
				case <-ticker.C:
					collector.UpdateSyncGauges(hub.RoomCount(), hub.ClientCount())
				}
			}
		}()
	}

	// Create HTTP server with timeouts. The websocket endpoint needs the
	// server write timeout off; per-message deadlines are set by the hub.
	srv := &http.Server{
		Addr:        cfg.Server.Address,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting synccode server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down synccode server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	bridgeCancel()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Errorw("Error closing redis client", "error", err)
		}
	}

	log.Info("synccode server stopped")
}

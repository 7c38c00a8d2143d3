// Package main runs the compliance monitoring dashboard HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/finstream-guard/dashboard/config"
	"github.com/finstream-guard/dashboard/internal/alerts"
	"github.com/finstream-guard/dashboard/internal/analysis"
	"github.com/finstream-guard/dashboard/internal/dashboard"
	"github.com/finstream-guard/dashboard/internal/gateway"
	"github.com/finstream-guard/dashboard/internal/metrics"
	"github.com/finstream-guard/dashboard/internal/middleware"
	"github.com/finstream-guard/dashboard/internal/models"
	"github.com/finstream-guard/dashboard/internal/monitor"
	"github.com/finstream-guard/dashboard/internal/poller"
	"github.com/finstream-guard/dashboard/internal/realtime"
	"github.com/finstream-guard/dashboard/internal/recordings"
	"github.com/finstream-guard/dashboard/pkg/database"
	"github.com/finstream-guard/dashboard/pkg/queue"
	"github.com/finstream-guard/dashboard/pkg/redis"
	"github.com/finstream-guard/dashboard/pkg/response"
	"github.com/finstream-guard/dashboard/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	metrics.Init()

	ctx := context.Background()

	// Alert archive (optional)
	var alertRepo *alerts.Repository
	if cfg.Database.Enabled() {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.URL, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		alertRepo = alerts.NewRepository(pool)
	} else {
		logger.Info("DATABASE_URL not set, alert archive disabled")
	}

	// Redis event bridge and job queue (optional)
	var (
		bridge   realtime.Bridge
		enqueuer alerts.Enqueuer
	)
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		bridge = realtime.NewRedisPubSub(rdb.Client, logger)
		enqueuer = queue.NewQueue(rdb.Client, logger)
	} else {
		logger.Info("REDIS_ADDR not set, risk alerts and session reports will not be queued")
	}

	// Recording playback links (optional)
	var presigner recordings.Presigner
	if cfg.AWS.Enabled() {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ReportsBucket:        cfg.AWS.ReportsBucket,
			RecordingsBucket:     cfg.AWS.RecordingsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			presigner = s3Client
		}
	}

	backend := gateway.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger)
	analyzer := analysis.New(analysis.OpenAIConfig{
		APIKey:        cfg.Analysis.APIKey,
		Model:         cfg.Analysis.Model,
		BaseURL:       cfg.Analysis.BaseURL,
		RatePerMinute: cfg.Analysis.RatePerMinute,
	}, logger)
	hub := realtime.NewHub(logger, bridge)

	// Polling synchronizer
	synchronizer := poller.New(backend, cfg.Polling.Interval, logger)

	// Per-stream sessions
	monitorCfg := monitor.DefaultConfig()
	monitorCfg.TranscriptInterval = cfg.Monitor.TranscriptInterval
	monitorCfg.AnalysisInterval = cfg.Monitor.AnalysisInterval
	monitorCfg.AnalysisTimeout = cfg.Monitor.AnalysisTimeout
	dispatcher := alerts.NewDispatcher(enqueuer, cfg.Alerts.RiskThreshold, logger)
	sessions := monitor.NewController(monitorCfg, synchronizer, analyzer, hub, dispatcher.Hooks(), logger)

	synchronizer.OnStatus(func(st models.SystemStatus) {
		hub.Publish(realtime.TopicDashboard, "status", st)
	})
	synchronizer.OnStreamers(func(list []models.Streamer) {
		hub.Publish(realtime.TopicDashboard, "streamers", list)
		sessions.Reconcile(list)
	})

	// Handlers
	dashboardHandler := dashboard.NewHandler(synchronizer, sessions, logger)
	var (
		riskCounter recordings.RiskCounter
		alertLister alerts.Lister
	)
	if alertRepo != nil {
		riskCounter = alertRepo
		alertLister = alertRepo
	}
	recordingHandler := recordings.NewHandler(backend, riskCounter, presigner, logger)
	alertHandler := alerts.NewHandler(alertLister, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.Recovery(logger))
	origins := middleware.ParseOrigins(cfg.Server.CORSAllowedOrigins)
	router.Use(middleware.CORS(origins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	{
		api.GET("/dashboard", dashboardHandler.Get)
		api.POST("/streams", dashboardHandler.AddStream)
		api.POST("/recorder/toggle", dashboardHandler.ToggleRecorder)
		api.DELETE("/ui-error", dashboardHandler.ClearUIError)

		api.PUT("/selection", dashboardHandler.Select)
		api.DELETE("/selection", dashboardHandler.ClearSelection)
		api.GET("/session", dashboardHandler.Session)
		api.POST("/session/analyze", dashboardHandler.Analyze)

		api.GET("/recordings", recordingHandler.List)
		api.GET("/recordings/:id/playback-url", recordingHandler.PlaybackURL)

		api.GET("/alerts", alertHandler.List)
	}

	router.GET("/ws", realtime.ServeWs(hub, origins.Allows, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	pollCtx, pollCancel := context.WithCancel(context.Background())
	defer pollCancel()
	synchronizer.Run(pollCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("backend", cfg.Backend.BaseURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sessions.Close()
	synchronizer.Close()
	pollCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gdroom/internal/core/ports"
	"gdroom/internal/core/services"
	httphandlers "gdroom/internal/handlers/http"
	"gdroom/internal/infrastructure/middleware"
	"gdroom/internal/infrastructure/monitoring"
	signalinfra "gdroom/internal/infrastructure/signal"
	webrtcinfra "gdroom/internal/infrastructure/webrtc"
	"gdroom/pkg/config"
	"gdroom/pkg/logger"
	"gdroom/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
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

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize tracing
	if cfg.Monitoring.TracingEnabled {
		tracingCfg := tracing.DefaultConfig()
		tracingCfg.Enabled = true
		tracingCfg.ServiceName = "gdroom-host"
		tracingCfg.JaegerURL = cfg.Monitoring.JaegerEndpoint
		tracerProvider, err := tracing.Init(tracingCfg)
		if err != nil {
			log.Fatalw("failed to initialize tracing", "error", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			tracerProvider.Shutdown(ctx)
		}()
	}

	// Select the signal backend
	var channel ports.SignalChannel
	var relay *signalinfra.RelayServer

	switch cfg.Signal.Backend {
	case "memory":
		channel = signalinfra.NewMemoryChannel()
	case "redis":
		channel, err = signalinfra.NewRedisChannel(signalinfra.RedisOptions{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, log)
		if err != nil {
			log.Fatalw("failed to connect signal backend", "error", err)
		}
	case "websocket":
		relay = signalinfra.NewRelayServer(signalinfra.RelayServerOptions{
			PingInterval:      cfg.Signal.PingInterval,
			PongTimeout:       cfg.Signal.PongTimeout,
			WriteTimeout:      cfg.Signal.WriteTimeout,
			MessagesPerSecond: cfg.Signal.MessagesPerSecond,
			MessageBurst:      cfg.Signal.MessageBurst,
		}, log)
		channel = relay
	default:
		log.Fatalw("unknown signal backend", "backend", cfg.Signal.Backend)
	}
	defer channel.Close()

	engine, err := webrtcinfra.NewEngine(cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize media engine", "error", err)
	}

	var metrics ports.Metrics = services.NopMetrics{}
	if cfg.Monitoring.PrometheusEnabled {
		metrics = monitoring.NewPrometheusCollector()
	}

	sessionCfg := services.SessionConfig{
		TickInterval:       cfg.Session.TickInterval,
		SampleInterval:     cfg.Session.SampleInterval,
		SpeakingThreshold:  cfg.Session.SpeakingThreshold,
		NegotiationTimeout: cfg.WebRTC.NegotiationTimeout,
		MaxParticipants:    cfg.Session.MaxParticipants,
	}
	rooms := services.NewRoomService(channel, engine, metrics, sessionCfg, log)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	if cfg.Monitoring.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
	}

	httphandlers.NewRoomHandler(rooms).SetupRoutes(router)

	if relay != nil {
		router.GET("/ws", gin.WrapF(relay.HandleWebSocket))
	}

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting gdroom host on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down gdroom host...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	rooms.CloseAll(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown failed", "error", err)
	}

	log.Info("Shutdown complete")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fanzone/internal/api/handlers"
	"fanzone/internal/api/middleware"
	"fanzone/internal/config"
	"fanzone/internal/domain"
	"fanzone/internal/eventbus"
	"fanzone/internal/infrastructure/hosted"
	"fanzone/internal/infrastructure/redis"
	"fanzone/internal/infrastructure/websocket"
	"fanzone/internal/metrics"
	"fanzone/internal/services"
	"fanzone/pkg/logger"
	"fanzone/pkg/utils"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load(config.GatewayService)
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewWithConfig(cfg.Log.Level).With("service", "gateway", "instance_id", cfg.Instance.ID)
	log.Info("Starting gateway", "config", cfg.GetConfigString())

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.Metrics.Namespace, registry)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := utils.InitializeRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to initialize Redis", "error", err)
	}
	defer rdb.Close()

	var transport domain.Transport
	if cfg.Channel.Enabled {
		channel, err := redis.NewEventChannel(ctx, rdb, cfg.Channel.Name, log)
		if err != nil {
			log.Warn("Failed to join event channel", "channel", cfg.Channel.Name, "error", err)
		} else {
			transport = channel
		}
	}

	bus := eventbus.New(transport, log, eventbus.WithMetrics(m))

	sessions := redis.NewRedisSessionStore(rdb, cfg.Session.TTL)
	source := hosted.NewNotificationClient(cfg.Notifications.BaseURL, cfg.Notifications.RequestTimeout)

	scheduler := services.NewCronScheduler(log)
	scheduler.Start()

	connManager := websocket.NewConnectionManager(log, m)
	stopBridge := services.NewEventBridge(connManager, log).Start(bus)

	newPoller := func(onChange func(count int)) *services.UnreadPoller {
		return services.NewUnreadPoller(source, scheduler, log,
			services.WithPollInterval(cfg.Notifications.PollInterval),
			services.WithOnChange(onChange),
			services.WithPollerMetrics(m))
	}

	wsHandler := websocket.NewWebSocketHandler(sessions, bus, connManager, newPoller,
		websocket.RateLimit{PerSecond: cfg.WebSocket.MessagesPerSecond, Burst: cfg.WebSocket.Burst}, log).
		WithAllowedOrigins(cfg.Server.AllowedOrigins)

	router := mux.NewRouter()
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins, log))
	handlers.NewGatewayHandlers(wsHandler, connManager, registry, cfg.Instance.ID).Register(router)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Gateway listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down gateway...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := connManager.CloseAll(); err != nil {
		log.Error("Failed to close connections", "error", err)
	}
	stopBridge()
	scheduler.Stop()
	bus.Destroy()

	log.Info("Gateway stopped")
}

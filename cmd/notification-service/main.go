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
	apimiddleware "fanzone/internal/api/middleware"
	"fanzone/internal/config"
	"fanzone/internal/domain"
	"fanzone/internal/eventbus"
	"fanzone/internal/infrastructure/leader"
	"fanzone/internal/infrastructure/mysql"
	"fanzone/internal/infrastructure/redis"
	"fanzone/internal/metrics"
	"fanzone/internal/services"
	"fanzone/pkg/logger"
	"fanzone/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load(config.NotificationService)
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewWithConfig(cfg.Log.Level).With("service", "notification-service", "instance_id", cfg.Instance.ID)
	log.Info("Starting notification service", "config", cfg.GetConfigString())

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

	db, err := utils.InitializeMysql(ctx, cfg.MySQL, log)
	if err != nil {
		log.Fatal("Failed to initialize MySQL", "error", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}()

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

	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.Key, cfg.Leader.TTL)
	notificationService := services.NewNotificationService(mysql.NewMySQLNotificationRepository(db), bus, log).
		WithLeader(leaderElection, cfg.Instance.ID)
	unregister := notificationService.Register(bus)

	sessions := redis.NewRedisSessionStore(rdb, cfg.Session.TTL)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			log.Debug("Request received",
				"method", req.Method,
				"path", req.URL.Path,
				"remote_addr", c.RealIP(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID))
			return next(c)
		}
	})

	api := e.Group("/api/v1", apimiddleware.RequireSession(sessions, log))
	handlers.NewNotificationHandler(notificationService, log).Register(api)

	if cfg.API.ServiceToken == "" {
		log.Warn("API_SERVICE_TOKEN is not set, event publishing is disabled")
	}
	events := e.Group("/api/v1/events", apimiddleware.RequireServiceToken(cfg.API.ServiceToken, log))
	handlers.NewEventHandler(bus, log).Register(events)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	e.GET("/health", func(c echo.Context) error {
		isLeader, _ := leaderElection.IsLeader(c.Request().Context(), cfg.Instance.ID)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"service":     "notification-service",
			"instance_id": cfg.Instance.ID,
			"leader":      isLeader,
			"timestamp":   time.Now().Format(time.RFC3339),
		})
	})

	electionCtx, stopElection := context.WithCancel(context.Background())
	go runElection(electionCtx, leaderElection, cfg.Instance.ID, log)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info("Notification service listening", "address", serverAddr)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down notification service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	stopElection()
	if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}

	unregister()
	bus.Destroy()

	log.Info("Notification service stopped")
}

// runElection keeps trying to take leadership until ctx ends.
func runElection(ctx context.Context, election domain.LeaderElection, instanceID string, log logger.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		became, err := election.BecomeLeader(ctx, instanceID)
		if err != nil {
			log.Error("Failed to attempt leadership", "error", err)
		} else if became {
			log.Info("Became notification leader")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

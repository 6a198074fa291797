package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/auth_service/internal/config"
	"github.com/Skotchmaster/auth_service/internal/db"
	"github.com/Skotchmaster/auth_service/internal/events"
	"github.com/Skotchmaster/auth_service/internal/httpserver"
	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/metrics"
	"github.com/Skotchmaster/auth_service/internal/middleware"
	"github.com/Skotchmaster/auth_service/internal/mykafka"
	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/internal/revocation"
	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/internal/session"
	"github.com/Skotchmaster/auth_service/internal/tokens"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)
	if cfg.DevSecret {
		logger.Warn("dev_jwt_secret_in_use", "app_env", cfg.AppEnv, "reason", "JWT_SECRET is unset")
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		cancel()
		log.Fatalf("db init error: %v", err)
	}

	checks := map[string]httpserver.Check{
		"db": func(ctx context.Context) error { return db.Ping(ctx, gdb) },
	}

	var (
		store       revocation.Store
		redisClient *redis.Client
	)
	switch cfg.RevocationBackend {
	case "memory":
		logger.Warn("revocation_backend_memory", "reason", "revocations are lost on restart")
		store = revocation.NewMemoryStore()
	default:
		redisClient, err = db.OpenRedis(initCtx, db.RedisOptions{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			OpTimeout:  cfg.RedisOpTimeout,
			MaxRetries: cfg.RedisMaxRetries,
		})
		if err != nil {
			cancel()
			log.Fatalf("redis init error: %v", err)
		}
		rs := revocation.NewRedisStore(redisClient, cfg.RedisOpTimeout)
		checks["redis"] = rs.Ping
		store = rs
	}
	cancel()

	var (
		publisher events.Publisher = events.LogPublisher{}
		producer  *mykafka.Producer
	)
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("kafka init error: %v", err)
		}
		publisher = events.NewKafkaPublisher(producer, cfg.KafkaTopic)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		log.Fatalf("metrics init error: %v", err)
	}

	issuer, err := tokens.NewIssuer(cfg.JWTSecret, cfg.RefreshSecret)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}
	sessions := session.NewManager(issuer, store, m)

	svc := &service.AuthService{
		Repo:      repo.NewGormRepo(gdb),
		Sessions:  sessions,
		Publisher: publisher,
		Metrics:   m,
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.Metrics(m))

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: svc},
		Sessions:    sessions,
		Health:      &httpserver.Health{Checks: checks},
		Gatherer:    reg,
	})

	go func() {
		logger.Info("server_starting", "addr", cfg.AuthAddr, "revocation_backend", cfg.RevocationBackend)
		if err := e.Start(cfg.AuthAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo_shutdown_failed", "error", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka_close_failed", "error", err)
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("redis_close_failed", "error", err)
		}
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db_close_failed", "error", err)
	}
	logger.Info("server_stopped")
}

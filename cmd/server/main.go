package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/cinema-assistant/internal/assistant"
	"github.com/iliyamo/cinema-assistant/internal/config"
	"github.com/iliyamo/cinema-assistant/internal/database"
	"github.com/iliyamo/cinema-assistant/internal/handler"
	"github.com/iliyamo/cinema-assistant/internal/middleware"
	"github.com/iliyamo/cinema-assistant/internal/queue"
	"github.com/iliyamo/cinema-assistant/internal/repository"
	"github.com/iliyamo/cinema-assistant/internal/router"
	"github.com/iliyamo/cinema-assistant/internal/service"
	"github.com/iliyamo/cinema-assistant/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		logger.Error("mysql: connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := config.NewRedisClient(context.Background())
	if rdb == nil {
		logger.Warn("redis: unavailable; sessions kept in memory, caching and rate limiting off")
	} else {
		defer rdb.Close()
	}

	profile, err := config.LoadProfile(cfg.Assistant.ProfilePath)
	if err != nil {
		logger.Error("assistant: profile", "err", err)
		os.Exit(1)
	}

	movies := repository.NewMovieRepo(db)
	shows := repository.NewShowRepo(db)
	showSeats := repository.NewShowSeatRepo(db)
	holds := repository.NewSeatHoldRepo(db)

	collab := service.NewCatalogCache(
		service.NewCollaborators(movies, shows, showSeats, cfg.Assistant.Location),
		rdb, "", cfg.Assistant.CatalogTTL, logger.With("component", "catalog-cache"),
	)
	core := assistant.NewRouter(collab, assistant.Options{
		Location:            cfg.Assistant.Location,
		CollaboratorTimeout: cfg.Assistant.CollaboratorTimeout,
		Profile:             profile,
		Logger:              logger.With("component", "assistant"),
	})

	var store session.Store = session.NewMemoryStore()
	if rdb != nil {
		store = session.NewRedisStore(rdb, cfg.Assistant.SessionPrefix, cfg.Assistant.SessionTTL)
	}
	sessions := session.NewManager(store, core, logger.With("component", "session"))

	publisher := queue.NewPublisher(cfg.RabbitURL, logger.With("component", "rabbitmq"))
	executor := service.NewActionExecutor(
		service.NewSeatHolds(shows, showSeats, holds, cfg.Assistant.HoldTTL),
		publisher, cfg.Assistant.PaymentBaseURL, logger.With("component", "actions"),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Assistant.ConsumerEnabled {
		actions := queue.NewActionLog(cfg.Assistant.ActionLogDir)
		go func() {
			err := queue.StartActionLogConsumer(ctx, cfg.RabbitURL, actions, logger.With("component", "action-consumer"))
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("action-consumer: stopped", "err", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String()}
			if v.Error != nil {
				logger.Error("http: request", append(attrs, "err", v.Error)...)
				return nil
			}
			logger.Info("http: request", attrs...)
			return nil
		},
	}))

	checks := map[string]handler.Pinger{"mysql": db.PingContext}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	router.RegisterRoutes(e, checks)
	router.RegisterAssistant(e,
		handler.NewAssistantHandler(sessions, executor, core, logger.With("component", "http")),
		cfg.JWTSecret,
		middleware.NewTokenBucket(cfg.RateLimit, rdb, logger.With("component", "ratelimit")),
	)
	router.RegisterPublic(e, handler.NewCatalogHandler(collab), middleware.NewRedisCache(cfg.Cache, rdb))
	router.RegisterCatalogAdmin(e, collab.Invalidate, cfg.JWTSecret)

	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr, "env", cfg.Env, "timezone", cfg.Assistant.Location.String())
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http: server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http: shutdown", "err", err)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

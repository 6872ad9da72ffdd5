package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"direct-chat/internal/auth"
	"direct-chat/internal/config"
	apphttp "direct-chat/internal/http"
	"direct-chat/internal/realtime"
	"direct-chat/internal/repository/sqlite"
	"direct-chat/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	configureLogger(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	convRepo := sqlite.NewConversationRepository(db)

	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}
	if err := convRepo.Init(ctx); err != nil {
		logger.Fatalf("init conversation repository: %v", err)
	}

	presence, closePresence, err := buildPresence(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup presence: %v", err)
	}
	defer closePresence()

	hub := realtime.NewHub(presence, logger)

	userService, err := service.NewUserService(userRepo, cfg.Avatar.BaseURL, cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatalf("setup user service: %v", err)
	}
	messageService := service.NewMessageService(userRepo, convRepo, hub)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		userService,
		messageService,
		tokens,
		hub,
		apphttp.CookieOptions{
			Name:   cfg.Auth.CookieName,
			Secure: !cfg.Development(),
		},
		logger,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s (mode %s)", cfg.Server.Addr, cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	hub.Close()

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func buildPresence(ctx context.Context, cfg config.Config, logger *logrus.Logger) (realtime.Presence, func(), error) {
	if cfg.Presence.Driver != config.PresenceRedis {
		logger.Info("using in-memory presence")
		return realtime.NewMemoryPresence(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}

	logger.Infof("using redis presence at %s (db %d)", cfg.Redis.Addr, cfg.Redis.DB)
	return realtime.NewRedisPresence(client), func() { client.Close() }, nil
}

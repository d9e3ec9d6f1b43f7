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

	"duochat/backend/internal/api/handler"
	"duochat/backend/internal/auth"
	"duochat/backend/internal/chathub"
	"duochat/backend/internal/config"
	"duochat/backend/internal/encryption"
	"duochat/backend/internal/message"
	"duochat/backend/internal/presence"
	"duochat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type dependencies struct {
	store   storage.MessageStore
	friends *storage.FriendStore // nil without postgres
	redis   *redis.Client        // nil without REDIS_ADDR
}

func (d *dependencies) Close() {
	if err := d.store.Close(); err != nil {
		logrus.WithError(err).Warn("Error closing message store")
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			logrus.WithError(err).Warn("Error closing Redis client")
		}
	}
}

func setupDependencies(ctx context.Context, cfg config.Config) (*dependencies, error) {
	deps := &dependencies{}

	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		db, err := storage.OpenPostgres(cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		deps.store = storage.NewGormStore(db)
		deps.friends = storage.NewFriendStore(db)
	case config.StorageDriverBadger:
		store, err := storage.OpenBadger(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		deps.store = store
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	if cfg.UsesRedis() {
		rdb, err := storage.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.redis = rdb
	}

	logrus.WithFields(logrus.Fields{
		"storage": cfg.StorageDriver,
		"redis":   cfg.UsesRedis(),
	}).Info("Dependencies ready")
	return deps, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.ConfigureLogging(); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	logrus.Info("Starting DuoChat backend...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := setupDependencies(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up dependencies")
	}
	defer deps.Close()

	codec := encryption.NewCodec(cfg.EncryptionKey)
	repo := message.NewRepository(deps.store, codec)

	registry := presence.NewRegistry(nil)
	defer registry.Close()

	hub := chathub.NewManagerService(registry)
	var friends chathub.Authorizer
	if deps.friends != nil {
		friends = deps.friends
		if cfg.EnforceFriendship {
			hub.SetAuthorizer(deps.friends)
		}
	}
	if deps.redis != nil {
		hub.SetDirectory(storage.NewRoomDirectory(deps.redis))
		hub.SetBridge(storage.NewBridge(deps.redis))
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(hub, repo, auth.NewVerifier(cfg.JWTSecret), friends)
	if deps.friends != nil {
		h.Users = deps.friends
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logrus.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP server did not shut down cleanly")
	}

	// Hijacked websocket connections are not tracked by the HTTP server; the hub closes them.
	stopHub()
	<-hub.Done()
	logrus.Info("Shutdown complete")
}

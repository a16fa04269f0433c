package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Tanner-Eischen/LeafWise-sub002/internal/cache"
	"github.com/Tanner-Eischen/LeafWise-sub002/internal/config"
	"github.com/Tanner-Eischen/LeafWise-sub002/internal/server"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	logger := logrus.New()
	if cfg.Server.Mode == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		gin.SetMode(gin.ReleaseMode)
		logger.SetLevel(logrus.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()

	svcConfig := &cache.ServiceConfig{
		L1MaxSize:         cfg.Cache.L1MaxSize,
		L1CleanupInterval: cfg.Cache.L1CleanupInterval,
		L2KeyPrefix:       cfg.Cache.L2KeyPrefix,
		L2Timeout:         cfg.Cache.L2Timeout,
		TTLs:              loadTTLPolicy(cfg.Cache, logger),
	}

	svc := cache.NewService(redisClient, svcConfig, logger)
	defer svc.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := svc.Ping(pingCtx); err != nil {
		logger.WithError(err).Warn("redis unreachable at startup, cache degrades to L1-only until it recovers")
	}
	cancel()

	if cfg.Warming.Enabled {
		warmer := cache.NewWarmer(svc, staticActiveSet(cfg.Warming.ActiveIDs), &cache.WarmerConfig{
			Interval: cfg.Warming.Interval,
			Delay:    cfg.Warming.Delay,
		}, logger)
		// Domain services register their fetchers here once wired in;
		// until then the warmer idles over an empty registry.
		warmer.Start()
		defer warmer.Stop()
	}

	admin := server.New(svc, logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: admin.Handler(),
	}

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("admin server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("admin server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("admin server shutdown failed")
	}
}

func loadTTLPolicy(cfg config.CacheConfig, logger *logrus.Logger) map[cache.DataType]time.Duration {
	policy, err := cfg.TTLPolicy()
	if err != nil {
		logger.WithError(err).Fatal("invalid ttl policy file")
	}
	if policy == nil {
		return nil // built-in defaults
	}

	ttls := make(map[cache.DataType]time.Duration, len(policy))
	for typ, ttl := range policy {
		ttls[cache.DataType(typ)] = ttl
	}
	return ttls
}

func staticActiveSet(ids []string) cache.ActiveEntities {
	return func(ctx context.Context) []string {
		return ids
	}
}

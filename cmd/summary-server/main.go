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

	"github.com/redis/go-redis/v9"

	"github.com/OU-Studio/summary-access/pkg/api"
	"github.com/OU-Studio/summary-access/pkg/auth"
	"github.com/OU-Studio/summary-access/pkg/cache"
	"github.com/OU-Studio/summary-access/pkg/config"
	"github.com/OU-Studio/summary-access/pkg/logging"
	"github.com/OU-Studio/summary-access/pkg/pager"
	"github.com/OU-Studio/summary-access/pkg/summary"
	"github.com/OU-Studio/summary-access/pkg/upstream"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		os.Exit(1)
	}
	if cfg == nil {
		// --help was printed by the parser.
		return
	}

	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logger := logging.Setup(logging.Config{
		Level:  level,
		Pretty: cfg.Pretty,
		Output: os.Stderr,
	})

	if err := bootstrapDataDir(cfg); err != nil {
		logger.Fatal().Err(err).Str("data_dir", cfg.DataDir).Msg("Failed to initialize persistent storage")
	}

	store, err := buildStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.CacheBackend).Msg("Failed to initialize cache store")
	}

	var authorizer auth.Authorizer = auth.NewFileAuthorizer(cfg.UsersFile)
	if cfg.OpenAccess {
		logger.Warn().Msg("Open access enabled, skipping the authorized-domain check")
		authorizer = auth.OpenAuthorizer{}
	}

	upstreamClient := upstream.New(upstream.Config{
		AttemptTimeout: cfg.UpstreamTimeout,
		MaxRetries:     cfg.MaxRetries,
		BackoffBase:    cfg.BackoffBase,
		UserAgent:      cfg.UserAgent,
	})
	pg := pager.New(upstreamClient, pager.Config{
		MaxPages: cfg.MaxPages,
		MaxItems: cfg.MaxItems,
	})

	service := summary.NewService(pg, store, authorizer)
	handler := api.NewHandler(service)
	router := api.NewServer(handler, api.Config{
		AdminUser: cfg.AdminUser,
		AdminPass: cfg.AdminPass,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("cache_backend", cfg.CacheBackend).
			Dur("cache_ttl", cfg.CacheTTL).
			Str("users_file", cfg.UsersFile).
			Msg("Starting summary server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Shutdown failed")
	}

	logger.Info().Msg("Server stopped")
}

// bootstrapDataDir creates the cache directory and an empty users file when
// they are missing, so a fresh volume works without manual setup.
func bootstrapDataDir(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return err
	}

	if _, err := os.Stat(cfg.UsersFile); os.IsNotExist(err) {
		return os.WriteFile(cfg.UsersFile, []byte("[]\n"), 0o644)
	} else if err != nil {
		return err
	}
	return nil
}

func buildStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.CacheBackend {
	case "memory":
		return cache.NewMemoryStore(cfg.CacheTTL), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisURL, err)
		}
		return cache.NewRedisStore(client, cfg.CacheTTL), nil
	default:
		return cache.NewFileStore(cfg.CacheDir, cfg.CacheTTL), nil
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/etrieve-client/pkg/cache"
	"github.com/Sternrassler/etrieve-client/pkg/client"
	"github.com/Sternrassler/etrieve-client/pkg/config"
	"github.com/Sternrassler/etrieve-client/pkg/documents"
	"github.com/Sternrassler/etrieve-client/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configuration from environment
	logging.Setup(logging.FromEnv(os.Getenv))
	configPath := getEnv("ETRIEVE_CONFIG", "etrieve.yml")
	port := getEnv("PORT", "8080")
	redisURL := os.Getenv("REDIS_URL")

	logger := logging.NewLogger("proxy")

	creds, err := config.Load(config.FileSource{Path: configPath})
	if err != nil {
		logger.Fatal().Err(err).Str("path", configPath).Msg("Failed to load configuration")
	}

	etrieveClient, err := client.New(client.DefaultConfig(creds))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Etrieve client")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cacheManager *cache.Manager
	if redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", redisURL).Msg("Redis unavailable, content cache disabled")
		} else {
			logger.Info().Str("addr", redisURL).Msg("Connected to Redis")
			cacheManager = cache.NewManager(redisClient)
		}
	}

	handler, err := documents.New(documents.Config{Client: etrieveClient, Cache: cacheManager})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create document handler")
	}

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           newServer(handler, logger).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	logger.Info().
		Str("addr", server.Addr).
		Str("base_url", creds.BaseURL).
		Bool("cache", cacheManager != nil).
		Msg("Starting Etrieve proxy server")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Etrieve proxy stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

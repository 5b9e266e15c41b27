// The counter-bot binary is one worker in the fleet: it registers itself,
// runs its counter, listens for operator broadcasts on the fan-out
// subscription and acknowledges the ones addressed to it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-botbus/pkg/registry"
	"github.com/illmade-knight/go-botbus/pkg/worker"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type botConfig struct {
	ProjectID          string
	SubscriptionID     string
	ServerURL          string
	BotID              string
	Ticker             string
	RedisAddr          string
	RegistryCollection string
	LogLevel           string
}

func loadConfig() botConfig {
	cfg := botConfig{
		ProjectID:          os.Getenv("GCP_PROJECT_ID"),
		SubscriptionID:     getEnv("BROADCAST_SUBSCRIPTION", "messages-sub"),
		ServerURL:          getEnv("MSGSERVER_URL", "http://localhost:8080"),
		BotID:              getEnv("BOT_ID", uuid.NewString()),
		Ticker:             getEnv("TICKER", "TEST"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RegistryCollection: getEnv("REGISTRY_COLLECTION", "bots"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("service", "counter-bot").Str("bot_id", cfg.BotID).Logger()

	if cfg.ProjectID == "" {
		log.Fatal().Msg("GCP_PROJECT_ID environment variable is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, closeRegistry, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize registry")
	}
	defer func() {
		_ = reg.Close()
		closeRegistry()
	}()

	err = reg.Register(ctx, registry.BotStatus{
		BotID:  cfg.BotID,
		Ticker: cfg.Ticker,
		State:  registry.StateRunning,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to register bot")
	}

	counter, err := worker.NewCounter(cfg.BotID, time.Second, reg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize counter")
	}

	ackCfg := worker.NewHTTPAcknowledgerDefaults()
	ackCfg.BaseURL = cfg.ServerURL
	acknowledger, err := worker.NewHTTPAcknowledger(ackCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize acknowledger")
	}

	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Pub/Sub client")
	}
	defer func() { _ = psClient.Close() }()

	listener, err := worker.NewListener(
		ctx,
		worker.NewListenerDefaults(cfg.SubscriptionID),
		psClient,
		cfg.BotID,
		counter.HandleBroadcast,
		acknowledger,
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize broadcast listener")
	}

	counter.Start(ctx)
	if err := listener.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start broadcast listener")
	}
	logger.Info().Str("ticker", cfg.Ticker).Msg("Counter bot running")

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received")

	_ = listener.Stop()
	counter.Stop()

	// Report the stop with a fresh context; the signal context is done.
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := reg.SetState(stopCtx, cfg.BotID, registry.StateStopped); err != nil {
		logger.Warn().Err(err).Msg("Failed to report stopped state")
	}
}

// buildRegistry prefers Redis when configured; otherwise bot presence lives
// in a Firestore collection alongside the message data.
func buildRegistry(ctx context.Context, cfg botConfig, logger zerolog.Logger) (registry.Registry, func(), error) {
	if cfg.RedisAddr != "" {
		reg, err := registry.NewRedisRegistry(ctx, &registry.RedisConfig{
			Addr:     cfg.RedisAddr,
			EntryTTL: 5 * time.Minute,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return reg, func() {}, nil
	}

	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	reg, err := registry.NewFirestoreRegistry(fsClient, cfg.RegistryCollection)
	if err != nil {
		_ = fsClient.Close()
		return nil, nil, err
	}
	return reg, func() { _ = fsClient.Close() }, nil
}

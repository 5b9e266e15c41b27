// The msgserver binary exposes the message API: operators create, list,
// inspect and delete broadcast messages through it, and bots call back into
// it to acknowledge receipt.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-botbus/cmd/msgserver/internal/api"
	"github.com/illmade-knight/go-botbus/cmd/msgserver/internal/config"
	"github.com/illmade-knight/go-botbus/pkg/broadcast"
	"github.com/illmade-knight/go-botbus/pkg/microservice"
	"github.com/illmade-knight/go-botbus/pkg/msgservice"
	"github.com/illmade-knight/go-botbus/pkg/msgstore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("service", "msgserver").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, publisher, cleanup, err := buildBackends(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize backends")
	}
	defer cleanup()

	service, err := msgservice.NewService(store, publisher, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize message service")
	}

	server := microservice.NewServer(logger, cfg.HTTPPort)
	server.AddReadinessCheck("store", func(ctx context.Context) error {
		_, err := store.List(ctx)
		return err
	})
	api.NewHandler(service, logger).Register(server.Mux())

	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start HTTP server")
	}
	logger.Info().Str("address", server.Addr()).Bool("local_mode", cfg.LocalMode).Msg("Message server running")

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := publisher.Stop(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Publisher did not stop cleanly")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server did not stop cleanly")
	}
}

// buildBackends wires either the cloud backends or their local stand-ins,
// returning a cleanup that closes whatever clients were opened.
func buildBackends(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (msgstore.Store, broadcast.Publisher, func(), error) {
	if cfg.LocalMode {
		return msgstore.NewMemoryStore(), broadcast.NewLogPublisher(logger), func() {}, nil
	}

	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, nil, err
	}
	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		_ = fsClient.Close()
		return nil, nil, nil, err
	}
	cleanup := func() {
		_ = psClient.Close()
		_ = fsClient.Close()
	}

	store, err := msgstore.NewFirestoreStore(&msgstore.FirestoreConfig{
		ProjectID:      cfg.ProjectID,
		CollectionName: cfg.CollectionName,
	}, fsClient, logger)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	publisherCfg := broadcast.NewGooglePublisherDefaults()
	publisherCfg.TopicID = cfg.TopicID
	publisher, err := broadcast.NewGooglePublisher(ctx, publisherCfg, psClient, logger)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	return store, publisher, cleanup, nil
}

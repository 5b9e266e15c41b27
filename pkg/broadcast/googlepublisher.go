package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-botbus/pkg/botmsg"
	"github.com/rs/zerolog"
)

// GooglePublisherConfig holds configuration for the Pub/Sub publisher.
type GooglePublisherConfig struct {
	TopicID                    string
	TopicExistsTimeout         time.Duration
	PublishConfirmationTimeout time.Duration
}

// NewGooglePublisherDefaults provides a config with sensible defaults.
func NewGooglePublisherDefaults() *GooglePublisherConfig {
	return &GooglePublisherConfig{
		TopicExistsTimeout:         15 * time.Second,
		PublishConfirmationTimeout: 20 * time.Second,
	}
}

// GooglePublisher broadcasts messages on a Google Cloud Pub/Sub topic. Unlike
// a pipeline producer it confirms each publish synchronously: the service
// layer needs to know, per creation, whether the fan-out left the building.
type GooglePublisher struct {
	topic                      *pubsub.Topic
	logger                     zerolog.Logger
	publishConfirmationTimeout time.Duration
}

// NewGooglePublisher creates a publisher and verifies the topic exists before
// returning.
func NewGooglePublisher(
	ctx context.Context,
	cfg *GooglePublisherConfig,
	client *pubsub.Client,
	logger zerolog.Logger,
) (*GooglePublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client cannot be nil")
	}
	topic := client.Topic(cfg.TopicID)

	existsCtx, cancel := context.WithTimeout(ctx, cfg.TopicExistsTimeout)
	defer cancel()
	exists, err := topic.Exists(existsCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for topic %s: %w", cfg.TopicID, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %s does not exist", cfg.TopicID)
	}

	logger.Info().Str("topic_id", cfg.TopicID).Msg("GooglePublisher initialized.")
	return &GooglePublisher{
		topic:                      topic,
		logger:                     logger.With().Str("component", "GooglePublisher").Str("topic_id", cfg.TopicID).Logger(),
		publishConfirmationTimeout: cfg.PublishConfirmationTimeout,
	}, nil
}

// Publish sends the broadcast envelope for the message and waits for the
// transport to confirm it. The envelope fields are duplicated as attributes
// so subscriptions can filter without decoding the payload.
func (p *GooglePublisher) Publish(ctx context.Context, msg botmsg.Message) error {
	env, err := botmsg.NewEnvelope(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", botmsg.ErrPublish, err)
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: encode envelope for %s: %w", botmsg.ErrPublish, msg.ID, err)
	}

	res := p.topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: env.Attributes(),
	})

	getCtx, cancel := context.WithTimeout(ctx, p.publishConfirmationTimeout)
	defer cancel()
	pubsubID, err := res.Get(getCtx)
	if err != nil {
		p.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to publish broadcast.")
		return fmt.Errorf("%w: message %s: %w", botmsg.ErrPublish, msg.ID, err)
	}

	p.logger.Debug().Str("message_id", msg.ID).Str("pubsub_msg_id", pubsubID).Msg("Broadcast published.")
	return nil
}

// Stop flushes any buffered messages, respecting the context's timeout.
func (p *GooglePublisher) Stop(ctx context.Context) error {
	if p.topic == nil {
		return nil
	}
	stopDone := make(chan struct{})
	go func() {
		p.topic.Stop()
		close(stopDone)
	}()
	select {
	case <-stopDone:
		return nil
	case <-ctx.Done():
		p.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for Pub/Sub topic to flush and stop.")
		return ctx.Err()
	}
}

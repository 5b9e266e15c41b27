package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-botbus/pkg/botmsg"
	"github.com/rs/zerolog"
)

// Handler processes a broadcast that this bot is a target of. The envelope's
// transport message is not acked until the handler and the acknowledgement
// callback both succeed, so a failed handler sees the broadcast again.
type Handler func(ctx context.Context, env botmsg.Envelope) error

// ListenerConfig holds configuration for the broadcast listener.
type ListenerConfig struct {
	SubscriptionID         string
	MaxOutstandingMessages int
	NumGoroutines          int
}

// NewListenerDefaults provides a config with sensible defaults.
func NewListenerDefaults(subID string) *ListenerConfig {
	return &ListenerConfig{
		SubscriptionID:         subID,
		MaxOutstandingMessages: 100,
		NumGoroutines:          5,
	}
}

// Listener receives broadcast envelopes from a Pub/Sub subscription, filters
// them by target, hands relevant ones to the Handler and then reports the
// acknowledgement. Delivery is at-least-once; deduplication is the
// server-side acknowledgement transaction's job, not ours.
type Listener struct {
	botID        string
	subscription *pubsub.Subscription
	handler      Handler
	acknowledger Acknowledger
	logger       zerolog.Logger

	stopOnce      sync.Once
	cancelReceive context.CancelFunc
	doneChan      chan struct{}
}

// NewListener creates a listener for one bot. It verifies the subscription
// exists before returning.
func NewListener(
	ctx context.Context,
	cfg *ListenerConfig,
	client *pubsub.Client,
	botID string,
	handler Handler,
	acknowledger Acknowledger,
	logger zerolog.Logger,
) (*Listener, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client cannot be nil")
	}
	if botID == "" {
		return nil, fmt.Errorf("bot id cannot be empty")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	if acknowledger == nil {
		return nil, fmt.Errorf("acknowledger cannot be nil")
	}

	sub := client.Subscription(cfg.SubscriptionID)
	existsCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	exists, err := sub.Exists(existsCtx)
	if !exists || err != nil {
		return nil, fmt.Errorf("subscription %s does not exist: %w", cfg.SubscriptionID, err)
	}

	sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	sub.ReceiveSettings.NumGoroutines = cfg.NumGoroutines

	logger.Info().Str("subscription_id", cfg.SubscriptionID).Str("bot_id", botID).Msg("Listening for broadcasts")

	return &Listener{
		botID:        botID,
		subscription: sub,
		handler:      handler,
		acknowledger: acknowledger,
		logger:       logger.With().Str("component", "Listener").Str("bot_id", botID).Logger(),
		doneChan:     make(chan struct{}),
	}, nil
}

// Start begins receiving broadcasts in a background goroutine.
func (l *Listener) Start(ctx context.Context) error {
	receiveCtx, cancel := context.WithCancel(ctx)
	l.cancelReceive = cancel

	go func() {
		defer close(l.doneChan)
		defer l.logger.Info().Msg("Broadcast receive goroutine stopped.")

		err := l.subscription.Receive(receiveCtx, l.handleTransportMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Error().Err(err).Msg("Broadcast Receive call exited with error")
		}
	}()
	return nil
}

func (l *Listener) handleTransportMessage(ctx context.Context, m *pubsub.Message) {
	env, err := botmsg.ParseEnvelope(m.Data)
	if err != nil {
		// Redelivery cannot fix a malformed envelope; drop it.
		l.logger.Error().Err(err).Str("transport_msg_id", m.ID).Msg("Dropping undecodable broadcast.")
		m.Ack()
		return
	}

	target, err := env.Target()
	if err != nil {
		l.logger.Error().Err(err).Str("message_id", env.MessageID).Msg("Dropping broadcast with invalid target.")
		m.Ack()
		return
	}
	if !target.Matches(l.botID) {
		m.Ack()
		return
	}

	if err := l.handler(ctx, env); err != nil {
		l.logger.Warn().Err(err).Str("message_id", env.MessageID).Msg("Handler failed, requesting redelivery.")
		m.Nack()
		return
	}

	if err := l.acknowledger.Acknowledge(ctx, env.MessageID, l.botID); err != nil {
		// The callback is idempotent, so redelivery is the safe recovery.
		l.logger.Warn().Err(err).Str("message_id", env.MessageID).Msg("Acknowledgement failed, requesting redelivery.")
		m.Nack()
		return
	}

	l.logger.Info().Str("message_id", env.MessageID).Msg("Broadcast processed and acknowledged.")
	m.Ack()
}

// Stop ceases consumption and waits for the receive goroutine to exit.
func (l *Listener) Stop() error {
	l.stopOnce.Do(func() {
		l.logger.Info().Msg("Stopping broadcast listener...")
		if l.cancelReceive != nil {
			l.cancelReceive()
		}
		select {
		case <-l.doneChan:
			l.logger.Info().Msg("Broadcast receive goroutine confirmed stopped.")
		case <-time.After(30 * time.Second):
			l.logger.Error().Msg("Timeout waiting for broadcast receive goroutine to stop.")
		}
	})
	return nil
}

// Done returns a channel that closes when the listener has shut down.
func (l *Listener) Done() <-chan struct{} { return l.doneChan }

// Package broadcast emits the fan-out notification for newly created
// messages. Delivery is at-least-once, best-effort: a failed publish is
// reported to the caller but never rolls back the already-committed message.
package broadcast

import (
	"context"

	"github.com/illmade-knight/go-botbus/pkg/botmsg"
	"github.com/rs/zerolog"
)

// Publisher sends exactly one fan-out notification per created message.
type Publisher interface {
	// Publish emits the broadcast envelope for the message and waits for
	// transport confirmation. Failure wraps botmsg.ErrPublish.
	Publish(ctx context.Context, msg botmsg.Message) error
	// Stop flushes any pending notifications, respecting the context's
	// deadline.
	Stop(ctx context.Context) error
}

// LogPublisher logs each broadcast instead of sending it. It stands in for
// the real transport in local development and tests.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a publisher that only logs.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "LogPublisher").Logger()}
}

// Publish logs the envelope and always succeeds.
func (p *LogPublisher) Publish(_ context.Context, msg botmsg.Message) error {
	env, err := botmsg.NewEnvelope(msg)
	if err != nil {
		return err
	}
	p.logger.Info().
		Str("message_id", env.MessageID).
		Str("target_type", env.TargetType).
		Str("target_selected", env.TargetSelected).
		Msg("Broadcast (log only).")
	return nil
}

// Stop is a no-op.
func (p *LogPublisher) Stop(_ context.Context) error { return nil }

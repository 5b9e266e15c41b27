// Package msgservice orchestrates the message lifecycle: it validates
// creation requests, persists them, triggers the broadcast fan-out, and
// exposes the read, delete and acknowledgement operations callers use.
package msgservice

import (
	"context"
	"fmt"

	"github.com/illmade-knight/go-botbus/pkg/botmsg"
	"github.com/illmade-knight/go-botbus/pkg/broadcast"
	"github.com/illmade-knight/go-botbus/pkg/msgstore"
	"github.com/rs/zerolog"
)

// Service wires the store and the publisher together. It holds no mutable
// state of its own; construct one at startup and share it.
type Service struct {
	store     msgstore.Store
	publisher broadcast.Publisher
	logger    zerolog.Logger
}

// NewService creates the orchestration service.
func NewService(store msgstore.Store, publisher broadcast.Publisher, logger zerolog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher cannot be nil")
	}
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger.With().Str("service", "MessageService").Logger(),
	}, nil
}

// CreateResult is the outcome of a creation call. PublishErr carries a
// broadcast failure as a side channel: the message exists either way, and a
// missed notification is recovered by a manual re-publish, not by failing
// the creation.
type CreateResult struct {
	Message    botmsg.Message
	PublishErr error
}

// CreateMessage validates the request, persists the message, then emits the
// fan-out notification. Validation and storage failures leave no record
// behind; a publish failure is reported in the result, not as an error.
func (s *Service) CreateMessage(ctx context.Context, req botmsg.CreateRequest) (CreateResult, error) {
	if err := req.Validate(); err != nil {
		s.logger.Warn().Err(err).Msg("Rejected message creation request.")
		return CreateResult{}, err
	}

	msg, err := s.store.Create(ctx, req)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist message.")
		return CreateResult{}, err
	}

	result := CreateResult{Message: msg}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		// The record is committed; surface the miss as a warning only.
		s.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("Message created but broadcast failed.")
		result.PublishErr = err
	}

	s.logger.Info().Str("message_id", msg.ID).Str("target_type", string(msg.Target.Type)).Msg("Message created.")
	return result, nil
}

// RepublishMessage re-emits the broadcast for an existing message. It is the
// recovery path for messages whose original fan-out failed.
func (s *Service) RepublishMessage(ctx context.Context, id string) error {
	msg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		return err
	}
	s.logger.Info().Str("message_id", id).Msg("Message re-published.")
	return nil
}

// ListMessages returns the list-view projections, newest first.
func (s *Service) ListMessages(ctx context.Context) ([]botmsg.Summary, error) {
	messages, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]botmsg.Summary, 0, len(messages))
	for _, msg := range messages {
		summaries = append(summaries, msg.Summary())
	}
	return summaries, nil
}

// GetMessageDetails returns the full message or botmsg.ErrNotFound.
func (s *Service) GetMessageDetails(ctx context.Context, id string) (botmsg.Message, error) {
	return s.store.GetByID(ctx, id)
}

// DeleteMessage removes the message. Deleting an id that never existed, or
// was already deleted, succeeds.
func (s *Service) DeleteMessage(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("message_id", id).Msg("Message deleted.")
	return nil
}

// Acknowledge records that workerID received the message. Safe to call any
// number of times for the same pair; only the first call mutates anything.
func (s *Service) Acknowledge(ctx context.Context, id string, workerID string) (botmsg.Message, error) {
	return s.store.ApplyAcknowledgement(ctx, id, workerID)
}

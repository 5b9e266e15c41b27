package msgstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-botbus/pkg/botmsg"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig holds configuration for the Firestore-backed store.
type FirestoreConfig struct {
	ProjectID      string
	CollectionName string
}

// FirestoreStore persists messages as documents in a single collection.
// Acknowledgements run inside Firestore transactions, so the read-check-write
// in ApplyAcknowledgement gets optimistic concurrency from the backend: only
// writers touching the same document conflict.
type FirestoreStore struct {
	client         *firestore.Client
	collectionName string
	logger         zerolog.Logger
}

// NewFirestoreStore creates a store over an injected Firestore client. The
// client's lifecycle is managed by the caller.
func NewFirestoreStore(
	cfg *FirestoreConfig,
	client *firestore.Client,
	logger zerolog.Logger,
) (*FirestoreStore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	if cfg.CollectionName == "" {
		return nil, fmt.Errorf("collection name cannot be empty")
	}

	logger.Info().Str("project_id", cfg.ProjectID).Str("collection", cfg.CollectionName).Msg("FirestoreStore initialized.")

	return &FirestoreStore{
		client:         client,
		collectionName: cfg.CollectionName,
		logger:         logger.With().Str("component", "FirestoreStore").Logger(),
	}, nil
}

// Create writes the message with a generated id and reads it back so the
// returned record carries the server-assigned creation time.
func (s *FirestoreStore) Create(ctx context.Context, req botmsg.CreateRequest) (botmsg.Message, error) {
	if err := checkRequired(req); err != nil {
		return botmsg.Message{}, err
	}

	id := uuid.NewString()
	docRef := s.client.Collection(s.collectionName).Doc(id)

	msg := botmsg.Message{
		Description:     req.Description,
		Config:          req.Config,
		Target:          req.Target,
		Acknowledgement: []string{},
	}
	// CreatedAt stays zero here; the serverTimestamp tag makes Firestore
	// assign it at commit time.
	if _, err := docRef.Create(ctx, msg); err != nil {
		s.logger.Error().Err(err).Str("message_id", id).Msg("Failed to create message document.")
		return botmsg.Message{}, fmt.Errorf("firestore create for %s: %w", id, errors.Join(botmsg.ErrStorage, err))
	}

	snap, err := docRef.Get(ctx)
	if err != nil {
		return botmsg.Message{}, fmt.Errorf("firestore read-back for %s: %w", id, errors.Join(botmsg.ErrStorage, err))
	}
	stored, err := messageFromSnapshot(snap)
	if err != nil {
		return botmsg.Message{}, err
	}

	s.logger.Debug().Str("message_id", id).Msg("Message created.")
	return stored, nil
}

// GetByID returns the message or an error wrapping botmsg.ErrNotFound.
func (s *FirestoreStore) GetByID(ctx context.Context, id string) (botmsg.Message, error) {
	snap, err := s.client.Collection(s.collectionName).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return botmsg.Message{}, fmt.Errorf("message %s: %w", id, botmsg.ErrNotFound)
		}
		s.logger.Error().Err(err).Str("message_id", id).Msg("Failed to get message document.")
		return botmsg.Message{}, fmt.Errorf("firestore get for %s: %w", id, errors.Join(botmsg.ErrStorage, err))
	}
	return messageFromSnapshot(snap)
}

// List returns all messages ordered by creation time, newest first.
func (s *FirestoreStore) List(ctx context.Context) ([]botmsg.Message, error) {
	iter := s.client.Collection(s.collectionName).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	messages := make([]botmsg.Message, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to iterate message documents.")
			return nil, fmt.Errorf("firestore list: %w", errors.Join(botmsg.ErrStorage, err))
		}
		msg, err := messageFromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Delete removes the document. Firestore deletes are no-ops for missing
// documents, which matches the idempotent contract.
func (s *FirestoreStore) Delete(ctx context.Context, id string) error {
	if _, err := s.client.Collection(s.collectionName).Doc(id).Delete(ctx); err != nil {
		s.logger.Error().Err(err).Str("message_id", id).Msg("Failed to delete message document.")
		return fmt.Errorf("firestore delete for %s: %w", id, errors.Join(botmsg.ErrStorage, err))
	}
	return nil
}

// ApplyAcknowledgement runs the read-check-write sequence in a transaction
// with bounded retries. A worker already in the set is a no-mutation success;
// otherwise the set append and count increment commit together.
func (s *FirestoreStore) ApplyAcknowledgement(ctx context.Context, id string, workerID string) (botmsg.Message, error) {
	docRef := s.client.Collection(s.collectionName).Doc(id)

	var result botmsg.Message
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("message %s: %w", id, botmsg.ErrNotFound)
			}
			return fmt.Errorf("transaction read for %s: %w", id, err)
		}
		msg, err := messageFromSnapshot(snap)
		if err != nil {
			return err
		}

		if msg.AcknowledgedBy(workerID) {
			// Duplicate delivery of the broadcast; nothing to record.
			result = msg
			return nil
		}

		msg.Acknowledgement = append(msg.Acknowledgement, workerID)
		msg.AcknowledgementCount = len(msg.Acknowledgement)
		err = tx.Update(docRef, []firestore.Update{
			{Path: "acknowledgement", Value: msg.Acknowledgement},
			{Path: "acknowledgementCount", Value: msg.AcknowledgementCount},
		})
		if err != nil {
			return fmt.Errorf("transaction write for %s: %w", id, err)
		}
		result = msg
		return nil
	}, firestore.MaxAttempts(maxAckAttempts))

	if err != nil {
		if errors.Is(err, botmsg.ErrNotFound) {
			return botmsg.Message{}, err
		}
		if status.Code(err) == codes.Aborted {
			s.logger.Warn().Str("message_id", id).Str("worker_id", workerID).Msg("Acknowledgement transaction aborted after retries.")
			return botmsg.Message{}, fmt.Errorf("message %s, worker %s: %w", id, workerID, botmsg.ErrConcurrency)
		}
		s.logger.Error().Err(err).Str("message_id", id).Str("worker_id", workerID).Msg("Acknowledgement transaction failed.")
		return botmsg.Message{}, fmt.Errorf("firestore acknowledgement for %s: %w", id, errors.Join(botmsg.ErrStorage, err))
	}

	s.logger.Debug().Str("message_id", id).Str("worker_id", workerID).Int("count", result.AcknowledgementCount).Msg("Acknowledgement applied.")
	return result, nil
}

// messageFromSnapshot maps a document snapshot to the domain type, restoring
// the id from the document key.
func messageFromSnapshot(snap *firestore.DocumentSnapshot) (botmsg.Message, error) {
	var msg botmsg.Message
	if err := snap.DataTo(&msg); err != nil {
		return botmsg.Message{}, fmt.Errorf("map message document %s: %w", snap.Ref.ID, err)
	}
	msg.ID = snap.Ref.ID
	if msg.Acknowledgement == nil {
		msg.Acknowledgement = []string{}
	}
	return msg, nil
}

package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreRegistry keeps bot entries in a Firestore collection. Suitable for
// smaller fleets where a dedicated Redis instance would be overkill; entries
// do not expire, so stale bots keep their last reported state.
type FirestoreRegistry struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreRegistry creates a registry over an injected Firestore client.
func NewFirestoreRegistry(client *firestore.Client, collectionName string) (*FirestoreRegistry, error) {
	if client == nil {
		return nil, errors.New("firestore client cannot be nil")
	}
	return &FirestoreRegistry{
		client:     client,
		collection: collectionName,
	}, nil
}

// Register creates or replaces the bot's document.
func (r *FirestoreRegistry) Register(ctx context.Context, botStatus BotStatus) error {
	botStatus.LastUpdated = time.Now().UTC()
	_, err := r.client.Collection(r.collection).Doc(botStatus.BotID).Set(ctx, botStatus)
	if err != nil {
		return fmt.Errorf("failed to register bot %s: %w", botStatus.BotID, err)
	}
	return nil
}

// UpdateCount records the bot's current counter value.
func (r *FirestoreRegistry) UpdateCount(ctx context.Context, botID string, count int) error {
	_, err := r.client.Collection(r.collection).Doc(botID).Update(ctx, []firestore.Update{
		{Path: "count", Value: count},
		{Path: "lastUpdated", Value: time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("failed to update count for bot %s: %w", botID, err)
	}
	return nil
}

// SetState records a lifecycle transition.
func (r *FirestoreRegistry) SetState(ctx context.Context, botID string, state State) error {
	_, err := r.client.Collection(r.collection).Doc(botID).Update(ctx, []firestore.Update{
		{Path: "state", Value: state},
		{Path: "lastUpdated", Value: time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("failed to set state for bot %s: %w", botID, err)
	}
	return nil
}

// Get returns the bot's entry.
func (r *FirestoreRegistry) Get(ctx context.Context, botID string) (BotStatus, error) {
	var zero BotStatus
	snap, err := r.client.Collection(r.collection).Doc(botID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return zero, fmt.Errorf("bot '%s' not found in registry: %w", botID, err)
		}
		return zero, fmt.Errorf("firestore get failed for bot %s: %w", botID, err)
	}
	var botStatus BotStatus
	if err := snap.DataTo(&botStatus); err != nil {
		return zero, fmt.Errorf("failed to map registry entry for bot %s: %w", botID, err)
	}
	return botStatus, nil
}

// Close is a no-op as the Firestore client's lifecycle is managed externally.
func (r *FirestoreRegistry) Close() error {
	return nil
}

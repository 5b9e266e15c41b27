package msgfeed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-botbus/pkg/botmsg"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreFeed delivers updates from Firestore snapshot listeners. Firestore
// already coalesces rapid changes into single snapshots, so each delivery is
// the latest committed state.
type FirestoreFeed struct {
	client         *firestore.Client
	collectionName string
	logger         zerolog.Logger
}

// NewFirestoreFeed creates a feed over an injected Firestore client.
func NewFirestoreFeed(client *firestore.Client, collectionName string, logger zerolog.Logger) (*FirestoreFeed, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	if collectionName == "" {
		return nil, fmt.Errorf("collection name cannot be empty")
	}
	return &FirestoreFeed{
		client:         client,
		collectionName: collectionName,
		logger:         logger.With().Str("component", "FirestoreFeed").Logger(),
	}, nil
}

// SubscribeAll listens to the whole collection, ordered newest first, and
// delivers the full summary list on every snapshot.
func (f *FirestoreFeed) SubscribeAll(ctx context.Context, onChange func([]botmsg.Summary)) (CancelFunc, error) {
	listenCtx, cancelListen := context.WithCancel(ctx)
	snaps := f.client.Collection(f.collectionName).
		OrderBy("createdAt", firestore.Desc).
		Snapshots(listenCtx)

	go func() {
		defer snaps.Stop()
		for {
			qsnap, err := snaps.Next()
			if err != nil {
				if !listenClosed(err) {
					f.logger.Error().Err(err).Msg("Collection snapshot listener stopped with error.")
				}
				return
			}
			summaries, err := summariesFromSnapshot(qsnap)
			if err != nil {
				f.logger.Error().Err(err).Msg("Failed to map collection snapshot.")
				continue
			}
			onChange(summaries)
		}
	}()

	return cancelOnce(cancelListen), nil
}

// SubscribeOne listens to a single document. Deliveries stop once the
// document is deleted; the listener stays attached in case it reappears,
// until cancelled.
func (f *FirestoreFeed) SubscribeOne(ctx context.Context, id string, onChange func(botmsg.Message)) (CancelFunc, error) {
	listenCtx, cancelListen := context.WithCancel(ctx)
	snaps := f.client.Collection(f.collectionName).Doc(id).Snapshots(listenCtx)

	go func() {
		defer snaps.Stop()
		for {
			snap, err := snaps.Next()
			if err != nil {
				if !listenClosed(err) {
					f.logger.Error().Err(err).Str("message_id", id).Msg("Document snapshot listener stopped with error.")
				}
				return
			}
			if !snap.Exists() {
				continue
			}
			var msg botmsg.Message
			if err := snap.DataTo(&msg); err != nil {
				f.logger.Error().Err(err).Str("message_id", id).Msg("Failed to map document snapshot.")
				continue
			}
			msg.ID = snap.Ref.ID
			onChange(msg)
		}
	}()

	return cancelOnce(cancelListen), nil
}

func summariesFromSnapshot(qsnap *firestore.QuerySnapshot) ([]botmsg.Summary, error) {
	summaries := make([]botmsg.Summary, 0)
	for {
		snap, err := qsnap.Documents.Next()
		if errors.Is(err, iterator.Done) {
			return summaries, nil
		}
		if err != nil {
			return nil, err
		}
		var msg botmsg.Message
		if err := snap.DataTo(&msg); err != nil {
			return nil, fmt.Errorf("map message document %s: %w", snap.Ref.ID, err)
		}
		msg.ID = snap.Ref.ID
		summaries = append(summaries, msg.Summary())
	}
}

// listenClosed reports whether a listener error is an ordinary teardown
// (cancellation or deadline) rather than a failure.
func listenClosed(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	code := status.Code(err)
	return code == codes.Canceled || code == codes.DeadlineExceeded
}

func cancelOnce(cancel context.CancelFunc) CancelFunc {
	var once sync.Once
	return func() {
		once.Do(cancel)
	}
}

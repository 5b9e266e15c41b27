package msgfeed

import (
	"context"
	"errors"
	"sync"

	"github.com/illmade-knight/go-botbus/pkg/botmsg"
	"github.com/illmade-knight/go-botbus/pkg/msgstore"
	"github.com/rs/zerolog"
)

// MemoryFeed delivers updates from a MemoryStore's change signal. The store
// coalesces signals, so subscribers see the latest state rather than every
// intermediate one.
type MemoryFeed struct {
	store  *msgstore.MemoryStore
	logger zerolog.Logger
}

// NewMemoryFeed creates a feed over an in-memory store.
func NewMemoryFeed(store *msgstore.MemoryStore, logger zerolog.Logger) *MemoryFeed {
	return &MemoryFeed{
		store:  store,
		logger: logger.With().Str("component", "MemoryFeed").Logger(),
	}
}

// SubscribeAll starts a dispatch goroutine that re-reads the summary list on
// every change signal.
func (f *MemoryFeed) SubscribeAll(ctx context.Context, onChange func([]botmsg.Summary)) (CancelFunc, error) {
	changes, stopWatch := f.store.Watch()
	done := make(chan struct{})

	go func() {
		f.deliverAll(ctx, onChange, done)
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-changes:
				f.deliverAll(ctx, onChange, done)
			}
		}
	}()

	return makeCancel(stopWatch, done), nil
}

// SubscribeOne is like SubscribeAll for a single record. Deliveries stop once
// the record is deleted.
func (f *MemoryFeed) SubscribeOne(ctx context.Context, id string, onChange func(botmsg.Message)) (CancelFunc, error) {
	changes, stopWatch := f.store.Watch()
	done := make(chan struct{})

	go func() {
		f.deliverOne(ctx, id, onChange, done)
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-changes:
				f.deliverOne(ctx, id, onChange, done)
			}
		}
	}()

	return makeCancel(stopWatch, done), nil
}

func (f *MemoryFeed) deliverAll(ctx context.Context, onChange func([]botmsg.Summary), done <-chan struct{}) {
	messages, err := f.store.List(ctx)
	if err != nil {
		f.logger.Error().Err(err).Msg("Failed to read message list for feed delivery.")
		return
	}
	summaries := make([]botmsg.Summary, 0, len(messages))
	for _, msg := range messages {
		summaries = append(summaries, msg.Summary())
	}
	select {
	case <-done:
	default:
		onChange(summaries)
	}
}

func (f *MemoryFeed) deliverOne(ctx context.Context, id string, onChange func(botmsg.Message), done <-chan struct{}) {
	msg, err := f.store.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, botmsg.ErrNotFound) {
			f.logger.Error().Err(err).Str("message_id", id).Msg("Failed to read message for feed delivery.")
		}
		return
	}
	select {
	case <-done:
	default:
		onChange(msg)
	}
}

// makeCancel builds a CancelFunc that is safe to invoke repeatedly.
func makeCancel(stopWatch func(), done chan struct{}) CancelFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			stopWatch()
		})
	}
}

package msgfeed_test

import (
	"context"
	"testing"
	"time"

	"github.com/illmade-knight/go-botbus/pkg/botmsg"
	"github.com/illmade-knight/go-botbus/pkg/msgfeed"
	"github.com/illmade-knight/go-botbus/pkg/msgstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createMessage(t *testing.T, store *msgstore.MemoryStore, description string) botmsg.Message {
	t.Helper()
	msg, err := store.Create(context.Background(), botmsg.CreateRequest{
		Description: description,
		Config:      map[string]any{botmsg.ConfigStartCountAt: 1},
		Target:      botmsg.Target{Type: botmsg.TargetAll},
	})
	require.NoError(t, err)
	return msg
}

// waitFor drains updates until pred holds or the timeout expires.
func waitFor[T any](t *testing.T, updates <-chan T, pred func(T) bool) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case update := <-updates:
			if pred(update) {
				return update
			}
		case <-deadline:
			t.Fatal("timed out waiting for feed update")
		}
	}
}

func TestMemoryFeed_SubscribeAll(t *testing.T) {
	ctx := context.Background()
	store := msgstore.NewMemoryStore()
	feed := msgfeed.NewMemoryFeed(store, zerolog.Nop())

	existing := createMessage(t, store, "already there")

	updates := make(chan []botmsg.Summary, 16)
	cancel, err := feed.SubscribeAll(ctx, func(summaries []botmsg.Summary) {
		updates <- summaries
	})
	require.NoError(t, err)
	defer cancel()

	// The first delivery reflects state at subscription time.
	initial := waitFor(t, updates, func(s []botmsg.Summary) bool { return len(s) == 1 })
	assert.Equal(t, existing.ID, initial[0].ID)

	created := createMessage(t, store, "new one")
	afterCreate := waitFor(t, updates, func(s []botmsg.Summary) bool { return len(s) == 2 })
	assert.Equal(t, created.ID, afterCreate[0].ID, "newest first")

	_, err = store.ApplyAcknowledgement(ctx, created.ID, "bot1")
	require.NoError(t, err)
	waitFor(t, updates, func(s []botmsg.Summary) bool {
		return len(s) == 2 && s[0].AcknowledgementCount == 1
	})

	require.NoError(t, store.Delete(ctx, existing.ID))
	waitFor(t, updates, func(s []botmsg.Summary) bool { return len(s) == 1 })
}

func TestMemoryFeed_SubscribeOne(t *testing.T) {
	ctx := context.Background()
	store := msgstore.NewMemoryStore()
	feed := msgfeed.NewMemoryFeed(store, zerolog.Nop())

	msg := createMessage(t, store, "single")
	createMessage(t, store, "unrelated")

	updates := make(chan botmsg.Message, 16)
	cancel, err := feed.SubscribeOne(ctx, msg.ID, func(m botmsg.Message) {
		updates <- m
	})
	require.NoError(t, err)
	defer cancel()

	first := waitFor(t, updates, func(m botmsg.Message) bool { return m.ID == msg.ID })
	assert.Equal(t, 0, first.AcknowledgementCount)

	_, err = store.ApplyAcknowledgement(ctx, msg.ID, "bot1")
	require.NoError(t, err)
	acked := waitFor(t, updates, func(m botmsg.Message) bool { return m.AcknowledgementCount == 1 })
	assert.Equal(t, []string{"bot1"}, acked.Acknowledgement)
}

func TestMemoryFeed_CancelStopsDelivery(t *testing.T) {
	ctx := context.Background()
	store := msgstore.NewMemoryStore()
	feed := msgfeed.NewMemoryFeed(store, zerolog.Nop())

	updates := make(chan []botmsg.Summary, 16)
	cancel, err := feed.SubscribeAll(ctx, func(summaries []botmsg.Summary) {
		updates <- summaries
	})
	require.NoError(t, err)

	waitFor(t, updates, func(s []botmsg.Summary) bool { return len(s) == 0 })

	cancel()
	cancel() // safe to call again

	createMessage(t, store, "after cancel")
	select {
	case s := <-updates:
		// A delivery already in flight at cancel time may slip through, but
		// it cannot reflect the post-cancel write.
		assert.Empty(t, s)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryFeed_CoalescesBursts(t *testing.T) {
	ctx := context.Background()
	store := msgstore.NewMemoryStore()
	feed := msgfeed.NewMemoryFeed(store, zerolog.Nop())

	updates := make(chan []botmsg.Summary, 128)
	cancel, err := feed.SubscribeAll(ctx, func(summaries []botmsg.Summary) {
		updates <- summaries
	})
	require.NoError(t, err)
	defer cancel()

	const burst = 30
	for i := 0; i < burst; i++ {
		createMessage(t, store, "burst")
	}

	// Convergence to the final state is required; seeing every intermediate
	// list is not.
	waitFor(t, updates, func(s []botmsg.Summary) bool { return len(s) == burst })
}

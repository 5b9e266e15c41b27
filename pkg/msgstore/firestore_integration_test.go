//go:build integration

package msgstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-botbus/pkg/botmsg"
	"github.com/illmade-knight/go-botbus/pkg/msgstore"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirestoreStore_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	const projectID = "test-project"
	const collectionName = "messages"

	firestoreDefaults := emulators.GetDefaultFirestoreConfig(projectID)
	firestoreConn := emulators.SetupFirestoreEmulator(t, ctx, firestoreDefaults)

	client, err := firestore.NewClient(ctx, projectID, firestoreConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := msgstore.NewFirestoreStore(&msgstore.FirestoreConfig{
		ProjectID:      projectID,
		CollectionName: collectionName,
	}, client, zerolog.Nop())
	require.NoError(t, err)

	req := botmsg.CreateRequest{
		Description: "switch strategy",
		Config:      map[string]any{"startCountAt": 10, "mode": "fast"},
		Target:      botmsg.Target{Type: botmsg.TargetAll},
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		msg, err := store.Create(ctx, req)
		require.NoError(t, err)
		require.NotEmpty(t, msg.ID)
		assert.False(t, msg.CreatedAt.IsZero(), "creation time should be server-assigned")
		assert.Empty(t, msg.Acknowledgement)
		assert.Zero(t, msg.AcknowledgementCount)

		fetched, err := store.GetByID(ctx, msg.ID)
		require.NoError(t, err)
		assert.Equal(t, msg.ID, fetched.ID)
		assert.Equal(t, "switch strategy", fetched.Description)
		assert.Equal(t, botmsg.TargetAll, fetched.Target.Type)

		start, ok := botmsg.StartCountAt(fetched.Config)
		require.True(t, ok)
		assert.Equal(t, 10, start)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.GetByID(ctx, "no-such-message")
		assert.ErrorIs(t, err, botmsg.ErrNotFound)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		first, err := store.Create(ctx, req)
		require.NoError(t, err)
		second, err := store.Create(ctx, req)
		require.NoError(t, err)

		messages, err := store.List(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(messages), 2)

		var firstIdx, secondIdx int = -1, -1
		for i, m := range messages {
			if m.ID == first.ID {
				firstIdx = i
			}
			if m.ID == second.ID {
				secondIdx = i
			}
		}
		require.NotEqual(t, -1, firstIdx)
		require.NotEqual(t, -1, secondIdx)
		assert.Less(t, secondIdx, firstIdx, "newer message should sort before older")
	})

	t.Run("AcknowledgeIdempotent", func(t *testing.T) {
		msg, err := store.Create(ctx, req)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			updated, err := store.ApplyAcknowledgement(ctx, msg.ID, "bot1")
			require.NoError(t, err)
			assert.Equal(t, 1, updated.AcknowledgementCount)
			assert.Equal(t, []string{"bot1"}, updated.Acknowledgement)
		}

		updated, err := store.ApplyAcknowledgement(ctx, msg.ID, "bot2")
		require.NoError(t, err)
		assert.Equal(t, 2, updated.AcknowledgementCount)
	})

	t.Run("AcknowledgeMissing", func(t *testing.T) {
		_, err := store.ApplyAcknowledgement(ctx, "no-such-message", "bot1")
		assert.ErrorIs(t, err, botmsg.ErrNotFound)
	})

	t.Run("ConcurrentAcknowledgements", func(t *testing.T) {
		msg, err := store.Create(ctx, req)
		require.NoError(t, err)

		const workers = 10
		var wg sync.WaitGroup
		errCh := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				workerID := string(rune('a' + n))
				// Contention retries are a legitimate outcome; the worker
				// would simply resend its acknowledgement.
				for {
					_, err := store.ApplyAcknowledgement(ctx, msg.ID, workerID)
					if errors.Is(err, botmsg.ErrConcurrency) {
						continue
					}
					errCh <- err
					return
				}
			}(i)
		}
		wg.Wait()
		close(errCh)
		for err := range errCh {
			require.NoError(t, err)
		}

		final, err := store.GetByID(ctx, msg.ID)
		require.NoError(t, err)
		assert.Equal(t, workers, final.AcknowledgementCount)
		assert.Len(t, final.Acknowledgement, workers)
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		msg, err := store.Create(ctx, req)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, msg.ID))
		require.NoError(t, store.Delete(ctx, msg.ID))

		_, err = store.GetByID(ctx, msg.ID)
		assert.ErrorIs(t, err, botmsg.ErrNotFound)
	})
}

package broadcast_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/illmade-knight/go-botbus/pkg/botmsg"
	"github.com/illmade-knight/go-botbus/pkg/broadcast"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// setupTestPubsub creates a mock Pub/Sub server, client, topic, and
// subscription for testing.
func setupTestPubsub(t *testing.T, projectID, topicID, subID string) (*pubsub.Client, *pubsub.Subscription) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, projectID, option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, topicID)
	require.NoError(t, err)

	sub, err := client.CreateSubscription(ctx, subID, pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	return client, sub
}

func TestGooglePublisher_PublishesEnvelope(t *testing.T) {
	testCtx, testCancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(testCancel)

	client, subscription := setupTestPubsub(t, "proj-pub", "broadcast-topic", "broadcast-sub")

	cfg := broadcast.NewGooglePublisherDefaults()
	cfg.TopicID = "broadcast-topic"
	publisher, err := broadcast.NewGooglePublisher(testCtx, cfg, client, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = publisher.Stop(context.Background()) })

	msg := botmsg.Message{
		ID:          "msg-1",
		Description: "Reset counter to 5",
		Config:      map[string]any{botmsg.ConfigStartCountAt: 5},
		Target:      botmsg.Target{Type: botmsg.TargetSelected, Selected: []string{"bot1", "bot2"}},
	}
	require.NoError(t, publisher.Publish(testCtx, msg))

	var mu sync.Mutex
	var received *pubsub.Message
	receiveCtx, receiveCancel := context.WithCancel(testCtx)
	t.Cleanup(receiveCancel)
	go func() {
		_ = subscription.Receive(receiveCtx, func(_ context.Context, m *pubsub.Message) {
			mu.Lock()
			received = m
			mu.Unlock()
			m.Ack()
			receiveCancel()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received != nil
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	env, err := botmsg.ParseEnvelope(received.Data)
	require.NoError(t, err)
	assert.Equal(t, "msg-1", env.MessageID)
	assert.Equal(t, "Reset counter to 5", env.Description)
	assert.Equal(t, "SELECTED", env.TargetType)

	target, err := env.Target()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bot1", "bot2"}, target.Selected)

	// Attribute contract: filterable without decoding the payload.
	assert.Equal(t, "msg-1", received.Attributes["messageId"])
	assert.Equal(t, "SELECTED", received.Attributes["targetType"])
}

func TestNewGooglePublisher_RequiresTopic(t *testing.T) {
	testCtx, testCancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(testCancel)

	client, _ := setupTestPubsub(t, "proj-missing", "exists", "exists-sub")

	cfg := broadcast.NewGooglePublisherDefaults()
	cfg.TopicID = "does-not-exist"
	_, err := broadcast.NewGooglePublisher(testCtx, cfg, client, zerolog.Nop())
	assert.Error(t, err)
}

func TestLogPublisher_AlwaysSucceeds(t *testing.T) {
	publisher := broadcast.NewLogPublisher(zerolog.Nop())
	msg := botmsg.Message{
		ID:          "msg-log",
		Description: "local mode",
		Config:      map[string]any{botmsg.ConfigStartCountAt: 0},
		Target:      botmsg.Target{Type: botmsg.TargetAll},
	}
	assert.NoError(t, publisher.Publish(context.Background(), msg))
	assert.NoError(t, publisher.Stop(context.Background()))
}

package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/illmade-knight/go-botbus/pkg/botmsg"
	"github.com/illmade-knight/go-botbus/pkg/registry"
	"github.com/illmade-knight/go-botbus/pkg/worker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter_TicksAndReports(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()
	require.NoError(t, reg.Register(ctx, registry.BotStatus{BotID: "bot1", Ticker: "TEST", State: registry.StateRunning}))

	counter, err := worker.NewCounter("bot1", 10*time.Millisecond, reg, zerolog.Nop())
	require.NoError(t, err)

	counter.Start(ctx)
	require.Eventually(t, func() bool { return counter.Count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	counter.Stop()

	status, err := reg.Get(ctx, "bot1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, status.Count, 3)
}

func TestCounter_HandleBroadcastResetsCount(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	counter, err := worker.NewCounter("bot1", time.Hour, reg, zerolog.Nop())
	require.NoError(t, err)

	env, err := botmsg.NewEnvelope(botmsg.Message{
		ID:          "msg-1",
		Description: "Reset counter to 5",
		Config:      map[string]any{botmsg.ConfigStartCountAt: 5},
		Target:      botmsg.Target{Type: botmsg.TargetAll},
	})
	require.NoError(t, err)

	require.NoError(t, counter.HandleBroadcast(context.Background(), env))
	assert.Equal(t, 5, counter.Count())
}

func TestCounter_HandleBroadcastRejectsMissingStart(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	counter, err := worker.NewCounter("bot1", time.Hour, reg, zerolog.Nop())
	require.NoError(t, err)

	// Hand-built envelope whose config lacks startCountAt.
	env := botmsg.Envelope{MessageID: "msg-2", Config: `{"mode":"steady"}`, TargetType: "ALL", TargetSelected: "[]"}
	assert.Error(t, counter.HandleBroadcast(context.Background(), env))
	assert.Equal(t, 0, counter.Count())
}

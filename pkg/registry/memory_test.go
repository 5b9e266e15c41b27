package registry_test

import (
	"context"
	"testing"

	"github.com/illmade-knight/go-botbus/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry_Lifecycle(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()
	t.Cleanup(func() { _ = reg.Close() })

	require.NoError(t, reg.Register(ctx, registry.BotStatus{
		BotID:  "bot1",
		Ticker: "AAPL",
		State:  registry.StateRunning,
	}))

	status, err := reg.Get(ctx, "bot1")
	require.NoError(t, err)
	assert.Equal(t, registry.StateRunning, status.State)
	assert.Equal(t, "AAPL", status.Ticker)
	assert.False(t, status.LastUpdated.IsZero())

	require.NoError(t, reg.UpdateCount(ctx, "bot1", 42))
	status, err = reg.Get(ctx, "bot1")
	require.NoError(t, err)
	assert.Equal(t, 42, status.Count)

	require.NoError(t, reg.SetState(ctx, "bot1", registry.StateStopped))
	status, err = reg.Get(ctx, "bot1")
	require.NoError(t, err)
	assert.Equal(t, registry.StateStopped, status.State)
}

func TestMemoryRegistry_UnknownBot(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()

	_, err := reg.Get(ctx, "ghost")
	assert.Error(t, err)
	assert.Error(t, reg.UpdateCount(ctx, "ghost", 1))
	assert.Error(t, reg.SetState(ctx, "ghost", registry.StateStopped))
}

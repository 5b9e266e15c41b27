package botmsg_test

import (
	"testing"

	"github.com/illmade-knight/go-botbus/pkg/botmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() botmsg.CreateRequest {
	return botmsg.CreateRequest{
		Description: "Reset counter to 5",
		Config:      map[string]any{botmsg.ConfigStartCountAt: 5},
		Target:      botmsg.Target{Type: botmsg.TargetAll},
	}
}

func TestCreateRequest_Validate(t *testing.T) {
	t.Run("accepts a valid ALL request", func(t *testing.T) {
		require.NoError(t, validRequest().Validate())
	})

	t.Run("accepts a valid SELECTED request with extra config", func(t *testing.T) {
		req := validRequest()
		req.Target = botmsg.Target{Type: botmsg.TargetSelected, Selected: []string{"bot1", "bot2"}}
		req.Config["mode"] = "aggressive"
		req.Config["enabled"] = true
		req.Config["threshold"] = 1.5
		require.NoError(t, req.Validate())
	})

	t.Run("rejects an empty description", func(t *testing.T) {
		req := validRequest()
		req.Description = ""
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, botmsg.IsValidation(err))
	})

	t.Run("rejects a missing config", func(t *testing.T) {
		req := validRequest()
		req.Config = nil
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, botmsg.IsValidation(err))
	})

	t.Run("rejects a non-numeric startCountAt", func(t *testing.T) {
		req := validRequest()
		req.Config[botmsg.ConfigStartCountAt] = "five"
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, botmsg.IsValidation(err))
	})

	t.Run("rejects a config value of unsupported type", func(t *testing.T) {
		req := validRequest()
		req.Config["bad"] = []string{"not", "allowed"}
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, botmsg.IsValidation(err))
	})

	t.Run("rejects ALL with a selection", func(t *testing.T) {
		req := validRequest()
		req.Target = botmsg.Target{Type: botmsg.TargetAll, Selected: []string{"bot1"}}
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, botmsg.IsValidation(err))
	})

	t.Run("rejects SELECTED with an empty selection", func(t *testing.T) {
		req := validRequest()
		req.Target = botmsg.Target{Type: botmsg.TargetSelected}
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, botmsg.IsValidation(err))
	})

	t.Run("rejects an unknown target type", func(t *testing.T) {
		req := validRequest()
		req.Target = botmsg.Target{Type: "SOME"}
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, botmsg.IsValidation(err))
	})
}

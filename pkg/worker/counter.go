package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/illmade-knight/go-botbus/pkg/botmsg"
	"github.com/illmade-knight/go-botbus/pkg/registry"
	"github.com/rs/zerolog"
)

// Counter is the counter bot: it increments once per interval, reports its
// value through the registry, and resets when a broadcast tells it to.
type Counter struct {
	botID    string
	interval time.Duration
	registry registry.Registry
	logger   zerolog.Logger

	mu    sync.Mutex
	count int

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewCounter creates a counter bot reporting through the given registry.
func NewCounter(botID string, interval time.Duration, reg registry.Registry, logger zerolog.Logger) (*Counter, error) {
	if botID == "" {
		return nil, fmt.Errorf("bot id cannot be empty")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Counter{
		botID:    botID,
		interval: interval,
		registry: reg,
		logger:   logger.With().Str("component", "Counter").Str("bot_id", botID).Logger(),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start runs the counting loop in a background goroutine.
func (c *Counter) Start(ctx context.Context) {
	go func() {
		defer close(c.doneChan)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.logger.Info().Msg("Counter started.")
		for {
			select {
			case <-c.stopChan:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.tick(ctx)
			}
		}
	}()
}

func (c *Counter) tick(ctx context.Context) {
	c.mu.Lock()
	c.count++
	count := c.count
	c.mu.Unlock()

	c.logger.Debug().Int("count", count).Msg("Counter tick.")
	if err := c.registry.UpdateCount(ctx, c.botID, count); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to report count to registry.")
	}
}

// Count returns the current counter value.
func (c *Counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// SetCount replaces the counter value; used when a broadcast carries a new
// startCountAt.
func (c *Counter) SetCount(n int) {
	c.mu.Lock()
	c.count = n
	c.mu.Unlock()
	c.logger.Info().Int("count", n).Msg("Counter reset.")
}

// HandleBroadcast is the listener Handler: it applies the startCountAt from
// a relevant broadcast's config.
func (c *Counter) HandleBroadcast(_ context.Context, env botmsg.Envelope) error {
	config, err := env.ConfigMap()
	if err != nil {
		return err
	}
	start, ok := botmsg.StartCountAt(config)
	if !ok {
		return fmt.Errorf("broadcast %s carries no numeric %s", env.MessageID, botmsg.ConfigStartCountAt)
	}
	c.SetCount(start)
	return nil
}

// Stop halts the counting loop and waits for it to exit.
func (c *Counter) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	<-c.doneChan
}

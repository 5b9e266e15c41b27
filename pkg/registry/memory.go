package registry

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryRegistry is a thread-safe, in-memory Registry for local development
// and testing.
type MemoryRegistry struct {
	mu   sync.RWMutex
	bots map[string]BotStatus
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{bots: make(map[string]BotStatus)}
}

// Register creates or replaces the bot's entry.
func (r *MemoryRegistry) Register(_ context.Context, status BotStatus) error {
	status.LastUpdated = time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bots[status.BotID] = status
	return nil
}

// UpdateCount records the bot's current counter value.
func (r *MemoryRegistry) UpdateCount(_ context.Context, botID string, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.bots[botID]
	if !ok {
		return fmt.Errorf("bot '%s' not found in registry", botID)
	}
	status.Count = count
	status.LastUpdated = time.Now().UTC()
	r.bots[botID] = status
	return nil
}

// SetState records a lifecycle transition.
func (r *MemoryRegistry) SetState(_ context.Context, botID string, state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.bots[botID]
	if !ok {
		return fmt.Errorf("bot '%s' not found in registry", botID)
	}
	status.State = state
	status.LastUpdated = time.Now().UTC()
	r.bots[botID] = status
	return nil
}

// Get returns the bot's entry.
func (r *MemoryRegistry) Get(_ context.Context, botID string) (BotStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status, ok := r.bots[botID]
	if !ok {
		return BotStatus{}, fmt.Errorf("bot '%s' not found in registry", botID)
	}
	return status, nil
}

// Close is a no-op for the in-memory implementation.
func (r *MemoryRegistry) Close() error {
	return nil
}

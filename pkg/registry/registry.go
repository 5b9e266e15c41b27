// Package registry tracks which bots are alive, what ticker they serve and
// where their counters stand. It is ephemeral presence state: there is no
// source of truth to fall back on, so entries are written explicitly and may
// expire.
package registry

import (
	"context"
	"io"
	"time"
)

// State is a bot's lifecycle state as reported by the bot itself.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// BotStatus is one bot's registry entry.
type BotStatus struct {
	BotID       string    `firestore:"botId" json:"botId"`
	Ticker      string    `firestore:"ticker" json:"ticker"`
	State       State     `firestore:"state" json:"state"`
	Count       int       `firestore:"count" json:"count"`
	LastUpdated time.Time `firestore:"lastUpdated" json:"lastUpdated"`
}

// Registry is the presence contract bots report through and dashboards read
// from.
type Registry interface {
	// Register creates or replaces the bot's entry.
	Register(ctx context.Context, status BotStatus) error
	// UpdateCount records the bot's current counter value.
	UpdateCount(ctx context.Context, botID string, count int) error
	// SetState records a lifecycle transition, e.g. stopped on shutdown.
	SetState(ctx context.Context, botID string, state State) error
	// Get returns the bot's entry or an error if it is unknown or expired.
	Get(ctx context.Context, botID string) (BotStatus, error)
	// Closer releases any underlying connections.
	io.Closer
}

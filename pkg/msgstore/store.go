// Package msgstore provides durable keyed storage for broadcast messages and
// the concurrency-safe acknowledgement transaction that mutates them.
package msgstore

import (
	"context"

	"github.com/illmade-knight/go-botbus/pkg/botmsg"
)

// Store is the persistence contract for messages. Create, GetByID, List and
// Delete behave as plain document operations; ApplyAcknowledgement is the
// single mutating entry point besides create/delete and must run its
// read-check-write sequence atomically per record.
type Store interface {
	// Create persists a new message with a generated id, an empty
	// acknowledgement set and a server-assigned creation time, and returns
	// the stored record.
	Create(ctx context.Context, req botmsg.CreateRequest) (botmsg.Message, error)

	// GetByID returns the message or an error wrapping botmsg.ErrNotFound.
	GetByID(ctx context.Context, id string) (botmsg.Message, error)

	// List returns all messages ordered by creation time, newest first. An
	// empty store yields an empty slice, not an error.
	List(ctx context.Context) ([]botmsg.Message, error)

	// Delete removes the record. Deleting an id that does not exist is a
	// no-op success.
	Delete(ctx context.Context, id string) error

	// ApplyAcknowledgement records that workerID has received the message,
	// at most once: if the worker is already in the set the call succeeds
	// without mutation. The set append and the count increment commit
	// together. Returns the post-acknowledgement record.
	ApplyAcknowledgement(ctx context.Context, id string, workerID string) (botmsg.Message, error)
}

// checkRequired guards the store layer against records that would be
// unreadable later. Full validation happens in the service layer before a
// request ever reaches a Store.
func checkRequired(req botmsg.CreateRequest) error {
	if req.Description == "" {
		return &botmsg.ValidationError{Reason: "description is required"}
	}
	if req.Config == nil {
		return &botmsg.ValidationError{Reason: "config is required"}
	}
	if err := req.Target.Validate(); err != nil {
		return &botmsg.ValidationError{Reason: err.Error()}
	}
	return nil
}

// cloneMessage returns a deep copy so stored state can never be mutated
// through a returned record.
func cloneMessage(m botmsg.Message) botmsg.Message {
	out := m
	if m.Config != nil {
		out.Config = make(map[string]any, len(m.Config))
		for k, v := range m.Config {
			out.Config[k] = v
		}
	}
	out.Target.Selected = append([]string(nil), m.Target.Selected...)
	out.Acknowledgement = append([]string(nil), m.Acknowledgement...)
	return out
}

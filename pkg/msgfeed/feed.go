// Package msgfeed pushes near-real-time updates of the message list and of
// individual messages to subscribers, so observers never have to poll.
//
// Delivery is eventually consistent with the latest committed state: a
// subscriber may observe a coalesced update rather than every intermediate
// state when changes arrive faster than they can be delivered. Callbacks fire
// on a background goroutine, never the subscriber's own.
package msgfeed

import (
	"context"

	"github.com/illmade-knight/go-botbus/pkg/botmsg"
)

// CancelFunc tears down a subscription. It is safe to call more than once;
// after the first call no further callbacks are delivered.
type CancelFunc func()

// Feed is the subscription contract backing the dashboard's live views.
type Feed interface {
	// SubscribeAll invokes onChange with the current full summary list
	// whenever any message is created, deleted or acknowledged. The first
	// delivery reflects the state at subscription time.
	SubscribeAll(ctx context.Context, onChange func([]botmsg.Summary)) (CancelFunc, error)

	// SubscribeOne invokes onChange with the full message whenever that
	// record changes, acknowledgement updates included.
	SubscribeOne(ctx context.Context, id string, onChange func(botmsg.Message)) (CancelFunc, error)
}

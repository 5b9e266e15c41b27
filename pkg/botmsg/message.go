// Package botmsg defines the domain model for operator broadcast messages:
// the message record itself, its targeting rules, the wire envelope used for
// fan-out, and the validation applied to inbound creation requests.
package botmsg

import (
	"time"
)

// ConfigStartCountAt is the one configuration key every message must carry.
// Its value tells a counter bot where to restart its count.
const ConfigStartCountAt = "startCountAt"

// Message is a single operator broadcast. The core fields (ID, Description,
// Config, Target, CreatedAt) are write-once; only the acknowledgement fields
// change after creation, and they only ever grow.
type Message struct {
	// ID is the document key. It is assigned at creation and never reused.
	ID string `firestore:"-" json:"id"`

	Description string `firestore:"description" json:"description"`

	// Config maps configuration keys to string, number or boolean values.
	// It always contains ConfigStartCountAt.
	Config map[string]any `firestore:"config" json:"config"`

	Target Target `firestore:"target" json:"target"`

	// Acknowledgement is the set of worker ids that have confirmed receipt.
	// A worker id appears at most once.
	Acknowledgement []string `firestore:"acknowledgement" json:"acknowledgement"`

	// AcknowledgementCount is kept equal to len(Acknowledgement) in the same
	// write that grows the set, so list views never have to load the set.
	AcknowledgementCount int `firestore:"acknowledgementCount" json:"acknowledgementCount"`

	// CreatedAt is server-assigned and is the sole ordering key for listings.
	CreatedAt time.Time `firestore:"createdAt,serverTimestamp" json:"createdAt"`
}

// Summary is the read-only projection used by list views. It is derived from
// a Message and never independently persisted.
type Summary struct {
	ID                   string `json:"id"`
	Description          string `json:"description"`
	AcknowledgementCount int    `json:"acknowledgementCount"`
}

// Summary returns the list-view projection of the message.
func (m Message) Summary() Summary {
	return Summary{
		ID:                   m.ID,
		Description:          m.Description,
		AcknowledgementCount: m.AcknowledgementCount,
	}
}

// AcknowledgedBy reports whether the given worker is already in the
// acknowledgement set.
func (m Message) AcknowledgedBy(workerID string) bool {
	for _, id := range m.Acknowledgement {
		if id == workerID {
			return true
		}
	}
	return false
}

// StartCountAt extracts the numeric ConfigStartCountAt value from a decoded
// config map. The second return is false if the key is absent or non-numeric.
func StartCountAt(config map[string]any) (int, bool) {
	v, ok := numericValue(config[ConfigStartCountAt])
	if !ok {
		return 0, false
	}
	return int(v), true
}

// numericValue normalises the number representations a config value can
// arrive as (Go ints from callers, float64 from JSON, int64 from Firestore).
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

package botmsg

import "fmt"

// TargetType distinguishes a broadcast aimed at the whole fleet from one
// aimed at a named subset of workers.
type TargetType string

const (
	// TargetAll addresses every subscribed worker. Selected must be empty.
	TargetAll TargetType = "ALL"
	// TargetSelected addresses only the workers listed in Selected, which
	// must be non-empty.
	TargetSelected TargetType = "SELECTED"
)

// Target describes which workers a message is addressed to. It is write-once,
// set at message creation.
type Target struct {
	Type     TargetType `firestore:"type" json:"type"`
	Selected []string   `firestore:"selected" json:"selected"`
}

// Matches reports whether a worker should act on a message carrying this
// target. This is the worker-side relevance decision: the publisher fans out
// to everyone and each worker filters for itself.
func (t Target) Matches(workerID string) bool {
	if t.Type == TargetAll {
		return true
	}
	for _, id := range t.Selected {
		if id == workerID {
			return true
		}
	}
	return false
}

// Validate enforces the target invariant: ALL carries no selection, SELECTED
// carries at least one non-empty worker id.
func (t Target) Validate() error {
	switch t.Type {
	case TargetAll:
		if len(t.Selected) != 0 {
			return fmt.Errorf("target type %s must not carry a selection", TargetAll)
		}
	case TargetSelected:
		if len(t.Selected) == 0 {
			return fmt.Errorf("target type %s requires at least one worker id", TargetSelected)
		}
		for _, id := range t.Selected {
			if id == "" {
				return fmt.Errorf("target selection contains an empty worker id")
			}
		}
	default:
		return fmt.Errorf("unknown target type %q", t.Type)
	}
	return nil
}

package botmsg

import "errors"

// Sentinel errors for the failure classes callers are expected to branch on.
// Implementations wrap these with fmt.Errorf("…: %w", …) so errors.Is works
// across layers.
var (
	// ErrNotFound is returned when an operation references a message id that
	// does not exist.
	ErrNotFound = errors.New("message not found")

	// ErrConcurrency is returned when the acknowledgement transaction could
	// not converge within its bounded retries. The operation is idempotent,
	// so callers may simply retry.
	ErrConcurrency = errors.New("acknowledgement transaction did not converge")

	// ErrStorage is returned when the underlying store failed for reasons
	// other than a missing record.
	ErrStorage = errors.New("message store failure")

	// ErrPublish is returned when the broadcast notification could not be
	// emitted. The created message is unaffected; publishing is never part
	// of the creation transaction.
	ErrPublish = errors.New("broadcast publish failed")
)

// ValidationError reports caller-supplied data that violates a domain
// invariant. It is always raised before any store mutation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid message: " + e.Reason
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

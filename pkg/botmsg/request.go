package botmsg

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// CreateRequest carries the caller-supplied fields of a new message.
type CreateRequest struct {
	Description string         `json:"description"`
	Config      map[string]any `json:"config"`
	Target      Target         `json:"target"`
}

// Validate checks the request against the domain invariants: non-empty
// description, a well-typed config containing a numeric startCountAt, and a
// target obeying the ALL/SELECTED rules. It returns a *ValidationError so
// callers can distinguish bad input from infrastructure failure.
func (r CreateRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Description, validation.Required),
		validation.Field(&r.Config, validation.Required, validation.By(validConfig)),
		validation.Field(&r.Target, validation.By(validTarget)),
	)
	if err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}

func validTarget(value any) error {
	target, ok := value.(Target)
	if !ok {
		return fmt.Errorf("not a target")
	}
	return target.Validate()
}

func validConfig(value any) error {
	config, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("not a config map")
	}
	for key, v := range config {
		switch v.(type) {
		case string, bool, int, int32, int64, float32, float64:
		default:
			return fmt.Errorf("key %q has unsupported type %T", key, v)
		}
	}
	if _, ok := StartCountAt(config); !ok {
		return fmt.Errorf("missing numeric %q", ConfigStartCountAt)
	}
	return nil
}

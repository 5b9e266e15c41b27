package botmsg

import (
	"encoding/json"
	"fmt"
)

// Envelope is the broadcast wire format. Config and TargetSelected are
// JSON-encoded so the whole envelope is a flat string map, which lets the
// same fields double as transport attributes for subscription-side filters.
type Envelope struct {
	MessageID      string `json:"messageId"`
	Description    string `json:"description"`
	Config         string `json:"config"`
	TargetType     string `json:"targetType"`
	TargetSelected string `json:"targetSelected"`
}

// NewEnvelope builds the fan-out envelope for a created message.
func NewEnvelope(m Message) (Envelope, error) {
	config, err := json.Marshal(m.Config)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode config for message %s: %w", m.ID, err)
	}
	selected, err := json.Marshal(m.Target.Selected)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode target selection for message %s: %w", m.ID, err)
	}
	return Envelope{
		MessageID:      m.ID,
		Description:    m.Description,
		Config:         string(config),
		TargetType:     string(m.Target.Type),
		TargetSelected: string(selected),
	}, nil
}

// ParseEnvelope decodes an envelope from a broadcast payload.
func ParseEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode broadcast envelope: %w", err)
	}
	if env.MessageID == "" {
		return Envelope{}, fmt.Errorf("broadcast envelope has no messageId")
	}
	return env, nil
}

// Target decodes the targeting fields back into a Target.
func (e Envelope) Target() (Target, error) {
	target := Target{Type: TargetType(e.TargetType)}
	if e.TargetSelected != "" {
		if err := json.Unmarshal([]byte(e.TargetSelected), &target.Selected); err != nil {
			return Target{}, fmt.Errorf("decode target selection for message %s: %w", e.MessageID, err)
		}
	}
	if err := target.Validate(); err != nil {
		return Target{}, fmt.Errorf("envelope for message %s: %w", e.MessageID, err)
	}
	return target, nil
}

// ConfigMap decodes the configuration payload. Numbers decode as float64.
func (e Envelope) ConfigMap() (map[string]any, error) {
	var config map[string]any
	if err := json.Unmarshal([]byte(e.Config), &config); err != nil {
		return nil, fmt.Errorf("decode config for message %s: %w", e.MessageID, err)
	}
	return config, nil
}

// Attributes returns the envelope as a flat attribute map, set alongside the
// payload on every broadcast so subscriptions can filter without decoding it.
func (e Envelope) Attributes() map[string]string {
	return map[string]string{
		"messageId":      e.MessageID,
		"targetType":     e.TargetType,
		"targetSelected": e.TargetSelected,
	}
}

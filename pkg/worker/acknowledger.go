// Package worker is the bot side of the broadcast system: a subscription
// listener that filters messages for relevance, an acknowledger that reports
// receipt back to the message service, and the counter bot itself.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/illmade-knight/go-botbus/pkg/botmsg"
	"github.com/rs/zerolog"
)

// Acknowledger reports that this worker has received a message. Calls are
// idempotent server-side, so callers may retry freely.
type Acknowledger interface {
	Acknowledge(ctx context.Context, messageID string, workerID string) error
}

// HTTPAcknowledgerConfig holds configuration for the HTTP acknowledger.
type HTTPAcknowledgerConfig struct {
	// BaseURL is the message server's root, e.g. "http://msgserver:8080".
	BaseURL string
	// MaxAttempts bounds retries on retryable responses (409 and 5xx).
	MaxAttempts  int
	RetryBackoff time.Duration
	HTTPTimeout  time.Duration
}

// NewHTTPAcknowledgerDefaults provides a config with sensible defaults.
func NewHTTPAcknowledgerDefaults() *HTTPAcknowledgerConfig {
	return &HTTPAcknowledgerConfig{
		MaxAttempts:  5,
		RetryBackoff: 200 * time.Millisecond,
		HTTPTimeout:  10 * time.Second,
	}
}

// HTTPAcknowledger calls the message server's acknowledgement endpoint.
type HTTPAcknowledger struct {
	baseURL      string
	client       *http.Client
	maxAttempts  int
	retryBackoff time.Duration
	logger       zerolog.Logger
}

// NewHTTPAcknowledger creates an acknowledger for the given server.
func NewHTTPAcknowledger(cfg *HTTPAcknowledgerConfig, logger zerolog.Logger) (*HTTPAcknowledger, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("acknowledger base URL cannot be empty")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &HTTPAcknowledger{
		baseURL:      cfg.BaseURL,
		client:       &http.Client{Timeout: cfg.HTTPTimeout},
		maxAttempts:  cfg.MaxAttempts,
		retryBackoff: cfg.RetryBackoff,
		logger:       logger.With().Str("component", "HTTPAcknowledger").Logger(),
	}, nil
}

type ackRequest struct {
	WorkerID string `json:"workerId"`
}

// Acknowledge POSTs the worker id to the message's ack endpoint. Conflict and
// server-error responses are retried with backoff; the operation is
// idempotent, so a retry after an ambiguous failure is always safe. A 404
// is terminal and reported as botmsg.ErrNotFound.
func (a *HTTPAcknowledger) Acknowledge(ctx context.Context, messageID string, workerID string) error {
	body, err := json.Marshal(ackRequest{WorkerID: workerID})
	if err != nil {
		return fmt.Errorf("encode acknowledgement for message %s: %w", messageID, err)
	}
	url := fmt.Sprintf("%s/api/messages/%s/ack", a.baseURL, messageID)

	var lastErr error
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(a.retryBackoff * time.Duration(attempt)):
			}
		}

		status, err := a.post(ctx, url, body)
		if err != nil {
			lastErr = err
			a.logger.Warn().Err(err).Str("message_id", messageID).Int("attempt", attempt+1).Msg("Acknowledgement request failed.")
			continue
		}

		switch {
		case status == http.StatusOK:
			return nil
		case status == http.StatusNotFound:
			return fmt.Errorf("message %s: %w", messageID, botmsg.ErrNotFound)
		case status == http.StatusConflict || status >= 500:
			lastErr = fmt.Errorf("acknowledgement for message %s returned status %d", messageID, status)
			a.logger.Warn().Int("status", status).Str("message_id", messageID).Int("attempt", attempt+1).Msg("Retryable acknowledgement response.")
		default:
			return fmt.Errorf("acknowledgement for message %s rejected with status %d", messageID, status)
		}
	}
	return fmt.Errorf("acknowledgement for message %s did not succeed after %d attempts: %w", messageID, a.maxAttempts, lastErr)
}

func (a *HTTPAcknowledger) post(ctx context.Context, url string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, err
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Event types.
const (
	EventTuneCompleted     = "tune.completed"
	EventEvaluateCompleted = "evaluate.completed"
)

// SignatureHeader carries the HMAC of the request body.
const SignatureHeader = "X-Prodrank-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// NewEvent stamps an event with the current time.
func NewEvent(typ, runID string, data any) *Event {
	return &Event{Type: typ, RunID: runID, Timestamp: time.Now().Unix(), Data: data}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends a webhook event once.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
func Deliver(ctx context.Context, client *http.Client, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Prodrank-Webhook/1.0")
	if secret != "" {
		req.Header.Set(SignatureHeader, Sign(secret, body))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Notifier delivers events with retries. The zero value is not usable;
// build one with NewNotifier.
type Notifier struct {
	URL     string
	Secret  string
	Retries int

	// Backoff is the wait before retry n (1-based); the last value repeats.
	Backoff []time.Duration

	client *http.Client
}

// NewNotifier returns a Notifier, or nil when url is empty.
func NewNotifier(url, secret string, timeout time.Duration, retries int) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{
		URL:     url,
		Secret:  secret,
		Retries: retries,
		Backoff: []time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
		client:  &http.Client{Timeout: timeout},
	}
}

// Notify delivers event, retrying on failure. It blocks until delivery
// succeeds, retries are exhausted or ctx ends. A nil Notifier is a no-op.
func (n *Notifier) Notify(ctx context.Context, event *Event) error {
	if n == nil {
		return nil
	}
	var err error
	for attempt := 0; attempt <= n.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(n.backoff(attempt)):
			}
		}
		if err = Deliver(ctx, n.client, n.URL, n.Secret, event); err == nil {
			slog.Info("webhook delivered",
				"url", n.URL,
				"event", event.Type,
				"run_id", event.RunID,
				"attempt", attempt+1,
			)
			return nil
		}
		slog.Warn("webhook delivery failed",
			"url", n.URL,
			"event", event.Type,
			"run_id", event.RunID,
			"attempt", attempt+1,
			"error", err,
		)
	}
	slog.Error("webhook delivery exhausted all retries",
		"url", n.URL,
		"event", event.Type,
		"run_id", event.RunID,
	)
	return err
}

func (n *Notifier) backoff(attempt int) time.Duration {
	if len(n.Backoff) == 0 {
		return 0
	}
	if attempt > len(n.Backoff) {
		attempt = len(n.Backoff)
	}
	return n.Backoff[attempt-1]
}

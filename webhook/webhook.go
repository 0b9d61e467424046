// Package webhook posts signed run events to an external endpoint.
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

	"github.com/use-agent/harvester/models"
)

// Event types.
const (
	EventRunCompleted = "run.completed"
	EventRunEmpty     = "run.empty"
	EventRunFailed    = "run.failed"
)

// SignatureHeader carries "sha256=<hex>" of the body when a secret is set.
const SignatureHeader = "X-Harvest-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string          `json:"type"`
	RunID     string          `json:"run_id"`
	Timestamp int64           `json:"timestamp"`
	Summary   string          `json:"summary"`
	Data      models.RunState `json:"data"`
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends a webhook event synchronously.
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
	req.Header.Set("User-Agent", "Harvester-Webhook/1.0")
	if secret != "" {
		req.Header.Set(SignatureHeader, Sign(secret, body))
	}

	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
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

// Notifier delivers one event per finished run.
type Notifier struct {
	URL    string
	Secret string
	Client *http.Client

	// Delays are waited before each attempt. Default: 0, 1s, 5s, 30s.
	Delays []time.Duration
}

// NewNotifier creates a Notifier with the default retry schedule.
func NewNotifier(url, secret string) *Notifier {
	return &Notifier{
		URL:    url,
		Secret: secret,
		Client: &http.Client{Timeout: 10 * time.Second},
		Delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Source is the part of the state store the Notifier observes.
type Source interface {
	Subscribe() (<-chan models.RunState, func())
}

// Watch subscribes to src and notifies on every terminal state until ctx
// is done. Deliveries run in their own goroutines. The store drops states
// of superseded runs, so remembering the last notified run is enough to
// notify each run once.
func (n *Notifier) Watch(ctx context.Context, src Source) {
	ch, cancel := src.Subscribe()
	defer cancel()

	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-ch:
			if !ok {
				return
			}
			if st.IsRunning || st.ID == "" {
				continue
			}
			if st.ID == last {
				continue
			}
			last = st.ID
			go n.deliverWithRetry(ctx, EventFor(st))
		}
	}
}

// EventFor builds the event describing a finished run.
func EventFor(st models.RunState) *Event {
	typ := EventRunCompleted
	switch st.Status {
	case models.StatusEmpty:
		typ = EventRunEmpty
	case models.StatusFailed:
		typ = EventRunFailed
	}
	return &Event{
		Type:      typ,
		RunID:     st.ID,
		Timestamp: time.Now().Unix(),
		Summary:   st.Summary(),
		Data:      st,
	}
}

func (n *Notifier) deliverWithRetry(ctx context.Context, event *Event) {
	for attempt, delay := range n.Delays {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := Deliver(attemptCtx, n.Client, n.URL, n.Secret, event)
		cancel()
		if err == nil {
			slog.Info("webhook delivered",
				"url", n.URL,
				"event", event.Type,
				"run_id", event.RunID,
				"attempt", attempt+1,
			)
			return
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
}

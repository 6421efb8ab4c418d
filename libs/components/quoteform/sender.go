package quoteform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultSimulatedDelay matches the pause of the original contact page.
const DefaultSimulatedDelay = 2 * time.Second

var errSendTimeout = errors.New("send timed out")

// Ack acknowledges an accepted submission.
type Ack struct {
	ID         string    `json:"id"`
	Reference  string    `json:"reference,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Sender delivers a validated record somewhere. Implementations must honour
// ctx cancellation.
type Sender interface {
	Send(ctx context.Context, record Record) (Ack, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, record Record) (Ack, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, record Record) (Ack, error) {
	return f(ctx, record)
}

// SimulatedSender accepts every record after Delay.
type SimulatedSender struct {
	Delay time.Duration
}

// Send waits for the configured delay and acknowledges the record.
func (s SimulatedSender) Send(ctx context.Context, _ Record) (Ack, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Ack{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Ack{}, err
	}
	return Ack{ID: uuid.NewString(), ReceivedAt: time.Now().UTC()}, nil
}

// WebhookSender posts the record as a JSON object to URL.
type WebhookSender struct {
	URL    string
	Client *http.Client
	Header http.Header
}

// NewWebhookSender builds a sender for the given endpoint.
func NewWebhookSender(url string, client *http.Client) *WebhookSender {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &WebhookSender{URL: strings.TrimSpace(url), Client: client}
}

// Send posts the record. Any non-2xx answer is a failure; a JSON body with an
// "id" or "reference" is reflected in the Ack.
func (s *WebhookSender) Send(ctx context.Context, record Record) (Ack, error) {
	if s == nil || s.URL == "" {
		return Ack{}, errors.New("webhook url not configured")
	}

	body, err := json.Marshal(record.Map())
	if err != nil {
		return Ack{}, fmt.Errorf("encode record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return Ack{}, fmt.Errorf("build webhook request: %w", err)
	}
	for key, values := range s.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Ack{}, fmt.Errorf("webhook request failed: %w", err)
	}
	payload, err := readBody(resp)
	if err != nil {
		return Ack{}, fmt.Errorf("read webhook response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Ack{}, fmt.Errorf("webhook responded %d: %s", resp.StatusCode, snippet(payload))
	}

	ack := Ack{ReceivedAt: time.Now().UTC()}
	if obj, err := decodeObject(payload); err == nil {
		ack.ID, _ = obj["id"].(string)
		ack.Reference, _ = obj["reference"].(string)
	}
	if ack.ID == "" {
		ack.ID = uuid.NewString()
	}
	return ack, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	if resp.Body == nil {
		return []byte{}, nil
	}
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// decodeObject unwraps an optional {"data": {...}} envelope.
func decodeObject(payload []byte) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		return map[string]any{}, err
	}
	if inner, ok := obj["data"].(map[string]any); ok {
		return inner, nil
	}
	return obj, nil
}

func snippet(payload []byte) string {
	text := strings.TrimSpace(string(payload))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text == "" {
		return "empty body"
	}
	return text
}

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tourneykit/core"
)

// Sink posts domain events to configured HTTP endpoints.
// It is synchronous; subscribe it to an async bus to keep publishers fast.
type Sink struct {
	client    *http.Client
	endpoints []string
	types     map[core.EventType]struct{}
	log       *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTypes restricts delivery to the given event types.
func WithTypes(types ...core.EventType) Option {
	return func(s *Sink) {
		if len(types) == 0 {
			return
		}
		s.types = make(map[core.EventType]struct{}, len(types))
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 2 * time.Second},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	return s
}

// Wants reports whether the sink delivers events of type t.
func (s *Sink) Wants(t core.EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// OnEvent posts the event JSON to all endpoints. Failures are logged and do
// not stop delivery to the remaining endpoints.
func (s *Sink) OnEvent(ctx context.Context, e core.Event) {
	if len(s.endpoints) == 0 || !s.Wants(e.Type) {
		return
	}
	body, err := json.Marshal(e)
	if err != nil {
		s.log.Error("webhook encode failed", "event_id", e.ID, "error", err)
		return
	}
	for _, ep := range s.endpoints {
		if err := s.post(ctx, ep, body); err != nil {
			s.log.Warn("webhook delivery failed", "endpoint", ep, "event_id", e.ID, "type", e.Type, "error", err)
		}
	}
}

func (s *Sink) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

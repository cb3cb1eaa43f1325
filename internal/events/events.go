// Package events publishes run lifecycle notifications.
//
// Subjects:
//
//	{prefix}.runs.{run_number}.started
//	{prefix}.runs.{run_number}.completed
//	{prefix}.runs.{run_number}.failed
//	{prefix}.runs.{run_number}.rule_learned
//	{prefix}.memory.reset
//
// Publishing is best effort. Callers log failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/config"
)

// Kind names a lifecycle event.
type Kind string

const (
	KindStarted     Kind = "started"
	KindCompleted   Kind = "completed"
	KindFailed      Kind = "failed"
	KindRuleLearned Kind = "rule_learned"
	KindMemoryReset Kind = "reset"
)

// Event is the JSON payload of every message.
type Event struct {
	Kind       Kind      `json:"kind"`
	RunNumber  int       `json:"run_number,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	Query      string    `json:"query,omitempty"`
	Success    bool      `json:"success"`
	Violations []string  `json:"violations,omitempty"`
	Rule       string    `json:"rule,omitempty"`
	Error      string    `json:"error,omitempty"`
	Warning    string    `json:"warning,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Subject returns the NATS subject for e under prefix.
func Subject(prefix string, e Event) string {
	if e.Kind == KindMemoryReset {
		return prefix + ".memory.reset"
	}
	return fmt.Sprintf("%s.runs.%d.%s", prefix, e.RunNumber, e.Kind)
}

// Publisher emits events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// NATSPublisher publishes events to a NATS server.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	owned  bool
}

// Connect dials cfg.URL and returns a publisher owning the connection.
func Connect(cfg config.NATSConfig) (*NATSPublisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("finagent"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	p := NewNATSPublisher(nc, cfg.SubjectPrefix)
	p.owned = true
	return p, nil
}

// defaultFlushTimeout bounds Flush when the caller sets no deadline.
const defaultFlushTimeout = 2 * time.Second

// NewNATSPublisher wraps an existing connection. Close leaves nc open.
func NewNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = "finagent"
	}
	return &NATSPublisher{nc: nc, prefix: prefix}
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := Subject(p.prefix, e)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Flush waits until the server has processed everything published so far.
// Without a deadline on ctx, defaultFlushTimeout applies.
func (p *NATSPublisher) Flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultFlushTimeout)
		defer cancel()
	}
	return p.nc.FlushWithContext(ctx)
}

// Close drains the connection when the publisher owns it.
func (p *NATSPublisher) Close() error {
	if !p.owned {
		return nil
	}
	return p.nc.Drain()
}

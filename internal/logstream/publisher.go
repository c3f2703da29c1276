// Package logstream is the shared helper services use to publish log
// lines to the logs topic for live dashboards.
package logstream

import (
	"context"
	"time"

	"github.com/example/shop-analytics/internal/event"
	"github.com/example/shop-analytics/internal/infrastructure/kafka"
)

type eventWriter interface {
	Publish(ctx context.Context, key string, event any) error
	Close() error
}

// Publisher is an explicitly owned, lazily connected log producer.
// The first Publish dials the broker; Close flushes and releases the
// connection. Callers own the lifecycle, there is no process-wide
// singleton.
type Publisher struct {
	producer eventWriter
	source   string
	now      func() time.Time
}

func NewPublisher(brokers []string, topic, source string) *Publisher {
	return &Publisher{
		producer: kafka.NewLazyProducer(brokers, topic),
		source:   source,
		now:      time.Now,
	}
}

// Publish sends one log line, stamping the timestamp if unset.
func (p *Publisher) Publish(ctx context.Context, e event.LogEvent) error {
	if e.Source == "" {
		e.Source = p.source
	}
	if e.Timestamp == "" {
		e.Timestamp = p.now().Format(time.RFC3339)
	}
	return p.producer.Publish(ctx, e.Source, e)
}

func (p *Publisher) Success(ctx context.Context, msg string) error {
	return p.Publish(ctx, event.LogEvent{Type: event.LogSuccess, Message: msg})
}

func (p *Publisher) Error(ctx context.Context, msg string) error {
	return p.Publish(ctx, event.LogEvent{Type: event.LogError, Message: msg})
}

func (p *Publisher) Info(ctx context.Context, msg string) error {
	return p.Publish(ctx, event.LogEvent{Type: event.LogInfo, Message: msg})
}

func (p *Publisher) Warning(ctx context.Context, msg string) error {
	return p.Publish(ctx, event.LogEvent{Type: event.LogWarning, Message: msg})
}

func (p *Publisher) Debug(ctx context.Context, msg string) error {
	return p.Publish(ctx, event.LogEvent{Type: event.LogDebug, Message: msg})
}

// Close flushes and disconnects. Safe to call when nothing was ever
// published.
func (p *Publisher) Close() error {
	return p.producer.Close()
}

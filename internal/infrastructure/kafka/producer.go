package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer}
}

func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// LazyProducer defers writer construction until the first publish, so
// callers that may never emit a message hold no broker connection. It
// is an explicitly owned client: whoever creates it must Close it.
type LazyProducer struct {
	mu      sync.Mutex
	brokers []string
	topic   string
	inner   *Producer
}

func NewLazyProducer(brokers []string, topic string) *LazyProducer {
	return &LazyProducer{brokers: brokers, topic: topic}
}

func (p *LazyProducer) Publish(ctx context.Context, key string, event any) error {
	p.mu.Lock()
	if p.inner == nil {
		p.inner = NewProducer(p.brokers, p.topic)
	}
	inner := p.inner
	p.mu.Unlock()

	return inner.Publish(ctx, key, event)
}

// Close flushes and releases the underlying writer if one was ever
// created.
func (p *LazyProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inner == nil {
		return nil
	}
	err := p.inner.Close()
	p.inner = nil
	return err
}

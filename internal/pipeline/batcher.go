package pipeline

import (
	"context"
	"log"
	"time"
)

// DefaultFlushInterval is the cadence at which buffered messages are
// handed to the flush step.
const DefaultFlushInterval = 3 * time.Second

// Batcher decouples message-by-message broker delivery from the
// processing cadence. Incoming messages are decoded and buffered; a
// periodic tick detaches the batch and hands it to the flush function.
type Batcher[T any] struct {
	name     string
	buf      *Buffer[T]
	decode   func(raw []byte) (T, error)
	flush    func(ctx context.Context, batch []T)
	interval time.Duration
}

// NewBatcher wires a decode step and a flush step around a bounded
// buffer. An interval <= 0 falls back to DefaultFlushInterval.
func NewBatcher[T any](name string, capacity int, interval time.Duration,
	decode func(raw []byte) (T, error),
	flush func(ctx context.Context, batch []T)) *Batcher[T] {

	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Batcher[T]{
		name:     name,
		buf:      NewBuffer[T](capacity),
		decode:   decode,
		flush:    flush,
		interval: interval,
	}
}

// HandleMessage decodes a raw broker message and buffers it. A message
// that fails decoding is logged and dropped; the pipeline continues.
// The returned error is always nil so the consumer never re-delivers.
func (b *Batcher[T]) HandleMessage(ctx context.Context, key, value []byte) error {
	item, err := b.decode(value)
	if err != nil {
		log.Printf("[%s] Dropping message: %v", b.name, err)
		return nil
	}

	if evicted := b.buf.Append(item); evicted {
		log.Printf("[%s] Buffer full, evicted oldest element (total dropped: %d)", b.name, b.buf.Dropped())
	}
	return nil
}

// Run flushes on every tick until ctx is cancelled, then performs one
// final drain flush so buffered messages are not abandoned on shutdown.
func (b *Batcher[T]) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.flushOnce(context.Background())
			return
		case <-ticker.C:
			b.flushOnce(ctx)
		}
	}
}

// flushOnce detaches the current batch and processes it. An empty
// buffer makes the tick a no-op.
func (b *Batcher[T]) flushOnce(ctx context.Context) {
	batch := b.buf.Swap()
	if len(batch) == 0 {
		return
	}
	b.flush(ctx, batch)
}

// Buffered returns the number of elements awaiting the next flush.
func (b *Batcher[T]) Buffered() int {
	return b.buf.Len()
}

package pipeline

import "sync"

// Buffer is a bounded in-memory batch buffer shared between the broker
// message handler and the flush timer. Once capacity is reached the
// oldest element is dropped to make room; ingestion never blocks.
type Buffer[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	dropped  uint64
}

// NewBuffer creates a buffer that holds at most capacity elements.
// capacity <= 0 means unbounded.
func NewBuffer[T any](capacity int) *Buffer[T] {
	b := &Buffer[T]{capacity: capacity}
	if capacity > 0 {
		b.items = make([]T, 0, capacity)
	}
	return b
}

// Append adds an element, evicting the oldest one when full. It
// reports whether an eviction happened, so the caller doesn't have to
// diff the Dropped counter across racing appends.
func (b *Buffer[T]) Append(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.capacity > 0 && len(b.items) >= b.capacity {
		copy(b.items, b.items[1:])
		b.items[len(b.items)-1] = item
		b.dropped++
		return true
	}
	b.items = append(b.items, item)
	return false
}

// Swap detaches the current batch and installs a fresh buffer in a
// single step, so a concurrent Append lands in exactly one batch.
// Returns nil when the buffer is empty.
func (b *Buffer[T]) Swap() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) == 0 {
		return nil
	}
	out := b.items
	if b.capacity > 0 {
		b.items = make([]T, 0, b.capacity)
	} else {
		b.items = nil
	}
	return out
}

// Len returns the number of buffered elements.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Dropped returns how many elements were evicted by the capacity bound.
func (b *Buffer[T]) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

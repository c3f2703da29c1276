package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_AppendAndSwap(t *testing.T) {
	buf := NewBuffer[int](0)

	buf.Append(1)
	buf.Append(2)
	buf.Append(3)

	batch := buf.Swap()

	assert.Equal(t, []int{1, 2, 3}, batch)
	assert.Equal(t, 0, buf.Len())
}

func TestBuffer_SwapEmptyReturnsNil(t *testing.T) {
	buf := NewBuffer[int](0)

	assert.Nil(t, buf.Swap())
}

func TestBuffer_DropsOldestAtCapacity(t *testing.T) {
	buf := NewBuffer[int](3)

	for i := 1; i <= 5; i++ {
		buf.Append(i)
	}

	batch := buf.Swap()

	assert.Equal(t, []int{3, 4, 5}, batch)
	assert.Equal(t, uint64(2), buf.Dropped())
}

func TestBuffer_AppendReportsEviction(t *testing.T) {
	buf := NewBuffer[int](2)

	assert.False(t, buf.Append(1))
	assert.False(t, buf.Append(2))
	assert.True(t, buf.Append(3))
	assert.Equal(t, uint64(1), buf.Dropped())

	buf.Swap()

	// eviction reporting resets with the fresh buffer
	assert.False(t, buf.Append(4))
}

func TestBuffer_OrderPreservedWithinBatch(t *testing.T) {
	buf := NewBuffer[string](0)

	buf.Append("a")
	buf.Append("b")
	batch1 := buf.Swap()
	buf.Append("c")
	batch2 := buf.Swap()

	assert.Equal(t, []string{"a", "b"}, batch1)
	assert.Equal(t, []string{"c"}, batch2)
}

// Every appended element must land in exactly one batch, even while
// swaps run concurrently with appends.
func TestBuffer_ConcurrentAppendAndSwap(t *testing.T) {
	const (
		writers       = 8
		perWriter     = 500
		totalExpected = writers * perWriter
	)

	buf := NewBuffer[int](0)

	var collected [][]int
	var collectMu sync.Mutex
	stop := make(chan struct{})

	var swapper sync.WaitGroup
	swapper.Add(1)
	go func() {
		defer swapper.Done()
		for {
			select {
			case <-stop:
				return
			default:
				if batch := buf.Swap(); batch != nil {
					collectMu.Lock()
					collected = append(collected, batch)
					collectMu.Unlock()
				}
			}
		}
	}()

	var writersWG sync.WaitGroup
	for w := 0; w < writers; w++ {
		writersWG.Add(1)
		go func(w int) {
			defer writersWG.Done()
			for i := 0; i < perWriter; i++ {
				buf.Append(w*perWriter + i)
			}
		}(w)
	}
	writersWG.Wait()
	close(stop)
	swapper.Wait()

	// Pick up whatever the swapper didn't get to.
	if batch := buf.Swap(); batch != nil {
		collected = append(collected, batch)
	}

	seen := make(map[int]int, totalExpected)
	for _, batch := range collected {
		for _, v := range batch {
			seen[v]++
		}
	}

	require.Len(t, seen, totalExpected)
	for v, count := range seen {
		require.Equalf(t, 1, count, "element %d appeared in %d batches", v, count)
	}
}

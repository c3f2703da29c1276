package logstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/shop-analytics/internal/event"
)

type fakeWriter struct {
	keys   []string
	events []event.LogEvent
	closed bool
}

func (f *fakeWriter) Publish(ctx context.Context, key string, evt any) error {
	f.keys = append(f.keys, key)
	f.events = append(f.events, evt.(event.LogEvent))
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func newTestPublisher() (*Publisher, *fakeWriter) {
	writer := &fakeWriter{}
	p := &Publisher{
		producer: writer,
		source:   "order-service",
		now:      func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	return p, writer
}

func TestPublisher_StampsSourceAndTimestamp(t *testing.T) {
	p, writer := newTestPublisher()

	err := p.Publish(context.Background(), event.LogEvent{Type: event.LogInfo, Message: "hello"})

	require.NoError(t, err)
	require.Len(t, writer.events, 1)
	got := writer.events[0]
	assert.Equal(t, "order-service", got.Source)
	assert.Equal(t, "2024-05-01T12:00:00Z", got.Timestamp)
	assert.Equal(t, "order-service", writer.keys[0])
}

func TestPublisher_KeepsExplicitFields(t *testing.T) {
	p, writer := newTestPublisher()

	err := p.Publish(context.Background(), event.LogEvent{
		Type:      event.LogError,
		Message:   "boom",
		Source:    "payment-service",
		Timestamp: "2023-01-01T00:00:00Z",
	})

	require.NoError(t, err)
	got := writer.events[0]
	assert.Equal(t, "payment-service", got.Source)
	assert.Equal(t, "2023-01-01T00:00:00Z", got.Timestamp)
}

func TestPublisher_ConvenienceLevels(t *testing.T) {
	p, writer := newTestPublisher()
	ctx := context.Background()

	require.NoError(t, p.Success(ctx, "ok"))
	require.NoError(t, p.Error(ctx, "bad"))
	require.NoError(t, p.Info(ctx, "fyi"))
	require.NoError(t, p.Warning(ctx, "careful"))
	require.NoError(t, p.Debug(ctx, "detail"))

	require.Len(t, writer.events, 5)
	assert.Equal(t, event.LogSuccess, writer.events[0].Type)
	assert.Equal(t, event.LogError, writer.events[1].Type)
	assert.Equal(t, event.LogInfo, writer.events[2].Type)
	assert.Equal(t, event.LogWarning, writer.events[3].Type)
	assert.Equal(t, event.LogDebug, writer.events[4].Type)
}

func TestPublisher_Close(t *testing.T) {
	p, writer := newTestPublisher()

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestPublisher_CloseWithoutPublishing(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"}, "logs", "test")

	// nothing was ever published, so no connection exists to flush
	assert.NoError(t, p.Close())
}

// ABOUTME: Tests for the notice hub fan-out
// ABOUTME: Covers delivery, context cleanup, slow subscribers and close

package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Notice) Notice {
	t.Helper()
	select {
	case n, ok := <-ch:
		require.True(t, ok, "channel closed")
		return n
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notice")
		return Notice{}
	}
}

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	h := NewHub(nil)
	ctx := context.Background()

	a, _ := h.Subscribe(ctx)
	b, _ := h.Subscribe(ctx)

	h.Publish(Notice{Kind: KindSuccess, Agent: "bot1@example.com", Ordinal: 1, Text: "connected"})

	for _, ch := range []<-chan Notice{a, b} {
		n := receive(t, ch)
		assert.Equal(t, KindSuccess, n.Kind)
		assert.Equal(t, 1, n.Ordinal)
		assert.False(t, n.At.IsZero(), "publish stamps the time")
	}
}

func TestHub_UnsubscribeOnContextCancel(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch, _ := h.Subscribe(ctx)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	// publishing after removal must not panic
	h.Publish(Notice{Kind: KindInfo})
}

func TestHub_SlowSubscriberDrops(t *testing.T) {
	h := NewHub(nil)
	ch, id := h.Subscribe(context.Background())

	for i := 0; i < subscriberBufferSize+10; i++ {
		h.Publish(Notice{Kind: KindInfo, Ordinal: i})
	}

	assert.Len(t, ch, subscriberBufferSize)
	assert.Equal(t, uint64(10), h.Dropped())
	h.Unsubscribe(id)
	h.Unsubscribe(id)
}

func TestHub_SubscribeBuffered(t *testing.T) {
	h := NewHub(nil)
	big, _ := h.SubscribeBuffered(context.Background(), 4*subscriberBufferSize)
	small, _ := h.Subscribe(context.Background())

	for i := 0; i < 2*subscriberBufferSize; i++ {
		h.Publish(Notice{Kind: KindSighting, Ordinal: i})
	}

	assert.Len(t, big, 2*subscriberBufferSize, "the larger buffer keeps every notice")
	assert.Len(t, small, subscriberBufferSize)
	assert.Equal(t, uint64(subscriberBufferSize), h.Dropped())

	fallback, _ := h.SubscribeBuffered(context.Background(), 0)
	assert.Equal(t, subscriberBufferSize, cap(fallback))
}

func TestHub_Close(t *testing.T) {
	h := NewHub(nil)
	ch, _ := h.Subscribe(context.Background())
	h.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := h.Subscribe(context.Background())
	_, ok = <-late
	assert.False(t, ok)
}

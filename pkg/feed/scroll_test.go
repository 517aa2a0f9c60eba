package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrollFraction(t *testing.T) {
	tcs := []struct {
		name                  string
		top, height, viewport float64
		want                  float64
	}{
		{name: "top", top: 0, height: 2000, viewport: 1000, want: 0},
		{name: "middle", top: 500, height: 2000, viewport: 1000, want: 50},
		{name: "bottom", top: 1000, height: 2000, viewport: 1000, want: 100},
		{name: "overscroll", top: 1100, height: 2000, viewport: 1000, want: 100},
		{name: "negative", top: -20, height: 2000, viewport: 1000, want: 0},
		{name: "not scrollable", top: 0, height: 800, viewport: 1000, want: 100},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, ScrollFraction(tc.top, tc.height, tc.viewport), 0.0001)
		})
	}
}

func TestScrollSignalLatestValueWins(t *testing.T) {
	s := NewScrollSignal()
	s.Publish(10)
	s.Publish(50)
	s.Publish(120)
	assert.Equal(t, float64(100), s.Latest())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := s.Observe(ctx)

	select {
	case got := <-stream:
		assert.Equal(t, float64(100), got)
	case <-time.After(time.Second):
		t.Fatal("no value observed")
	}
}

func TestScrollSignalStreamEndsOnCancel(t *testing.T) {
	s := NewScrollSignal()
	ctx, cancel := context.WithCancel(context.Background())
	stream := s.Observe(ctx)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-stream:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	// Publishing after teardown must not block
	s.Publish(40)
	s.Publish(41)
}

func TestScrollSignalStreamEndsOnClose(t *testing.T) {
	s := NewScrollSignal()
	stream := s.Observe(context.Background())
	s.Close()
	s.Close()
	s.Publish(99)

	select {
	case _, ok := <-stream:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("stream was not closed")
	}
}

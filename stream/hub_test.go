package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubPublishToSubscribers(t *testing.T) {
	hub := NewHub[int](2)

	a, cancelA := hub.Subscribe()
	b, cancelB := hub.Subscribe()
	defer cancelB()

	assert.Equal(t, 2, hub.Len())
	assert.Equal(t, 2, hub.Publish(1))

	assert.Equal(t, 1, <-a)
	assert.Equal(t, 1, <-b)

	cancelA()
	cancelA()

	_, ok := <-a
	assert.False(t, ok, "channel closed on cancel")
	assert.Equal(t, 1, hub.Len())
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewHub[string](1)

	ch, cancel := hub.Subscribe()
	defer cancel()

	assert.Equal(t, 1, hub.Publish("first"))
	assert.Equal(t, 0, hub.Publish("second"), "buffer full")

	assert.Equal(t, "first", <-ch)
}

func TestHubClose(t *testing.T) {
	hub := NewHub[int](1)

	ch, cancel := hub.Subscribe()
	hub.Close()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := hub.Subscribe()
	_, ok = <-late
	require.False(t, ok, "subscriptions after close are already closed")
	assert.Equal(t, 0, hub.Publish(1))
}

package stream

import "sync"

// Hub fans values out to any number of subscribers.  Publishing never blocks
// the frame loop, a subscriber that has not drained its buffer misses the
// value.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[chan T]struct{}
	buffer int
	closed bool
}

// NewHub returns a Hub whose subscriber channels hold buffer values
func NewHub[T any](buffer int) *Hub[T] {

	if buffer < 1 {
		buffer = 1
	}

	return &Hub[T]{
		subs:   make(map[chan T]struct{}),
		buffer: buffer,
	}
}

// Subscribe returns a channel receiving published values and a function to
// cancel the subscription.  The channel is closed on cancel or when the Hub
// is closed.
func (h *Hub[T]) Subscribe() (<-chan T, func()) {

	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan T, h.buffer)

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	h.subs[ch] = struct{}{}

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Publish sends v to every subscriber with room in its buffer and returns
// the number of subscribers it was delivered to
func (h *Hub[T]) Publish(v T) int {

	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0

	for ch := range h.subs {
		select {
		case ch <- v:
			delivered++
		default:
		}
	}

	return delivered
}

// Len returns the number of subscribers
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends all subscriptions
func (h *Hub[T]) Close() {

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.closed = true

	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

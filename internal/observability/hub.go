package observability

import "sync"

// Hub fans published values out to every subscriber. Slow subscribers miss
// values rather than block the publisher.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan any]struct{}
	buffer int
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: map[chan any]struct{}{}, buffer: buffer}
}

// Subscribe returns a channel of published values and a function that
// unsubscribes and closes it.
func (h *Hub) Subscribe() (<-chan any, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan any, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
}

// Publish delivers v to every subscriber with room for it.
func (h *Hub) Publish(v any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Close closes every subscription. Later subscriptions are closed immediately.
func (h *Hub) Close() {
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

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

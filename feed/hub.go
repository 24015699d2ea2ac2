// Package feed fans out live snapshots to subscribers. Callers own their
// subscriptions and end them with the returned unsubscribe func.
package feed

import "sync"

// Hub delivers values of type T to callbacks registered per topic.
type Hub[T any] struct {
	mu   sync.RWMutex
	next uint64
	subs map[string]map[uint64]func(T)
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[string]map[uint64]func(T))}
}

// Subscribe registers fn for topic. The returned func removes it and is safe to
// call more than once.
func (h *Hub[T]) Subscribe(topic string, fn func(T)) (unsubscribe func()) {
	h.mu.Lock()
	h.next++
	id := h.next
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[uint64]func(T))
	}
	h.subs[topic][id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[topic], id)
			if len(h.subs[topic]) == 0 {
				delete(h.subs, topic)
			}
		})
	}
}

// Publish calls every callback registered for topic. Callbacks run on the
// publisher's goroutine, outside the hub lock.
func (h *Hub[T]) Publish(topic string, v T) {
	h.mu.RLock()
	fns := make([]func(T), 0, len(h.subs[topic]))
	for _, fn := range h.subs[topic] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

// HasSubscribers reports whether anyone listens on topic, letting publishers skip
// building snapshots nobody reads.
func (h *Hub[T]) HasSubscribers(topic string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic]) > 0
}

package cache

import (
	"sync"
)

type memoCall[V any] struct {
	done chan struct{}
	val  V
}

// Memo caches results by key for the lifetime of one request cycle.
// Callers racing on the same key wait for the first computation instead of
// starting their own.
type Memo[K comparable, V any] struct {
	mu    sync.Mutex
	calls map[K]*memoCall[V]
}

// NewMemo creates an empty Memo.
func NewMemo[K comparable, V any]() *Memo[K, V] {
	return &Memo[K, V]{calls: make(map[K]*memoCall[V])}
}

// Do returns the memoized value for key, computing it with fn on first use.
func (m *Memo[K, V]) Do(key K, fn func() V) V {
	m.mu.Lock()
	if c, ok := m.calls[key]; ok {
		m.mu.Unlock()
		<-c.done
		CacheHits.WithLabelValues("memo").Inc()
		return c.val
	}

	c := &memoCall[V]{done: make(chan struct{})}
	m.calls[key] = c
	m.mu.Unlock()
	CacheMisses.WithLabelValues("memo").Inc()

	defer close(c.done)
	c.val = fn()
	return c.val
}

// Len returns the number of keys held.
func (m *Memo[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset drops every memoized value. Computations already in flight finish
// for their current waiters but are not kept.
func (m *Memo[K, V]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make(map[K]*memoCall[V])
}

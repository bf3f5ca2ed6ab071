package core

import (
	"context"
	"sync"
)

// Memo runs an operation at most once per key and shares the result.
//
// Concurrent callers with an equal key wait for the same in-flight call;
// later callers get the stored result, including a stored error. Entries
// are never evicted, so a Memo lives exactly as long as its owner.
type Memo[K comparable, V any] struct {
	entries sync.Map // K -> *memoEntry[V]
}

type memoEntry[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// NewMemo creates an empty memo.
func NewMemo[K comparable, V any]() *Memo[K, V] {
	return &Memo[K, V]{}
}

// Do returns the result of fn for key, calling fn only if no call for key
// has started yet. fn runs detached from the caller's cancellation so one
// caller giving up cannot poison the result for the others; each caller
// stops waiting when its own ctx is done.
func (m *Memo[K, V]) Do(ctx context.Context, key K, fn func(context.Context) (V, error)) (V, error) {
	entry := &memoEntry[V]{done: make(chan struct{})}
	actual, loaded := m.entries.LoadOrStore(key, entry)
	entry = actual.(*memoEntry[V])

	if !loaded {
		detached := context.WithoutCancel(ctx)
		go func() {
			defer close(entry.done)
			entry.value, entry.err = fn(detached)
		}()
	}

	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case <-entry.done:
		return entry.value, entry.err
	}
}

// Store records value for key unless a call for key already exists.
// It returns true if the value was stored.
func (m *Memo[K, V]) Store(key K, value V) bool {
	entry := &memoEntry[V]{done: make(chan struct{}), value: value}
	close(entry.done)
	_, loaded := m.entries.LoadOrStore(key, entry)
	return !loaded
}

// Peek returns the completed, successful result for key without waiting.
func (m *Memo[K, V]) Peek(key K) (V, bool) {
	var zero V
	actual, ok := m.entries.Load(key)
	if !ok {
		return zero, false
	}
	entry := actual.(*memoEntry[V])
	select {
	case <-entry.done:
		if entry.err != nil {
			return zero, false
		}
		return entry.value, true
	default:
		return zero, false
	}
}

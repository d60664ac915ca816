// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

// Package loader implements request-scoped batched loading. A Loader
// coalesces point lookups issued concurrently within one request into a
// single batched fetch per key type and memoizes every result for the
// remainder of the request. One Loaders bundle is built per inbound
// request and discarded with it; nothing here is shared across requests.
package loader

import (
	"context"
	"sync"
	"time"
)

// DefaultWait is the coalescing window armed when the first key of a
// batch arrives. Keys enqueued before it fires join the same fetch.
const DefaultWait = time.Millisecond

// Fetch resolves a full set of distinct keys in one round trip. Keys
// absent from the returned map resolve to "not found", not an error.
type Fetch[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

// thunk is the pending-result registry entry for one key. done is
// closed exactly once when the owning batch completes; every Load call
// for the key waits on it (single-flight per key).
type thunk[V any] struct {
	done  chan struct{}
	value V
	found bool
	err   error
}

// batch accumulates keys while its coalescing window is open.
type batch[K comparable, V any] struct {
	ctx    context.Context
	keys   []K
	thunks []*thunk[V]
	full   chan struct{}
}

// Loader batches and caches lookups for one key type within a request.
type Loader[K comparable, V any] struct {
	fetch    Fetch[K, V]
	wait     time.Duration
	maxBatch int
	observe  func(batchSize int)

	mu      sync.Mutex
	cache   map[K]*thunk[V]
	pending *batch[K, V]
}

// Option configures a Loader.
type Option func(*options)

type options struct {
	wait     time.Duration
	maxBatch int
	observe  func(batchSize int)
}

// WithWait sets the coalescing window.
func WithWait(d time.Duration) Option {
	return func(o *options) { o.wait = d }
}

// WithMaxBatch caps the number of keys per fetch; a full batch is
// dispatched without waiting for the window to close. Zero means
// unbounded.
func WithMaxBatch(n int) Option {
	return func(o *options) { o.maxBatch = n }
}

// WithObserver registers a callback invoked once per dispatched batch
// with the number of keys it carried.
func WithObserver(fn func(batchSize int)) Option {
	return func(o *options) { o.observe = fn }
}

// New creates a Loader over the given batched fetch.
func New[K comparable, V any](fetch Fetch[K, V], opts ...Option) *Loader[K, V] {
	o := options{wait: DefaultWait}
	for _, opt := range opts {
		opt(&o)
	}
	return &Loader[K, V]{
		fetch:    fetch,
		wait:     o.wait,
		maxBatch: o.maxBatch,
		observe:  o.observe,
		cache:    make(map[K]*thunk[V]),
	}
}

// Load resolves one key. The first call for a structurally-equal key
// enqueues it into the open batch (arming the coalescing window if none
// is open); every later call, concurrent or not, shares that one
// underlying fetch. found is false when the fetch returned no value for
// the key. A fetch failure is recorded once and surfaces identically to
// every caller whose key rode the failed batch.
func (l *Loader[K, V]) Load(ctx context.Context, key K) (value V, found bool, err error) {
	l.mu.Lock()
	t, ok := l.cache[key]
	if !ok {
		t = &thunk[V]{done: make(chan struct{})}
		l.cache[key] = t
		l.enqueueLocked(ctx, key, t)
	}
	l.mu.Unlock()

	select {
	case <-t.done:
		return t.value, t.found, t.err
	case <-ctx.Done():
		// The batch keeps running to completion; this caller just
		// stops waiting for it.
		var zero V
		return zero, false, ctx.Err()
	}
}

// Prime seeds the cache with an already-resolved value. Existing
// entries win.
func (l *Loader[K, V]) Prime(key K, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.cache[key]; ok {
		return
	}
	t := &thunk[V]{done: make(chan struct{}), value: value, found: true}
	close(t.done)
	l.cache[key] = t
}

// enqueueLocked adds the key to the open batch, opening one (and its
// window) if needed. Caller holds l.mu.
func (l *Loader[K, V]) enqueueLocked(ctx context.Context, key K, t *thunk[V]) {
	b := l.pending
	if b == nil {
		b = &batch[K, V]{
			// Abandoned requests do not cancel an in-flight batch;
			// other keys on the batch may belong to live callers.
			ctx:  context.WithoutCancel(ctx),
			full: make(chan struct{}),
		}
		l.pending = b
		go l.window(b)
	}
	b.keys = append(b.keys, key)
	b.thunks = append(b.thunks, t)
	if l.maxBatch > 0 && len(b.keys) >= l.maxBatch {
		l.pending = nil
		close(b.full)
	}
}

// window waits out the coalescing window (or an early flush), detaches
// the batch, and dispatches it.
func (l *Loader[K, V]) window(b *batch[K, V]) {
	timer := time.NewTimer(l.wait)
	select {
	case <-timer.C:
	case <-b.full:
		timer.Stop()
	}

	l.mu.Lock()
	if l.pending == b {
		l.pending = nil
	}
	l.mu.Unlock()

	l.dispatch(b)
}

// dispatch runs the underlying fetch for a detached batch and completes
// every waiting thunk. Results map back to callers by exact structural
// key equality; rows the fetch over-fetched are simply never looked up.
func (l *Loader[K, V]) dispatch(b *batch[K, V]) {
	if l.observe != nil {
		l.observe(len(b.keys))
	}

	values, err := l.fetch(b.ctx, b.keys)
	for i, t := range b.thunks {
		if err != nil {
			t.err = err
		} else {
			t.value, t.found = values[b.keys[i]]
		}
		close(t.done)
	}
}

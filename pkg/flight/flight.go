// Package flight provides a single-flight group: concurrent callers
// requesting the same key share one in-flight computation and its result.
package flight

import (
	"context"
	"sync"
)

// call is one in-flight computation.
type call[T any] struct {
	done    chan struct{}
	val     T
	err     error
	waiters int
	cancel  context.CancelFunc
}

// Group collapses concurrent calls for the same key into a single
// execution. Create with New.
type Group[T any] struct {
	mu    sync.Mutex
	calls map[string]*call[T]
}

// New creates an empty Group.
func New[T any]() *Group[T] {
	return &Group[T]{calls: make(map[string]*call[T])}
}

// Do executes fn for key, collapsing concurrent calls: while a call for key
// is in flight, further callers wait for it and receive the same result
// instead of running fn again. shared reports whether this caller joined an
// execution it did not start.
//
// fn runs under a context detached from any single caller, so one waiter
// abandoning the call does not cancel it for the others; when the last
// remaining waiter abandons, the run context is cancelled to release the
// underlying work. The key is removed as soon as fn completes (success or
// failure), so later calls start fresh and failures are never sticky.
func (g *Group[T]) Do(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (T, bool, error) {
	g.mu.Lock()
	if c, ok := g.calls[key]; ok {
		c.waiters++
		g.mu.Unlock()
		return g.wait(ctx, c, true)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &call[T]{
		done:    make(chan struct{}),
		waiters: 1,
		cancel:  cancel,
	}
	g.calls[key] = c
	g.mu.Unlock()

	go func() {
		val, err := fn(runCtx)

		g.mu.Lock()
		c.val, c.err = val, err
		delete(g.calls, key)
		g.mu.Unlock()

		close(c.done)
		cancel()
	}()

	return g.wait(ctx, c, false)
}

// wait blocks until the call completes or the caller's own context ends.
func (g *Group[T]) wait(ctx context.Context, c *call[T], shared bool) (T, bool, error) {
	select {
	case <-c.done:
		return c.val, shared, c.err
	case <-ctx.Done():
		g.mu.Lock()
		c.waiters--
		last := c.waiters == 0
		g.mu.Unlock()

		if last {
			c.cancel()
		}

		var zero T
		return zero, shared, ctx.Err()
	}
}

// InFlight returns the number of keys currently executing.
func (g *Group[T]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.calls)
}

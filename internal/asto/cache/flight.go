package cache

import (
	"context"
	"sync"

	"github.com/artipie/artipie/internal/asto"
)

// flight coalesces concurrent fetches of the same key. The fetch runs
// detached from any single caller; it is cancelled once every caller waiting
// on it has left.
type flight struct {
	mu    sync.Mutex
	calls map[asto.Key]*call
}

type call struct {
	done    chan struct{}
	fetched bool
	err     error

	refs   int
	cancel context.CancelFunc
}

func newFlight() *flight {
	return &flight{calls: make(map[asto.Key]*call)}
}

func (f *flight) do(ctx context.Context, key asto.Key, fn func(context.Context) (bool, error)) (bool, error) {
	f.mu.Lock()
	c, ok := f.calls[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call{done: make(chan struct{}), cancel: cancel}
		f.calls[key] = c
		go f.run(fctx, key, c, fn)
	}
	c.refs++
	f.mu.Unlock()

	select {
	case <-c.done:
		f.leave(key, c)
		return c.fetched, c.err
	case <-ctx.Done():
		f.leave(key, c)
		return false, ctx.Err()
	}
}

func (f *flight) run(ctx context.Context, key asto.Key, c *call, fn func(context.Context) (bool, error)) {
	defer close(c.done)
	c.fetched, c.err = fn(ctx)

	f.mu.Lock()
	if f.calls[key] == c {
		delete(f.calls, key)
	}
	f.mu.Unlock()
	c.cancel()
}

func (f *flight) leave(key asto.Key, c *call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.refs--
	if c.refs > 0 {
		return
	}
	c.cancel()
	if f.calls[key] == c {
		delete(f.calls, key)
	}
}

// inflight returns the number of callers waiting on key.
func (f *flight) inflight(key asto.Key) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.calls[key]; ok {
		return c.refs
	}
	return 0
}

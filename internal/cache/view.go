package cache

import (
	"context"
	"time"
)

// View scopes reads to one screen. Closing it cancels reads that are still
// waiting, and results arriving afterwards are not delivered.
type View struct {
	c      *Cache
	ctx    context.Context
	cancel context.CancelFunc
}

// NewView returns a View whose reads end when parent is done or Close is
// called.
func (c *Cache) NewView(parent context.Context) *View {
	ctx, cancel := context.WithCancel(parent)
	return &View{c: c, ctx: ctx, cancel: cancel}
}

// Context is done once the view is closed.
func (v *View) Context() context.Context { return v.ctx }

// Fetch reads key through the cache.
func (v *View) Fetch(key Key, fetch Fetcher, opts ...FetchOption) Snapshot {
	if v.ctx.Err() != nil {
		return Snapshot{Err: ErrViewClosed}
	}
	snap := v.c.Fetch(v.ctx, key, fetch, opts...)
	if v.ctx.Err() != nil {
		return Snapshot{Err: ErrViewClosed}
	}
	return snap
}

// Poll polls key until the view closes. It blocks; run it in a goroutine.
func (v *View) Poll(key Key, interval time.Duration, fetch Fetcher, onChange func(Snapshot)) {
	v.c.Poll(v.ctx, key, interval, fetch, onChange)
}

// Close cancels the view. It is safe to call more than once.
func (v *View) Close() { v.cancel() }

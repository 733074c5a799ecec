// Package cache is the client-side data-fetch cache: request-keyed values
// with staleness thresholds, explicit invalidation by mutations, request
// de-duplication and view-scoped cancellation.
package cache

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Staleness thresholds.
const (
	ListTTL          = 60 * time.Second
	ChatPollInterval = 10 * time.Second
)

// ErrViewClosed is reported for fetches issued through a closed View.
var ErrViewClosed = errors.New("view closed")

// Key identifies a cached read: resource path plus sorted, encoded query.
type Key string

// NewKey builds a Key. Query parameters are sorted by name, so equal
// requests always produce equal keys.
func NewKey(path string, query url.Values) Key {
	if len(query) == 0 {
		return Key(path)
	}
	return Key(path + "?" + query.Encode())
}

// Path returns the resource path part of k.
func (k Key) Path() string {
	path, _, _ := strings.Cut(string(k), "?")
	return path
}

// Fetcher performs the network read for a key.
type Fetcher func(ctx context.Context) (any, error)

// Snapshot is what a read observes.
type Snapshot struct {
	Value     any
	Err       error
	FetchedAt time.Time
	// Stale is set when Value is older than the threshold or was
	// invalidated.
	Stale bool
	// Revalidating is set when a background refetch was started for this
	// read.
	Revalidating bool
}

// HasValue reports whether the snapshot carries a value.
func (s Snapshot) HasValue() bool { return s.Value != nil }

// Value returns the snapshot value as T.
func Value[T any](s Snapshot) (T, bool) {
	v, ok := s.Value.(T)
	return v, ok
}

type entry struct {
	value     any
	hasValue  bool
	err       error
	fetchedAt time.Time

	// gen moves on every invalidation; a fetch dispatched under an older
	// gen cannot make the entry fresh again
	gen         uint64
	invalidated bool
	// appliedSeq is the dispatch sequence of the result held in value
	appliedSeq uint64
}

// Cache maps keys to their last fetched values.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	seq     uint64
	clears  uint64

	group      singleflight.Group
	now        func() time.Time
	defaultTTL time.Duration

	base   context.Context
	cancel context.CancelFunc
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithDefaultTTL sets the threshold used when a read names none.
func WithDefaultTTL(d time.Duration) Option {
	return func(c *Cache) { c.defaultTTL = d }
}

// New returns an empty cache. Close releases in-flight fetches.
func New(opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		entries:    map[Key]*entry{},
		now:        time.Now,
		defaultTTL: ListTTL,
		base:       ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close cancels every in-flight fetch.
func (c *Cache) Close() { c.cancel() }

type fetchConfig struct {
	ttl time.Duration
}

// FetchOption configures one read.
type FetchOption func(*fetchConfig)

// TTL sets the staleness threshold for a read.
func TTL(d time.Duration) FetchOption {
	return func(f *fetchConfig) { f.ttl = d }
}

func (c *Cache) entryLocked(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

// Fetch reads key.
//
// A fresh entry is returned without calling fetch. An aged entry is
// returned at once with Revalidating set while a background refetch runs.
// An invalidated or missing entry makes the caller wait for the fetch.
// Concurrent reads of one key share a single fetch. A failed fetch keeps
// any previous value and reports the error alongside it.
func (c *Cache) Fetch(ctx context.Context, key Key, fetch Fetcher, opts ...FetchOption) Snapshot {
	cfg := fetchConfig{ttl: c.defaultTTL}
	for _, opt := range opts {
		opt(&cfg)
	}

	c.mu.Lock()
	e := c.entryLocked(key)
	age := c.now().Sub(e.fetchedAt)
	switch {
	case e.hasValue && !e.invalidated && age < cfg.ttl:
		snap := Snapshot{Value: e.value, Err: e.err, FetchedAt: e.fetchedAt}
		c.mu.Unlock()
		return snap
	case e.hasValue && !e.invalidated:
		snap := Snapshot{Value: e.value, Err: e.err, FetchedAt: e.fetchedAt, Stale: true, Revalidating: true}
		// DoChan buffers its result, so nobody has to wait on it
		c.dispatchLocked(key, e, fetch)
		c.mu.Unlock()
		return snap
	}
	ch := c.dispatchLocked(key, e, fetch)
	c.mu.Unlock()

	select {
	case res := <-ch:
		return res.Val.(Snapshot)
	case <-ctx.Done():
		return Snapshot{Err: ctx.Err()}
	}
}

// dispatchLocked joins or starts the flight for the entry's current
// generation.
func (c *Cache) dispatchLocked(key Key, e *entry, fetch Fetcher) <-chan singleflight.Result {
	gen, clears := e.gen, c.clears
	flightKey := string(key) + "#" + strconv.FormatUint(gen, 10) + "#" + strconv.FormatUint(clears, 10)
	// numbered under c.mu so dispatch order, not goroutine start order,
	// decides which result wins
	c.seq++
	seq := c.seq
	return c.group.DoChan(flightKey, func() (any, error) {
		v, err := fetch(c.base)
		return c.store(key, gen, clears, seq, v, err), nil
	})
}

// store applies a fetch result. The most recently dispatched result wins;
// an older one arriving late is dropped and its waiters get the current
// value instead.
func (c *Cache) store(key Key, gen, clears, seq uint64, v any, err error) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || clears != c.clears {
		// cleared while in flight
		return Snapshot{Value: v, Err: err}
	}
	if seq < e.appliedSeq {
		return Snapshot{Value: e.value, Err: e.err, FetchedAt: e.fetchedAt, Stale: e.invalidated}
	}

	if err != nil {
		e.err = err
		return Snapshot{Value: e.value, Err: err, FetchedAt: e.fetchedAt, Stale: e.hasValue}
	}

	e.value, e.hasValue, e.err = v, true, nil
	e.fetchedAt = c.now()
	e.appliedSeq = seq
	if gen == e.gen {
		e.invalidated = false
	}
	return Snapshot{Value: v, FetchedAt: e.fetchedAt, Stale: e.invalidated}
}

// Peek returns the cached state of key without fetching.
func (c *Cache) Peek(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || (!e.hasValue && e.err == nil) {
		return Snapshot{}, false
	}
	return Snapshot{Value: e.value, Err: e.err, FetchedAt: e.fetchedAt, Stale: e.invalidated}, true
}

// Invalidate marks keys stale. The next read of each waits for a refetch.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		e := c.entryLocked(k)
		e.gen++
		e.invalidated = true
	}
}

// InvalidatePath invalidates every cached key whose resource path is one of
// paths, whatever its query.
func (c *Cache) InvalidatePath(paths ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		for _, p := range paths {
			if k.Path() == p {
				e.gen++
				e.invalidated = true
				break
			}
		}
	}
}

// Clear drops every entry. Fetches still in flight do not repopulate it.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[Key]*entry{}
	c.clears++
}

// Optimistic replaces the cached value of Key with Update(previous) for the
// duration of a mutation.
type Optimistic struct {
	Key    Key
	Update func(prev any) any
}

// Mutation describes a write.
type Mutation struct {
	// Invalidates lists the reads the write makes stale.
	Invalidates []Key
	// InvalidatePaths lists resource paths whose every query variant goes
	// stale, such as all filtered job lists.
	InvalidatePaths []string
	Optimistic      *Optimistic
}

// Mutate runs fn. On success every key in m.Invalidates and every key
// under m.InvalidatePaths is invalidated. On
// failure an optimistic value is rolled back unless a fetch has replaced
// it meanwhile, and nothing is invalidated.
func (c *Cache) Mutate(ctx context.Context, m Mutation, fn func(ctx context.Context) error) error {
	var (
		prev        any
		prevHas     bool
		prevApplied uint64
	)
	if o := m.Optimistic; o != nil {
		c.mu.Lock()
		e := c.entryLocked(o.Key)
		prev, prevHas, prevApplied = e.value, e.hasValue, e.appliedSeq
		e.value, e.hasValue = o.Update(e.value), true
		c.mu.Unlock()
	}

	if err := fn(ctx); err != nil {
		if o := m.Optimistic; o != nil {
			c.mu.Lock()
			if e, ok := c.entries[o.Key]; ok && e.appliedSeq == prevApplied {
				e.value, e.hasValue = prev, prevHas
			}
			c.mu.Unlock()
		}
		return err
	}

	c.Invalidate(m.Invalidates...)
	c.InvalidatePath(m.InvalidatePaths...)
	return nil
}

// Poll reads key every interval until ctx is done, forcing a refetch each
// time, and calls onChange with every snapshot whose fetch time or error
// differs from the last one delivered. The first read happens at once.
func (c *Cache) Poll(ctx context.Context, key Key, interval time.Duration, fetch Fetcher, onChange func(Snapshot)) {
	var last Snapshot
	deliver := func(s Snapshot) {
		if ctx.Err() != nil {
			return
		}
		if s.FetchedAt.Equal(last.FetchedAt) && errors.Is(s.Err, last.Err) {
			return
		}
		last = s
		onChange(s)
	}

	deliver(c.Fetch(ctx, key, fetch, TTL(interval)))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Invalidate(key)
			deliver(c.Fetch(ctx, key, fetch, TTL(interval)))
		}
	}
}

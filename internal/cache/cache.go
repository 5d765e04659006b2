package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"furniture-dashboard/internal/event"
)

const DefaultGracePeriod = 60 * time.Second

// maxFollow bounds how many superseding generations a waiting reader chases.
const maxFollow = 8

var errSuperseded = errors.New("cache: response superseded")

type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "uninitialized"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Fetcher func(ctx context.Context) (any, error)

// Settled observes the outcome of a fetch once it is applied to its entry.
// Superseded responses never reach it.
type Settled func(data any, err error)

// Query describes one read: where it goes, which tags it provides and how
// to fetch it.
type Query struct {
	Endpoint string
	Arg      string
	Tags     []Tag
	Fetch    Fetcher
	Settled  Settled
}

func (q Query) Key() Key {
	return Key{Endpoint: q.Endpoint, Arg: q.Arg}
}

// Snapshot is a copy of an entry at one point in time.
type Snapshot struct {
	Key         Key       `json:"-"`
	Status      Status    `json:"status"`
	Data        any       `json:"data,omitempty"`
	Err         error     `json:"-"`
	Subscribers int       `json:"subscribers"`
	Generation  uint64    `json:"generation"`
	FulfilledAt time.Time `json:"fulfilled_at,omitzero"`
}

func (s Snapshot) IsLoading() bool {
	return s.Status == StatusLoading || s.Status == StatusUninitialized
}

func (s Snapshot) IsError() bool {
	return s.Status == StatusError
}

type entry struct {
	key         Key
	fetch       Fetcher
	settled     Settled
	status      Status
	data        any
	err         error
	subscribers map[*Subscription]struct{}
	generation  uint64
	inflight    bool
	fulfilledAt time.Time
	evictTimer  *time.Timer
	evictSeq    uint64
}

func (e *entry) snapshot() Snapshot {
	return Snapshot{
		Key:         e.key,
		Status:      e.status,
		Data:        e.data,
		Err:         e.err,
		Subscribers: len(e.subscribers),
		Generation:  e.generation,
		FulfilledAt: e.fulfilledAt,
	}
}

type Options struct {
	GracePeriod time.Duration
	Events      event.Publisher
	Logger      *slog.Logger
}

// Cache holds the results of reads keyed by endpoint and argument. All
// state changes go through its methods under one mutex; subscribers are fed
// copies.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	tags    *TagIndex
	group   singleflight.Group
	grace   time.Duration
	events  event.Publisher
	logger  *slog.Logger
}

func New(opts Options) *Cache {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Cache{
		entries: map[Key]*entry{},
		tags:    NewTagIndex(),
		grace:   opts.GracePeriod,
		events:  opts.Events,
		logger:  opts.Logger,
	}
}

// Query returns the cached value for q when it is fresh, and otherwise
// fetches it. Concurrent queries for the same key share one fetch. The
// fetch outlives ctx: a caller giving up leaves the result in the cache.
func (c *Cache) Query(ctx context.Context, q Query) (Snapshot, error) {
	c.mu.Lock()
	e := c.ensureLocked(q)
	if e.status == StatusSuccess && !e.inflight {
		c.idleLocked(e)
		snap := e.snapshot()
		c.mu.Unlock()
		cacheRequests.WithLabelValues(q.Endpoint, "hit").Inc()
		return snap, nil
	}

	gen := c.beginLocked(e, false)
	c.idleLocked(e)
	c.mu.Unlock()

	cacheRequests.WithLabelValues(q.Endpoint, "miss").Inc()
	return c.await(ctx, q.Key(), gen)
}

// Subscribe registers a live reader of q. It starts a fetch when the entry
// has no usable data and pushes every later state change to the
// subscription until Unsubscribe.
func (c *Cache) Subscribe(q Query) *Subscription {
	sub := &Subscription{cache: c, key: q.Key(), updates: make(chan Snapshot, 1)}

	c.mu.Lock()
	e := c.ensureLocked(q)
	e.subscribers[sub] = struct{}{}
	c.stopEvictionLocked(e)

	start := !e.inflight && (e.status == StatusUninitialized || e.status == StatusError)
	var gen uint64
	if start {
		gen = c.beginLocked(e, false)
	}
	sub.push(e.snapshot())
	fetch := e.fetch
	c.mu.Unlock()

	if start {
		c.flight(context.Background(), q.Key(), gen, fetch)
	}

	return sub
}

// Invalidate marks every entry carrying one of tags stale. Subscribed entries
// refetch; unsubscribed ones are evicted. It returns the affected keys.
func (c *Cache) Invalidate(tags ...Tag) []Key {
	type pending struct {
		key   Key
		gen   uint64
		fetch Fetcher
	}

	c.mu.Lock()
	keys := c.tags.Keys(tags...)
	refetch := make([]pending, 0, len(keys))
	for _, key := range keys {
		e := c.entries[key]
		if e == nil {
			continue
		}
		if len(e.subscribers) == 0 {
			c.removeLocked(e)
			cacheEvictions.Inc()
			continue
		}
		refetch = append(refetch, pending{key: key, gen: c.beginLocked(e, true), fetch: e.fetch})
	}
	c.mu.Unlock()

	for _, tag := range tags {
		cacheInvalidations.WithLabelValues(string(tag)).Inc()
	}

	for _, p := range refetch {
		c.flight(context.Background(), p.key, p.gen, p.fetch)
	}

	if len(keys) > 0 {
		names := make([]string, 0, len(keys))
		for _, key := range keys {
			names = append(names, key.String())
		}
		c.events.Publish(event.TypeCacheInvalidated, map[string]any{"tags": tags, "keys": names})
		c.logger.Debug("cache invalidated", "tags", tags, "keys", len(keys), "refetching", len(refetch))
	}

	return keys
}

// Mutate runs a write and, when it succeeds, invalidates the tags it
// declares. Failed writes are returned untouched and never retried.
func (c *Cache) Mutate(ctx context.Context, invalidates []Tag, fn func(ctx context.Context) (any, error)) (any, error) {
	result, err := fn(ctx)
	if err != nil {
		cacheMutations.WithLabelValues("error").Inc()
		return nil, err
	}

	cacheMutations.WithLabelValues("success").Inc()
	c.Invalidate(invalidates...)
	return result, nil
}

// Peek returns the entry for key without subscribing or fetching.
func (c *Cache) Peek(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Snapshot{Key: key}, false
	}
	return e.snapshot(), true
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset drops every entry and detaches every subscription. Responses still
// in flight are discarded when they land.
func (c *Cache) Reset() {
	c.mu.Lock()
	for _, e := range c.entries {
		c.stopEvictionLocked(e)
		for sub := range e.subscribers {
			sub.detach()
		}
	}
	c.entries = map[Key]*entry{}
	c.tags = NewTagIndex()
	c.mu.Unlock()

	c.events.Publish(event.TypeCacheInvalidated, map[string]any{"reset": true})
}

func (c *Cache) refetch(ctx context.Context, key Key) (Snapshot, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return Snapshot{Key: key}, fmt.Errorf("cache: no entry for %s", key)
	}
	gen := c.beginLocked(e, true)
	c.mu.Unlock()

	return c.await(ctx, key, gen)
}

func (c *Cache) unsubscribe(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[sub.key]
	if !ok {
		return
	}
	delete(e.subscribers, sub)
	c.idleLocked(e)
}

func (c *Cache) ensureLocked(q Query) *entry {
	key := q.Key()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{key: key, subscribers: map[*Subscription]struct{}{}}
		c.entries[key] = e
	}
	if q.Fetch != nil {
		e.fetch = q.Fetch
	}
	if q.Settled != nil {
		e.settled = q.Settled
	}
	c.tags.Add(key, q.Tags...)
	return e
}

// beginLocked opens a new generation for e unless a fetch is already running
// and force is false, in which case the caller joins the running one.
func (c *Cache) beginLocked(e *entry, force bool) uint64 {
	if e.inflight && !force {
		return e.generation
	}

	e.generation++
	e.inflight = true
	e.status = StatusLoading
	c.notifyLocked(e)
	return e.generation
}

func (c *Cache) flight(ctx context.Context, key Key, gen uint64, fetch Fetcher) <-chan singleflight.Result {
	detached := context.WithoutCancel(ctx)

	return c.group.DoChan(flightKey(key, gen), func() (any, error) {
		c.mu.Lock()
		e, ok := c.entries[key]
		if !ok || e.generation != gen {
			c.mu.Unlock()
			return nil, errSuperseded
		}
		if !e.inflight {
			// Settled by an earlier flight of the same generation.
			data, err := e.data, e.err
			c.mu.Unlock()
			return data, err
		}
		c.mu.Unlock()

		if fetch == nil {
			err := fmt.Errorf("cache: no fetcher registered for %s", key)
			if !c.settle(key, gen, nil, err) {
				return nil, errSuperseded
			}
			return nil, err
		}

		data, err := fetch(detached)
		if !c.settle(key, gen, data, err) {
			// Waiting readers follow the generation that replaced this one.
			return nil, errSuperseded
		}
		return data, err
	})
}

func (c *Cache) await(ctx context.Context, key Key, gen uint64) (Snapshot, error) {
	for range maxFollow {
		c.mu.Lock()
		e, ok := c.entries[key]
		if !ok {
			c.mu.Unlock()
			return Snapshot{Key: key}, fmt.Errorf("cache: entry %s was dropped", key)
		}
		fetch := e.fetch
		c.mu.Unlock()

		select {
		case res := <-c.flight(ctx, key, gen, fetch):
			if errors.Is(res.Err, errSuperseded) {
				next, done, snap := c.follow(key)
				if done {
					return snap, snap.Err
				}
				gen = next
				continue
			}
			if res.Shared {
				cacheRequests.WithLabelValues(key.Endpoint, "shared").Inc()
			}

			snap := Snapshot{Key: key, Status: StatusSuccess, Data: res.Val, Generation: gen}
			if res.Err != nil {
				snap.Status = StatusError
				snap.Err = res.Err
			}
			return snap, res.Err
		case <-ctx.Done():
			return Snapshot{Key: key, Status: StatusLoading, Generation: gen}, ctx.Err()
		}
	}

	return Snapshot{Key: key, Status: StatusLoading}, fmt.Errorf("cache: %s kept being superseded", key)
}

// follow decides what a reader whose generation was superseded waits for
// next: the newer running fetch, or the already settled entry.
func (c *Cache) follow(key Key) (uint64, bool, Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return 0, true, Snapshot{Key: key, Err: fmt.Errorf("cache: entry %s was dropped", key)}
	}
	if !e.inflight {
		return 0, true, e.snapshot()
	}
	return e.generation, false, Snapshot{}
}

// settle applies a fetch result to its entry and reports whether gen was
// still current.
func (c *Cache) settle(key Key, gen uint64, data any, err error) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.generation != gen {
		c.mu.Unlock()
		cacheSuperseded.WithLabelValues(key.Endpoint).Inc()
		c.logger.Debug("discarding superseded response", "key", key.String(), "generation", gen)
		return false
	}

	e.inflight = false
	if err != nil {
		// Previous data stays readable next to the error.
		e.status = StatusError
		e.err = err
	} else {
		e.status = StatusSuccess
		e.data = data
		e.err = nil
		e.fulfilledAt = time.Now().UTC()
	}
	c.notifyLocked(e)
	snap := e.snapshot()
	settled := e.settled
	c.mu.Unlock()

	if settled != nil {
		settled(data, err)
	}

	c.events.Publish(event.TypeCacheUpdated, map[string]any{
		"key":        key.String(),
		"status":     snap.Status,
		"generation": snap.Generation,
	})
	return true
}

func (c *Cache) notifyLocked(e *entry) {
	snap := e.snapshot()
	for sub := range e.subscribers {
		sub.push(snap)
	}
}

// idleLocked arms the eviction timer of an entry nobody subscribes to.
func (c *Cache) idleLocked(e *entry) {
	if len(e.subscribers) > 0 || e.evictTimer != nil {
		return
	}

	e.evictSeq++
	seq := e.evictSeq
	e.evictTimer = time.AfterFunc(c.grace, func() {
		c.evict(e, seq)
	})
}

func (c *Cache) stopEvictionLocked(e *entry) {
	if e.evictTimer != nil {
		e.evictTimer.Stop()
		e.evictTimer = nil
	}
	e.evictSeq++
}

func (c *Cache) evict(e *entry, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries[e.key] != e || e.evictSeq != seq || len(e.subscribers) > 0 {
		return
	}

	e.evictTimer = nil
	if e.inflight {
		// Keep the entry until its fetch lands so late readers still share it.
		c.idleLocked(e)
		return
	}

	c.removeLocked(e)
	cacheEvictions.Inc()
}

func (c *Cache) removeLocked(e *entry) {
	c.stopEvictionLocked(e)
	delete(c.entries, e.key)
	c.tags.Remove(e.key)
}

func flightKey(key Key, gen uint64) string {
	return fmt.Sprintf("%s\x00%s\x00%d", key.Endpoint, key.Arg, gen)
}

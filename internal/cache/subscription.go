package cache

import (
	"context"
	"sync"
)

// Subscription is a live reader of one entry. Updates delivers the latest
// snapshot; intermediate states may be skipped when the reader is slow.
type Subscription struct {
	cache     *Cache
	key       Key
	updates   chan Snapshot
	closeOnce sync.Once
	unsubOnce sync.Once
}

func (s *Subscription) Key() Key {
	return s.key
}

// Updates is closed after Unsubscribe or when the cache is reset.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.updates
}

func (s *Subscription) Current() Snapshot {
	snap, _ := s.cache.Peek(s.key)
	return snap
}

// Refetch forces a new request for the entry, superseding any running one.
func (s *Subscription) Refetch(ctx context.Context) (Snapshot, error) {
	return s.cache.refetch(ctx, s.key)
}

func (s *Subscription) Unsubscribe() {
	s.unsubOnce.Do(func() {
		s.cache.unsubscribe(s)
		s.detach()
	})
}

// push replaces any undelivered snapshot with snap. Callers hold the cache
// mutex, so pushes never race each other.
func (s *Subscription) push(snap Snapshot) {
	select {
	case s.updates <- snap:
		return
	default:
	}

	select {
	case <-s.updates:
	default:
	}

	select {
	case s.updates <- snap:
	default:
	}
}

func (s *Subscription) detach() {
	s.closeOnce.Do(func() {
		close(s.updates)
	})
}

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(grace time.Duration) *Cache {
	return New(Options{GracePeriod: grace})
}

func countingQuery(endpoint string, arg string, calls *atomic.Int32, tags ...Tag) Query {
	return Query{
		Endpoint: endpoint,
		Arg:      arg,
		Tags:     tags,
		Fetch: func(context.Context) (any, error) {
			n := calls.Add(1)
			return n, nil
		},
	}
}

func waitFor(t *testing.T, sub *Subscription, match func(Snapshot) bool) Snapshot {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-sub.Updates():
			require.True(t, ok, "subscription closed")
			if match(snap) {
				return snap
			}
		case <-timeout:
			t.Fatalf("no matching snapshot for %s", sub.Key())
		}
	}
}

func TestConcurrentQueriesShareOneRequest(t *testing.T) {
	t.Parallel()

	c := newTestCache(time.Hour)
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})

	q := Query{
		Endpoint: "furnitures",
		Arg:      "abc123",
		Tags:     []Tag{TagFurniture},
		Fetch: func(context.Context) (any, error) {
			calls.Add(1)
			close(started)
			<-release
			return "table", nil
		},
	}

	var wg sync.WaitGroup
	results := make([]Snapshot, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := c.Query(context.Background(), q)
			assert.NoError(t, err)
			results[i] = snap
		}()
		if i == 0 {
			<-started
		}
	}

	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, "table", results[0].Data)
	require.Equal(t, "table", results[1].Data)
}

func TestQueryServesFreshEntryFromCache(t *testing.T) {
	t.Parallel()

	c := newTestCache(time.Hour)
	var calls atomic.Int32
	q := countingQuery("suppliers", "", &calls, TagSupplier)

	first, err := c.Query(context.Background(), q)
	require.NoError(t, err)
	second, err := c.Query(context.Background(), q)
	require.NoError(t, err)

	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, first.Data, second.Data)
	require.Equal(t, StatusSuccess, second.Status)
}

func TestMutationRefetchesSubscribedEntries(t *testing.T) {
	t.Parallel()

	c := newTestCache(time.Hour)
	var listCalls, otherCalls atomic.Int32

	sub := c.Subscribe(countingQuery("furnitures", "", &listCalls, TagFurniture))
	defer sub.Unsubscribe()
	waitFor(t, sub, func(s Snapshot) bool { return s.Status == StatusSuccess && s.Data == int32(1) })

	_, err := c.Query(context.Background(), countingQuery("suppliers", "", &otherCalls, TagSupplier))
	require.NoError(t, err)

	result, err := c.Mutate(context.Background(), []Tag{TagFurniture}, func(context.Context) (any, error) {
		return "created", nil
	})
	require.NoError(t, err)
	require.Equal(t, "created", result)

	waitFor(t, sub, func(s Snapshot) bool { return s.Status == StatusSuccess && s.Data == int32(2) })
	require.Equal(t, int32(2), listCalls.Load())

	_, stillCached := c.Peek(Key{Endpoint: "suppliers"})
	require.True(t, stillCached, "unrelated tags must not be touched")
}

func TestInvalidationEvictsUnsubscribedEntries(t *testing.T) {
	t.Parallel()

	c := newTestCache(time.Hour)
	var calls atomic.Int32
	q := countingQuery("ressources", "", &calls, TagRessource)

	_, err := c.Query(context.Background(), q)
	require.NoError(t, err)

	keys := c.Invalidate(TagRessource)
	require.Equal(t, []Key{{Endpoint: "ressources"}}, keys)
	_, ok := c.Peek(Key{Endpoint: "ressources"})
	require.False(t, ok)
	require.Equal(t, int32(1), calls.Load(), "evicted entries are not refetched eagerly")

	snap, err := c.Query(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, int32(2), snap.Data)
}

func TestFailedMutationDoesNotInvalidate(t *testing.T) {
	t.Parallel()

	c := newTestCache(time.Hour)
	var calls atomic.Int32
	_, err := c.Query(context.Background(), countingQuery("suppliers", "", &calls, TagSupplier))
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = c.Mutate(context.Background(), []Tag{TagSupplier}, func(context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	_, ok := c.Peek(Key{Endpoint: "suppliers"})
	require.True(t, ok)
}

func TestSupersededResponseIsDiscarded(t *testing.T) {
	t.Parallel()

	c := newTestCache(time.Hour)
	var calls atomic.Int32
	releaseSlow := make(chan struct{})
	slowDone := make(chan struct{})

	q := Query{
		Endpoint: "furnitures",
		Tags:     []Tag{TagFurniture},
		Fetch: func(context.Context) (any, error) {
			if calls.Add(1) == 1 {
				defer close(slowDone)
				<-releaseSlow
				return "stale", nil
			}
			return "fresh", nil
		},
	}

	sub := c.Subscribe(q)
	defer sub.Unsubscribe()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	c.Invalidate(TagFurniture)
	waitFor(t, sub, func(s Snapshot) bool { return s.Status == StatusSuccess && s.Data == "fresh" })

	close(releaseSlow)
	<-slowDone

	require.Eventually(t, func() bool {
		snap, ok := c.Peek(q.Key())
		return ok && !snap.IsLoading()
	}, time.Second, 5*time.Millisecond)
	snap, _ := c.Peek(q.Key())
	require.Equal(t, "fresh", snap.Data)
	require.Equal(t, uint64(2), snap.Generation)
}

func TestQueryFollowsSupersedingGeneration(t *testing.T) {
	t.Parallel()

	c := newTestCache(time.Hour)
	var calls atomic.Int32
	releaseSlow := make(chan struct{})
	var settled []any
	var mu sync.Mutex

	q := Query{
		Endpoint: "ressources",
		Tags:     []Tag{TagRessource},
		Fetch: func(context.Context) (any, error) {
			if calls.Add(1) == 1 {
				<-releaseSlow
				return "stale", nil
			}
			return "fresh", nil
		},
		Settled: func(data any, _ error) {
			mu.Lock()
			defer mu.Unlock()
			settled = append(settled, data)
		},
	}

	type result struct {
		snap Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		snap, err := c.Query(context.Background(), q)
		done <- result{snap: snap, err: err}
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	sub := c.Subscribe(q)
	defer sub.Unsubscribe()
	c.Invalidate(TagRessource)
	waitFor(t, sub, func(s Snapshot) bool { return s.Status == StatusSuccess && s.Data == "fresh" })

	close(releaseSlow)

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, "fresh", res.snap.Data)
		assert.Equal(t, uint64(2), res.snap.Generation)
	case <-time.After(time.Second):
		t.Fatal("query did not return")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{"fresh"}, settled)
}

func TestEntryEvictedAfterGracePeriod(t *testing.T) {
	t.Parallel()

	c := newTestCache(30 * time.Millisecond)
	var calls atomic.Int32

	sub := c.Subscribe(countingQuery("furnitureCategories", "", &calls, TagFurnitureCategory))
	waitFor(t, sub, func(s Snapshot) bool { return s.Status == StatusSuccess })
	sub.Unsubscribe()

	_, open := <-sub.Updates()
	require.False(t, open)

	require.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestResubscribeWithinGraceSkipsNetwork(t *testing.T) {
	t.Parallel()

	c := newTestCache(time.Hour)
	var calls atomic.Int32
	q := countingQuery("ressourceCategories", "", &calls, TagRessourceCategory)

	sub := c.Subscribe(q)
	waitFor(t, sub, func(s Snapshot) bool { return s.Status == StatusSuccess })
	sub.Unsubscribe()

	again := c.Subscribe(q)
	defer again.Unsubscribe()
	snap := waitFor(t, again, func(Snapshot) bool { return true })

	require.Equal(t, StatusSuccess, snap.Status)
	require.Equal(t, 1, snap.Subscribers)
	require.Equal(t, int32(1), calls.Load())
}

func TestFailedReadIsNotRetried(t *testing.T) {
	t.Parallel()

	c := newTestCache(time.Hour)
	var calls atomic.Int32
	boom := errors.New("upstream down")
	q := Query{
		Endpoint: "suppliers",
		Tags:     []Tag{TagSupplier},
		Fetch: func(context.Context) (any, error) {
			calls.Add(1)
			return nil, boom
		},
	}

	sub := c.Subscribe(q)
	defer sub.Unsubscribe()
	snap := waitFor(t, sub, func(s Snapshot) bool { return s.IsError() })
	require.ErrorIs(t, snap.Err, boom)

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load())

	_, err := sub.Refetch(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, int32(2), calls.Load())
}

func TestAbandonedQueryStillCachesResult(t *testing.T) {
	t.Parallel()

	c := newTestCache(time.Hour)
	release := make(chan struct{})
	q := Query{
		Endpoint: "furnitures",
		Arg:      "f1",
		Tags:     []Tag{TagFurniture},
		Fetch: func(context.Context) (any, error) {
			<-release
			return "chair", nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Query(ctx, q)
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		snap, ok := c.Peek(q.Key())
		return ok && snap.Status == StatusSuccess && snap.Data == "chair"
	}, time.Second, 5*time.Millisecond)
}

func TestResetDetachesSubscriptions(t *testing.T) {
	t.Parallel()

	c := newTestCache(time.Hour)
	var calls atomic.Int32
	sub := c.Subscribe(countingQuery("users/me", "", &calls, TagUser))
	waitFor(t, sub, func(s Snapshot) bool { return s.Status == StatusSuccess })

	c.Reset()

	_, open := <-sub.Updates()
	require.False(t, open)
	require.Equal(t, 0, c.Len())
	require.NotPanics(t, sub.Unsubscribe)
}

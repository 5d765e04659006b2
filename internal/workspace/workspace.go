package workspace

import (
	"context"
	"sync/atomic"
	"time"

	"furniture-dashboard/internal/apiclient"
	"furniture-dashboard/internal/cache"
	"furniture-dashboard/internal/event"
	"furniture-dashboard/internal/service"
	"furniture-dashboard/internal/session"
)

// Workspace is everything the dashboard keeps for one visitor: the upstream
// client holding their session cookie, the session store and the cache.
type Workspace struct {
	ID        string
	Client    *apiclient.Client
	Store     *session.Store
	Cache     *cache.Cache
	Auth      *service.AuthService
	Inventory *service.Inventory
	Dashboard *service.DashboardService
	Events    event.Publisher

	createdAt time.Time
	lastSeen  atomic.Int64
	closed    atomic.Bool
	stop      func()
}

func newWorkspace(id string, client *apiclient.Client, opts Options) *Workspace {
	logger := opts.Logger.With("workspace", id)
	events := event.NewPublisher(opts.Bus, id)

	store := session.NewStore(events, logger)
	c := cache.New(cache.Options{GracePeriod: opts.GracePeriod, Events: events, Logger: logger})
	inventory := service.NewInventory(client, c, events, logger)

	ws := &Workspace{
		ID:        id,
		Client:    client,
		Store:     store,
		Cache:     c,
		Auth:      service.NewAuthService(client, store, c, events, logger),
		Inventory: inventory,
		Dashboard: service.NewDashboardService(inventory),
		Events:    events,
		createdAt: time.Now(),
	}
	ws.touch(ws.createdAt)

	client.OnUnauthorized(func(path string) {
		logger.Info("upstream answered 401", "path", path)
		store.Dispatch(session.Event{Type: session.UnauthorizedObserved})
	})

	ws.stop = store.Subscribe(func(_ session.Event, prev session.State, next session.State) {
		if next.Phase() == session.PhaseAnonymous && prev.Phase() != session.PhaseAnonymous {
			c.Reset()
		}
	})

	return ws
}

// Bootstrap resolves the session in the background. The request outlives
// ctx cancellation only as far as the cache lets it.
func (w *Workspace) Bootstrap(ctx context.Context) {
	go w.Auth.Bootstrap(ctx)
}

// WaitResolved blocks until the session is resolved, wait elapses or ctx is
// done, and reports whether it was resolved.
func (w *Workspace) WaitResolved(ctx context.Context, wait time.Duration) bool {
	select {
	case <-w.Store.Initialized():
		return true
	default:
	}
	if wait <= 0 {
		return false
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-w.Store.Initialized():
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (w *Workspace) LastSeen() time.Time {
	return time.Unix(0, w.lastSeen.Load())
}

func (w *Workspace) touch(now time.Time) {
	w.lastSeen.Store(now.UnixNano())
}

func (w *Workspace) close() {
	if !w.closed.CompareAndSwap(false, true) {
		return
	}
	w.stop()
	w.Cache.Reset()
}

package service

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"furniture-dashboard/internal/apiclient"
	"furniture-dashboard/internal/cache"
	"furniture-dashboard/internal/event"
	"furniture-dashboard/internal/mockapi"
	"furniture-dashboard/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func countCalls(m *apiclient.MockDoer, method string, path string) int {
	n := 0
	for _, call := range m.Calls {
		if call.Method == "Do" && call.Arguments.Get(0) == method && call.Arguments.Get(1) == path {
			n++
		}
	}
	return n
}

func waitSnapshot(t *testing.T, sub *cache.Subscription, match func(cache.Snapshot) bool) cache.Snapshot {
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

type mockedInventory struct {
	api       *apiclient.MockDoer
	cache     *cache.Cache
	inventory *Inventory
	events    <-chan event.Event
}

func newMockedInventory(t *testing.T) mockedInventory {
	t.Helper()

	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe()
	t.Cleanup(unsubscribe)

	api := new(apiclient.MockDoer)
	publisher := event.NewPublisher(bus, "ws-test")
	c := cache.New(cache.Options{GracePeriod: time.Hour, Events: publisher, Logger: discardLogger()})

	return mockedInventory{
		api:       api,
		cache:     c,
		inventory: NewInventory(api, c, publisher, discardLogger()),
		events:    events,
	}
}

// nextAlert skips cache and session events until an alert arrives.
func nextAlert(t *testing.T, events <-chan event.Event) event.Alert {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Type == event.TypeAlert {
				alert, ok := e.Payload.(event.Alert)
				require.True(t, ok)
				return alert
			}
		case <-timeout:
			t.Fatal("no alert published")
		}
	}
}

// upstreamSession wires a real client against the fake upstream the way a
// workspace does: 401s reach the store and an anonymous session empties the
// cache.
type upstreamSession struct {
	api    *mockapi.Server
	client *apiclient.Client
	store  *session.Store
	cache  *cache.Cache
	auth   *AuthService
	events <-chan event.Event
}

func newUpstreamSession(t *testing.T) upstreamSession {
	t.Helper()

	api, err := mockapi.New(mockapi.Config{JWTSecret: "test-secret", SessionTTL: time.Hour, BcryptCost: 4}, discardLogger())
	require.NoError(t, err)
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	cfg := apiclient.DefaultConfig()
	cfg.BaseURL = server.URL
	client, err := apiclient.New(cfg, nil, apiclient.NewBreaker(t.Name(), cfg, discardLogger()), discardLogger())
	require.NoError(t, err)

	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe()
	t.Cleanup(unsubscribe)
	publisher := event.NewPublisher(bus, "ws-test")

	store := session.NewStore(publisher, discardLogger())
	c := cache.New(cache.Options{GracePeriod: time.Hour, Events: publisher, Logger: discardLogger()})

	client.OnUnauthorized(func(string) {
		store.Dispatch(session.Event{Type: session.UnauthorizedObserved})
	})
	store.Subscribe(func(_ session.Event, prev session.State, next session.State) {
		if next.Phase() == session.PhaseAnonymous && prev.Phase() != session.PhaseAnonymous {
			c.Reset()
		}
	})

	return upstreamSession{
		api:    api,
		client: client,
		store:  store,
		cache:  c,
		auth:   NewAuthService(client, store, c, publisher, discardLogger()),
		events: events,
	}
}

func eventsOff() event.Publisher {
	return event.Publisher{}
}

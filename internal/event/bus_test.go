package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBusDeliversStampedEvents(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	NewPublisher(bus, "ws-1").Publish(TypeAlert, Alert{Level: "error", Message: "boom"})

	got := <-events
	require.Equal(t, TypeAlert, got.Type)
	require.Equal(t, "ws-1", got.WorkspaceID)
	require.NotEmpty(t, got.ID)
	require.NotEmpty(t, got.Timestamp)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	events, unsubscribe := bus.Subscribe()
	unsubscribe()
	unsubscribe()

	_, open := <-events
	require.False(t, open)

	// Publishing without subscribers must not block or panic.
	bus.Publish(Event{Type: TypeCacheUpdated})
}

func TestNilPublisherIsNoop(t *testing.T) {
	t.Parallel()

	require.NotPanics(t, func() {
		Publisher{}.Publish(TypeCacheUpdated, nil)
	})
}

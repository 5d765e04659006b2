package session

import (
	"log/slog"
	"sync"

	"furniture-dashboard/internal/event"
)

// Listener observes every dispatched event together with the states before
// and after it. Listeners run outside the store lock and may dispatch.
type Listener func(ev Event, prev State, next State)

// Store owns one session State. Dispatch is the only way to change it.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners map[int]Listener
	nextID    int

	initialized chan struct{}
	initOnce    sync.Once

	events event.Publisher
	logger *slog.Logger
}

func NewStore(events event.Publisher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		listeners:   map[int]Listener{},
		initialized: make(chan struct{}),
		events:      events,
		logger:      logger,
	}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Initialized is closed once the session has been resolved for the first
// time.
func (s *Store) Initialized() <-chan struct{} {
	return s.initialized
}

// Subscribe registers l and returns a function removing it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
		})
	}
}

func (s *Store) Dispatch(ev Event) State {
	s.mu.Lock()
	prev := s.state
	next := Reduce(prev, ev)
	s.state = next
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	if next.IsInitialized {
		s.initOnce.Do(func() { close(s.initialized) })
	}

	if prev.Phase() != next.Phase() {
		s.logger.Info("session changed", "event", string(ev.Type), "from", string(prev.Phase()), "to", string(next.Phase()))
	} else {
		s.logger.Debug("session event", "event", string(ev.Type), "phase", string(next.Phase()))
	}

	if prev != next {
		s.events.Publish(event.TypeSessionChanged, next.View())
	}

	for _, l := range listeners {
		l(ev, prev, next)
	}

	return next
}

package websocket

import (
	"context"
	"encoding/json"
	"log/slog"

	"furniture-dashboard/internal/event"
)

// Hub fans bus events out to the connections of the workspace they belong
// to.
type Hub struct {
	// Connected clients, by workspace id.
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	bus    event.Bus
	logger *slog.Logger
}

func NewHub(bus event.Bus, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		bus:        bus,
		logger:     logger,
	}
}

// Run delivers events until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.clients {
				for client := range clients {
					client.shutdown()
				}
			}
			h.clients = map[string]map[*Client]struct{}{}
			connectedClients.Set(0)
			return
		case client := <-h.register:
			if h.clients[client.workspaceID] == nil {
				h.clients[client.workspaceID] = make(map[*Client]struct{})
			}
			h.clients[client.workspaceID][client] = struct{}{}
			connectedClients.Inc()
		case client := <-h.unregister:
			h.remove(client)
		case e, ok := <-events:
			if !ok {
				return
			}
			clients := h.clients[e.WorkspaceID]
			if len(clients) == 0 {
				continue
			}

			message, err := json.Marshal(e)
			if err != nil {
				h.logger.Error("failed to marshal event", "type", e.Type, "error", err)
				continue
			}
			for client := range clients {
				if !client.enqueue(message) {
					h.logger.Warn("dropping slow websocket client", "workspace", e.WorkspaceID)
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.workspaceID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, client.workspaceID)
	}
	client.shutdown()
	connectedClients.Dec()
}

func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"furniture-dashboard/internal/cache"
	"furniture-dashboard/internal/event"
	"furniture-dashboard/internal/session"
	"furniture-dashboard/internal/workspace"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64

	whoAmIEndpoint = "users/me"
)

// Message is what the browser sends: a request to follow or stop following
// one cache entry. An empty ID follows the list of Endpoint.
type Message struct {
	Action   string `json:"action"`
	Endpoint string `json:"endpoint"`
	ID       string `json:"id,omitempty"`
}

type snapshotPayload struct {
	Key        string       `json:"key"`
	Status     cache.Status `json:"status"`
	Data       any          `json:"data,omitempty"`
	Error      string       `json:"error,omitempty"`
	Generation uint64       `json:"generation"`
}

// Client is one websocket connection of a workspace.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	ws          *workspace.Workspace
	workspaceID string
	send        chan []byte
	logger      *slog.Logger

	mu   sync.Mutex
	subs map[cache.Key]*cache.Subscription

	done     chan struct{}
	doneOnce sync.Once
}

// ServeWS upgrades the request of a workspace-bound visitor and streams the
// workspace's events to it.
func (h *Hub) ServeWS(allowedOrigins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := workspace.FromContext(r.Context())
		if err != nil {
			http.Error(w, "workspace not found", http.StatusNotFound)
			return
		}

		// Carries the workspace cookie when the middleware just created it.
		conn, err := upgrader.Upgrade(w, r, w.Header())
		if err != nil {
			h.logger.Warn("websocket upgrade failed", "workspace", ws.ID, "error", err)
			return
		}

		client := &Client{
			hub:         h,
			conn:        conn,
			ws:          ws,
			workspaceID: ws.ID,
			send:        make(chan []byte, sendBuffer),
			logger:      h.logger.With("workspace", ws.ID),
			subs:        map[cache.Key]*cache.Subscription{},
			done:        make(chan struct{}),
		}
		if !h.join(client) {
			_ = conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// enqueue hands message to the write pump. It reports false when the client
// is gone or too slow to keep up.
func (c *Client) enqueue(message []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) shutdown() {
	c.doneOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		subs := c.subs
		c.subs = map[cache.Key]*cache.Subscription{}
		c.mu.Unlock()

		for _, sub := range subs {
			sub.Unsubscribe()
		}
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.shutdown()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		switch msg.Action {
		case "subscribe":
			c.subscribe(msg)
		case "unsubscribe":
			c.unsubscribe(msg)
		default:
			c.alert("Unknown action", msg.Action)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) query(msg Message) (cache.Query, bool) {
	if msg.Endpoint == whoAmIEndpoint {
		return c.ws.Auth.WhoAmIQuery(), true
	}
	return c.ws.Inventory.Query(msg.Endpoint, msg.ID)
}

func (c *Client) subscribe(msg Message) {
	q, ok := c.query(msg)
	if !ok {
		c.alert("Unknown endpoint", msg.Endpoint)
		return
	}
	// Inventory reads need a signed-in session; only who-am-i is public.
	if q.Endpoint != whoAmIEndpoint && !session.IsAuthenticated(c.ws.Store.State()) {
		c.alert("Sign in required", msg.Endpoint)
		return
	}

	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return
	default:
	}
	if _, exists := c.subs[q.Key()]; exists {
		c.mu.Unlock()
		return
	}
	sub := c.ws.Cache.Subscribe(q)
	c.subs[q.Key()] = sub
	c.mu.Unlock()

	go c.forward(sub)
}

func (c *Client) unsubscribe(msg Message) {
	key := cache.Key{Endpoint: msg.Endpoint, Arg: msg.ID}

	c.mu.Lock()
	sub, ok := c.subs[key]
	delete(c.subs, key)
	c.mu.Unlock()

	if ok {
		sub.Unsubscribe()
	}
}

// forward pushes every snapshot of sub until it is closed, by Unsubscribe or
// by a cache reset.
func (c *Client) forward(sub *cache.Subscription) {
	for snap := range sub.Updates() {
		payload := snapshotPayload{
			Key:        snap.Key.String(),
			Status:     snap.Status,
			Data:       snap.Data,
			Generation: snap.Generation,
		}
		if snap.Err != nil {
			payload.Error = snap.Err.Error()
		}
		c.push(event.TypeCacheSnapshot, payload)
	}

	c.mu.Lock()
	if c.subs[sub.Key()] == sub {
		delete(c.subs, sub.Key())
	}
	c.mu.Unlock()
}

func (c *Client) alert(title string, message string) {
	c.push(event.TypeAlert, event.Alert{Level: "warning", Title: title, Message: message})
}

func (c *Client) push(t event.Type, payload any) {
	message, err := json.Marshal(event.Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		c.logger.Error("failed to marshal websocket message", "type", t, "error", err)
		return
	}
	c.enqueue(message)
}

package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"furniture-dashboard/internal/apiclient"
	"furniture-dashboard/internal/event"
	"furniture-dashboard/internal/model"
)

const (
	DefaultCookieName = "dashboard_sid"
	DefaultIdleTTL    = 30 * time.Minute
	DefaultMax        = 10000
)

type Options struct {
	API         apiclient.Config
	Transport   http.RoundTripper
	Breaker     *gobreaker.CircuitBreaker[*http.Response]
	GracePeriod time.Duration

	IdleTTL       time.Duration
	SweepInterval time.Duration
	// Max bounds the live workspaces; the least recently seen one makes
	// room for a new visitor.
	Max int

	CookieName   string
	CookieSecure bool

	Bus    event.Bus
	Logger *slog.Logger
}

// Registry owns the live workspaces, keyed by the dashboard cookie.
type Registry struct {
	opts Options

	mu         sync.RWMutex
	workspaces map[string]*Workspace

	// baseCtx outlives requests; bootstraps run on it.
	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = opts.IdleTTL / 2
	}
	if opts.Max <= 0 {
		opts.Max = DefaultMax
	}
	if opts.Transport == nil {
		opts.Transport = apiclient.NewTransport(opts.API)
	}
	if opts.Breaker == nil {
		opts.Breaker = apiclient.NewBreaker("upstream", opts.API, opts.Logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		opts:       opts,
		workspaces: map[string]*Workspace{},
		baseCtx:    ctx,
		cancel:     cancel,
	}
}

func (r *Registry) Get(id string) (*Workspace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ws, ok := r.workspaces[id]
	return ws, ok
}

// Create registers a new workspace and starts resolving its session.
func (r *Registry) Create() (*Workspace, error) {
	id := uuid.NewString()

	client, err := apiclient.New(r.opts.API, r.opts.Transport, r.opts.Breaker, r.opts.Logger.With("workspace", id))
	if err != nil {
		return nil, fmt.Errorf("create upstream client: %w", err)
	}

	ws := newWorkspace(id, client, r.opts)

	r.mu.Lock()
	var evicted *Workspace
	if len(r.workspaces) >= r.opts.Max {
		evicted = r.leastRecentLocked()
		delete(r.workspaces, evicted.ID)
	}
	r.workspaces[id] = ws
	count := len(r.workspaces)
	r.mu.Unlock()

	if evicted != nil {
		evicted.close()
		workspacesEvicted.Inc()
		r.opts.Logger.Warn("workspace limit reached, evicted least recent", "evicted", evicted.ID, "last_seen", evicted.LastSeen())
	}

	workspacesActive.Set(float64(count))
	r.opts.Logger.Debug("workspace created", "workspace", id, "workspaces", count)
	ws.Bootstrap(r.baseCtx)
	return ws, nil
}

// Resolve returns the workspace named by the request cookie, creating one
// (and setting the cookie) when the cookie is missing or unknown.
func (r *Registry) Resolve(w http.ResponseWriter, req *http.Request) (*Workspace, error) {
	if c, err := req.Cookie(r.opts.CookieName); err == nil {
		if ws, ok := r.Get(c.Value); ok {
			ws.touch(time.Now())
			return ws, nil
		}
	}

	ws, err := r.Create()
	if err != nil {
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     r.opts.CookieName,
		Value:    ws.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return ws, nil
}

// Lookup finds the workspace of a request without creating one.
func (r *Registry) Lookup(req *http.Request) (*Workspace, error) {
	c, err := req.Cookie(r.opts.CookieName)
	if err != nil {
		return nil, model.ErrWorkspaceNotFound
	}
	ws, ok := r.Get(c.Value)
	if !ok {
		return nil, model.ErrWorkspaceNotFound
	}
	ws.touch(time.Now())
	return ws, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workspaces)
}

func (r *Registry) leastRecentLocked() *Workspace {
	var oldest *Workspace
	for _, ws := range r.workspaces {
		if oldest == nil || ws.LastSeen().Before(oldest.LastSeen()) {
			oldest = ws
		}
	}
	return oldest
}

// Sweep drops workspaces idle for longer than the idle TTL.
func (r *Registry) Sweep(now time.Time) int {
	var expired []*Workspace

	r.mu.Lock()
	for id, ws := range r.workspaces {
		if now.Sub(ws.LastSeen()) > r.opts.IdleTTL {
			expired = append(expired, ws)
			delete(r.workspaces, id)
		}
	}
	remaining := len(r.workspaces)
	r.mu.Unlock()

	for _, ws := range expired {
		ws.close()
	}
	if len(expired) > 0 {
		r.opts.Logger.Info("idle workspaces expired", "expired", len(expired), "remaining", remaining)
	}
	workspacesActive.Set(float64(remaining))
	return len(expired)
}

// StartSweepTicker runs Sweep on the configured interval until ctx is
// cancelled.
func (r *Registry) StartSweepTicker(ctx context.Context) {
	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

// Close stops pending bootstraps and drops every workspace.
func (r *Registry) Close() {
	r.cancel()

	r.mu.Lock()
	all := r.workspaces
	r.workspaces = map[string]*Workspace{}
	r.mu.Unlock()

	for _, ws := range all {
		ws.close()
	}
}

type contextKey string

const workspaceContextKey contextKey = "workspace"

// Middleware attaches the visitor's workspace to the request context.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ws, err := r.Resolve(w, req)
		if err != nil {
			r.opts.Logger.Error("resolve workspace", "error", err)
			http.Error(w, "workspace unavailable", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, req.WithContext(WithWorkspace(req.Context(), ws)))
	})
}

func WithWorkspace(ctx context.Context, ws *Workspace) context.Context {
	return context.WithValue(ctx, workspaceContextKey, ws)
}

func FromContext(ctx context.Context) (*Workspace, error) {
	ws, ok := ctx.Value(workspaceContextKey).(*Workspace)
	if !ok || ws == nil {
		return nil, model.ErrWorkspaceNotFound
	}
	return ws, nil
}

// IsNotFound reports whether err means the request carries no workspace.
func IsNotFound(err error) bool {
	return errors.Is(err, model.ErrWorkspaceNotFound)
}

package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"furniture-dashboard/internal/config"
	"furniture-dashboard/internal/handler"
	"furniture-dashboard/internal/middleware"
	"furniture-dashboard/internal/websocket"
	"furniture-dashboard/internal/workspace"
)

type Handlers struct {
	Auth      *handler.AuthHandler
	Dashboard *handler.DashboardHandler
	Pages     *handler.PageHandler

	// Entity APIs, mounted under /api/{endpoint}.
	Entities map[string]http.Handler
}

// DefaultHandlers wires the handlers of the five inventory collections.
func DefaultHandlers(staticDir string) Handlers {
	return Handlers{
		Auth:      handler.NewAuthHandler(),
		Dashboard: handler.NewDashboardHandler(),
		Pages:     handler.NewPageHandler(staticDir),
		Entities: map[string]http.Handler{
			"furnitures":          handler.FurnitureHandler().Routes(),
			"ressources":          handler.RessourceHandler().Routes(),
			"suppliers":           handler.SupplierHandler().Routes(),
			"furnitureCategories": handler.FurnitureCategoryHandler().Routes(),
			"ressourceCategories": handler.RessourceCategoryHandler().Routes(),
		},
	}
}

func New(cfg *config.Config, registry *workspace.Registry, hub *websocket.Hub, h Handlers, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	gate := &Gate{
		Wait:    cfg.SessionResolveWait,
		Public:  publicTree(h),
		Private: privateTree(h),
	}

	r.Group(func(visitor chi.Router) {
		visitor.Use(registry.Middleware)
		visitor.Use(tagWorkspace)

		visitor.Get("/ws", hub.ServeWS(cfg.CORSOrigins))

		visitor.Group(func(pages chi.Router) {
			pages.Use(middleware.Timeout(cfg.RequestTimeout))
			pages.Get("/api/session", h.Auth.Session)
			pages.Handle("/*", gate)
		})
	})

	return r
}

func publicTree(h Handlers) chi.Router {
	r := chi.NewRouter()

	r.Post("/api/auth/login", h.Auth.Login)
	r.Post("/api/auth/register", h.Auth.Register)
	r.Get("/login", h.Pages.Page("login"))
	r.Get("/register", h.Pages.Page("register"))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		if isAPI(req) {
			handler.APIUnauthorized(w, req)
			return
		}
		handler.Redirect("/login")(w, req)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		handler.APIUnauthorized(w, req)
	})

	return r
}

func privateTree(h Handlers) chi.Router {
	r := chi.NewRouter()
	r.Use(layout)

	r.Get("/", h.Pages.Page("dashboard"))
	r.Get("/login", handler.Redirect("/"))
	r.Get("/register", handler.Redirect("/"))

	r.Route("/api", func(api chi.Router) {
		api.Get("/dashboard", h.Dashboard.Summary)
		api.Post("/auth/logout", h.Auth.Logout)
		api.Post("/auth/refresh", h.Auth.Refresh)
		api.Get("/auth/me", h.Auth.Me)

		for endpoint, entities := range h.Entities {
			api.Mount("/"+endpoint, entities)
		}
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		if isAPI(req) {
			handler.APINotFound(w, req)
			return
		}
		h.Pages.Page("dashboard")(w, req)
	})

	return r
}

// layout is shared by every private route.
func layout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func tagWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ws, err := workspace.FromContext(r.Context()); err == nil {
			middleware.AddLogAttrs(r.Context(), "workspace", ws.ID)
		}
		next.ServeHTTP(w, r)
	})
}

func isAPI(r *http.Request) bool {
	return r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/")
}

package mockapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"furniture-dashboard/internal/model"
)

const sessionCookie = "session"

// Config of the fake inventory API.
type Config struct {
	Port       string        `env:"MOCKAPI_PORT" envDefault:"3000"`
	JWTSecret  string        `env:"MOCKAPI_JWT_SECRET" envDefault:"mockapi-dev-secret"`
	SessionTTL time.Duration `env:"MOCKAPI_SESSION_TTL" envDefault:"24h"`
	BcryptCost int           `env:"MOCKAPI_BCRYPT_COST" envDefault:"10"`
}

// Collections served under /{name}, with the collection their category
// and supplier references point into.
var Collections = []string{"furnitures", "suppliers", "ressources", "furnitureCategories", "ressourceCategories"}

var refTargets = map[string]map[string]string{
	"furnitures": {"category": "furnitureCategories"},
	"ressources": {"category": "ressourceCategories", "supplier": "suppliers"},
}

type Recorded struct {
	Method string
	Path   string
	Body   []byte
}

type failure struct {
	status  int
	message string
}

// Server is an in-memory stand-in for the inventory REST API. It counts the
// requests it receives per route pattern so tests can assert on traffic.
type Server struct {
	accounts    *Accounts
	collections map[string]*collection
	logger      *slog.Logger
	handler     http.Handler

	mu       sync.Mutex
	hits     map[string]int
	requests []Recorded
	failures map[string][]failure
	delay    time.Duration
}

func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	accounts, err := NewAccounts(cfg.JWTSecret, cfg.SessionTTL, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	s := &Server{
		accounts:    accounts,
		collections: map[string]*collection{},
		logger:      logger,
		hits:        map[string]int{},
		failures:    map[string][]failure{},
	}
	for _, name := range Collections {
		s.collections[name] = newCollection()
	}

	s.handler = s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Hits returns how many requests matched method and route pattern, for
// example ("DELETE", "/suppliers/{id}").
func (s *Server) Hits(method string, pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+pattern]
}

// Requests returns the recorded requests whose path is path.
func (s *Server) Requests(method string, path string) []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Recorded
	for _, rec := range s.requests {
		if rec.Method == method && rec.Path == path {
			out = append(out, rec)
		}
	}
	return out
}

// FailNext makes the next request to method and path answer status with
// {"message": message}.
func (s *Server) FailNext(method string, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.failures[key] = append(s.failures[key], failure{status: status, message: message})
}

// SetDelay slows every answer down by d.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Seed inserts doc into collection and returns it with its generated id.
func (s *Server) Seed(name string, doc map[string]any) map[string]any {
	return s.collections[name].create(doc)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Route("/auth", func(auth chi.Router) {
		auth.Post("/login", s.login)
		auth.Post("/register", s.register)
		auth.Post("/logout", s.logout)
		auth.With(s.requireSession).Post("/refresh", s.refresh)
	})

	r.Group(func(private chi.Router) {
		private.Use(s.requireSession)
		private.Get("/users/me", s.me)

		for _, name := range Collections {
			private.Route("/"+name, func(c chi.Router) {
				c.Get("/", s.list(name))
				c.Post("/", s.create(name))
				c.Get("/{id}", s.get(name))
				c.Put("/{id}", s.update(name))
				c.Patch("/{id}", s.update(name))
				c.Delete("/{id}", s.remove(name))
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Route not found")
	})

	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.requests = append(s.requests, Recorded{Method: r.Method, Path: r.URL.Path, Body: body})
		delay := s.delay
		var fail *failure
		if queued := s.failures[key]; len(queued) > 0 {
			fail = &queued[0]
			s.failures[key] = queued[1:]
		}
		s.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}

		if fail != nil {
			s.count(r.Method, r.URL.Path)
			writeMessage(w, fail.status, fail.message)
			return
		}

		next.ServeHTTP(w, r)

		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = strings.TrimSuffix(rctx.RoutePattern(), "/")
			if pattern == "" {
				pattern = "/"
			}
		}
		s.count(r.Method, pattern)
	})
}

func (s *Server) count(method string, pattern string) {
	s.mu.Lock()
	s.hits[method+" "+pattern]++
	s.mu.Unlock()
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	acc, err := s.accounts.Login(req.Email, req.Password)
	if err != nil {
		writeMessage(w, statusFor(err), "Invalid email or password")
		return
	}

	s.startSession(w, acc, http.StatusOK, "ok")
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	acc, err := s.accounts.Register(req)
	if err != nil {
		if statusFor(err) == http.StatusConflict {
			writeMessage(w, http.StatusConflict, "Email already used")
			return
		}
		s.logger.Error("register failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	s.startSession(w, acc, http.StatusCreated, "Account created")
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, tokenID, err := s.accounts.Validate(c.Value); err == nil {
			s.accounts.Revoke(tokenID)
		}
	}

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	s.accounts.Revoke(sess.tokenID)
	s.startSession(w, sess.account, http.StatusOK, "Session refreshed")
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.Envelope[model.UserProfile]{Data: sessionFrom(r).account.Profile})
}

func (s *Server) startSession(w http.ResponseWriter, acc account, status int, message string) {
	token, expires, err := s.accounts.Issue(acc)
	if err != nil {
		s.logger.Error("sign session token", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Could not start session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	profile := acc.Profile
	writeJSON(w, status, model.AuthResponse{User: &profile, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

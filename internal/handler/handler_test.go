package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furniture-dashboard/internal/apiclient"
	"furniture-dashboard/internal/mockapi"
	"furniture-dashboard/internal/model"
	"furniture-dashboard/internal/workspace"
	"furniture-dashboard/pkg/apierror"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
}

type harness struct {
	api      *mockapi.Server
	registry *workspace.Registry
	server   *httptest.Server
	client   *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	api, err := mockapi.New(mockapi.Config{JWTSecret: "test-secret", SessionTTL: time.Hour, BcryptCost: 4}, logger)
	require.NoError(t, err)
	upstream := httptest.NewServer(api)
	t.Cleanup(upstream.Close)

	cfg := apiclient.DefaultConfig()
	cfg.BaseURL = upstream.URL
	registry := workspace.NewRegistry(workspace.Options{
		API:         cfg,
		Breaker:     apiclient.NewBreaker(t.Name(), cfg, logger),
		GracePeriod: time.Hour,
		Logger:      logger,
	})
	t.Cleanup(registry.Close)

	auth := NewAuthHandler()
	r := chi.NewRouter()
	r.Use(registry.Middleware)
	r.Get("/api/session", auth.Session)
	r.Post("/api/auth/login", auth.Login)
	r.Post("/api/auth/register", auth.Register)
	r.Post("/api/auth/logout", auth.Logout)
	r.Get("/api/auth/me", auth.Me)
	r.Get("/api/dashboard", NewDashboardHandler().Summary)
	r.Mount("/api/furnitureCategories", FurnitureCategoryHandler().Routes())
	r.Mount("/api/ressourceCategories", RessourceCategoryHandler().Routes())
	r.Mount("/api/suppliers", SupplierHandler().Routes())
	r.Mount("/api/ressources", RessourceHandler().Routes())
	r.Mount("/api/furnitures", FurnitureHandler().Routes())

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	h := &harness{api: api, registry: registry, server: server, client: &http.Client{Jar: jar}}
	h.resolve(t)
	return h
}

// resolve creates the visitor's workspace and waits for its session.
func (h *harness) resolve(t *testing.T) {
	t.Helper()

	h.do(t, http.MethodGet, "/api/session", nil)

	base, err := url.Parse(h.server.URL)
	require.NoError(t, err)
	var id string
	for _, c := range h.client.Jar.Cookies(base) {
		if c.Name == workspace.DefaultCookieName {
			id = c.Value
		}
	}
	ws, ok := h.registry.Get(id)
	require.True(t, ok)
	require.True(t, ws.WaitResolved(context.Background(), 2*time.Second))
}

func (h *harness) do(t *testing.T, method string, path string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, h.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (h *harness) login(t *testing.T) {
	t.Helper()

	status, env := h.do(t, http.MethodPost, "/api/auth/login", model.LoginRequest{Email: mockapi.SeedEmail, Password: mockapi.SeedPassword})
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestAuthHandler(t *testing.T) {
	t.Parallel()

	t.Run("session starts anonymous and resolved", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		status, env := h.do(t, http.MethodGet, "/api/session", nil)
		require.Equal(t, http.StatusOK, status)
		view := decode[model.SessionView](t, env)
		assert.True(t, view.IsInitialized)
		assert.False(t, view.IsAuthenticated)
		assert.Nil(t, view.User)
	})

	t.Run("login authenticates the workspace", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		status, env := h.do(t, http.MethodPost, "/api/auth/login", model.LoginRequest{Email: mockapi.SeedEmail, Password: mockapi.SeedPassword})
		require.Equal(t, http.StatusOK, status)
		view := decode[model.SessionView](t, env)
		assert.True(t, view.IsAuthenticated)
		require.NotNil(t, view.User)
		assert.Equal(t, mockapi.SeedEmail, view.User.Email)

		status, env = h.do(t, http.MethodGet, "/api/auth/me", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, mockapi.SeedEmail, decode[model.UserProfile](t, env).Email)
	})

	t.Run("invalid form never reaches upstream", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		status, env := h.do(t, http.MethodPost, "/api/auth/login", model.LoginRequest{Email: "not-an-email"})
		require.Equal(t, http.StatusBadRequest, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, string(apierror.KindValidation), env.Error.Kind)
		assert.Contains(t, env.Error.FieldErrors, "email")
		assert.Contains(t, env.Error.FieldErrors, "password")
		assert.Zero(t, h.api.Hits(http.MethodPost, "/auth/login"))
	})

	t.Run("wrong password surfaces the upstream message", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		status, env := h.do(t, http.MethodPost, "/api/auth/login", model.LoginRequest{Email: mockapi.SeedEmail, Password: "wrong"})
		require.Equal(t, http.StatusUnauthorized, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "Invalid email or password", env.Error.Message)
	})

	t.Run("logout confirms and clears the session", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.login(t)

		status, env := h.do(t, http.MethodPost, "/api/auth/logout", nil)
		require.Equal(t, http.StatusOK, status)
		result := decode[model.LogoutResult](t, env)
		assert.True(t, result.Confirmed)

		_, env = h.do(t, http.MethodGet, "/api/session", nil)
		assert.False(t, decode[model.SessionView](t, env).IsAuthenticated)
	})
}

func TestEntityHandler(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.login(t)

	status, env := h.do(t, http.MethodPost, "/api/ressourceCategories", model.CategoryPayload{Label: "Wood"})
	require.Equal(t, http.StatusCreated, status)
	category := decode[model.Category](t, env)

	status, env = h.do(t, http.MethodPost, "/api/suppliers", model.SupplierPayload{Name: "Bois & Co", Email: "contact@bois.example", Phone: "01 23 45 67 89"})
	require.Equal(t, http.StatusCreated, status)
	supplier := decode[model.Supplier](t, env)

	t.Run("validation errors are field level", func(t *testing.T) {
		status, env := h.do(t, http.MethodPost, "/api/suppliers", model.SupplierPayload{Name: "X", Email: "nope", Phone: "123"})
		require.Equal(t, http.StatusBadRequest, status)
		require.NotNil(t, env.Error)
		assert.Contains(t, env.Error.FieldErrors, "phone")
	})

	t.Run("list and get", func(t *testing.T) {
		status, env := h.do(t, http.MethodGet, "/api/ressourceCategories", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, decode[[]model.Category](t, env), 1)

		status, env = h.do(t, http.MethodGet, "/api/ressourceCategories/"+category.ID, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Wood", decode[model.Category](t, env).Label)
	})

	t.Run("supplier in use cannot be deleted", func(t *testing.T) {
		status, _ := h.do(t, http.MethodPost, "/api/ressources", model.RessourcePayload{Name: "Oak", Category: category.ID, Supplier: supplier.ID})
		require.Equal(t, http.StatusCreated, status)

		status, env := h.do(t, http.MethodGet, "/api/suppliers", nil)
		require.Equal(t, http.StatusOK, status)
		rows := decode[[]struct {
			ID    string `json:"_id"`
			InUse bool   `json:"inUse"`
		}](t, env)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].InUse)

		status, env = h.do(t, http.MethodDelete, "/api/suppliers/"+supplier.ID, nil)
		require.Equal(t, http.StatusConflict, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "SUPPLIER_IN_USE", env.Error.Code)
		assert.Zero(t, h.api.Hits(http.MethodDelete, "/suppliers/{id}"))
	})

	t.Run("upstream not found keeps its message", func(t *testing.T) {
		status, env := h.do(t, http.MethodGet, "/api/furnitureCategories/abcdef012345", nil)
		require.Equal(t, http.StatusNotFound, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, string(apierror.KindServer), env.Error.Kind)
		assert.Contains(t, env.Error.Message, "not found")
	})
}

func TestDashboardHandler(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.login(t)

	status, env := h.do(t, http.MethodGet, "/api/dashboard?window=30", nil)
	require.Equal(t, http.StatusOK, status)
	summary := decode[struct {
		Window    int                          `json:"window"`
		Timelines map[string][]json.RawMessage `json:"timelines"`
	}](t, env)
	assert.Equal(t, 30, summary.Window)
	assert.Len(t, summary.Timelines["furnitures"], 30)

	status, env = h.do(t, http.MethodGet, "/api/dashboard?window=12", nil)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_WINDOW", env.Error.Code)
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "validation", err: apierror.Validation("INVALID_INPUT", "bad", map[string]string{"name": "required"}), status: http.StatusBadRequest, code: "INVALID_INPUT"},
		{name: "unauthorized", err: apierror.Unauthorized(""), status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "network", err: apierror.Network(errors.New("dial tcp")), status: http.StatusBadGateway, code: "UPSTREAM_UNAVAILABLE"},
		{name: "no workspace", err: model.ErrWorkspaceNotFound, status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError, code: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			require.Equal(t, tt.status, rec.Code)
			var env envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestDecodeJSONRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/furnitures", bytes.NewBufferString(`{"name":`))
	var payload model.FurniturePayload
	err := decodeJSON(req, &payload)
	require.True(t, apierror.IsKind(err, apierror.KindValidation))

	rec := httptest.NewRecorder()
	writeError(rec, err)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
	assert.Equal(t, string(apierror.KindValidation), env.Error.Kind)
}

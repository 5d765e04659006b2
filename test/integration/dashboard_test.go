//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furniture-dashboard/internal/model"
	"furniture-dashboard/internal/mockapi"
)

func TestLoginScenario(t *testing.T) {
	s := newStack(t)
	b := s.newBrowser(t)

	resp, _ := b.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))
	require.Equal(t, 1, s.api.Hits(http.MethodGet, "/users/me"))

	resp, body := b.do(http.MethodPost, "/api/auth/login", model.LoginRequest{Email: mockapi.SeedEmail, Password: mockapi.SeedPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decodeData[model.SessionView](t, body)
	require.True(t, view.IsAuthenticated)
	require.Equal(t, mockapi.SeedEmail, view.User.Email)

	// Exactly one who-am-i after sign-in, then served from the cache.
	assert.Equal(t, 2, s.api.Hits(http.MethodGet, "/users/me"))
	resp, _ = b.do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, s.api.Hits(http.MethodGet, "/users/me"))

	resp, _ = b.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInventoryLifecycle(t *testing.T) {
	s := newStack(t)
	b := s.newBrowser(t)

	resp, _ := b.do(http.MethodPost, "/api/auth/login", model.LoginRequest{Email: mockapi.SeedEmail, Password: mockapi.SeedPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := b.do(http.MethodPost, "/api/ressourceCategories", model.CategoryPayload{Label: "Metal"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	category := decodeData[model.Category](t, body)

	resp, body = b.do(http.MethodPost, "/api/suppliers", model.SupplierPayload{Name: "Acier SA", Email: "hello@acier.example", Phone: "+33 6 12 34 56 78"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	supplier := decodeData[model.Supplier](t, body)

	resp, body = b.do(http.MethodPost, "/api/ressources", model.RessourcePayload{Name: "Steel tube", Category: category.ID, Supplier: supplier.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ressource := decodeData[model.Ressource](t, body)

	resp, body = b.do(http.MethodDelete, "/api/suppliers/"+supplier.ID, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "SUPPLIER_IN_USE", body.Error.Code)

	resp, _ = b.do(http.MethodDelete, "/api/ressources/"+ressource.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The ressource list was invalidated, so the guard sees it gone.
	resp, _ = b.do(http.MethodDelete, "/api/suppliers/"+supplier.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, s.api.Hits(http.MethodDelete, "/suppliers/{id}"))

	resp, body = b.do(http.MethodGet, "/api/dashboard?window=7", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decodeData[struct {
		Totals map[string]int `json:"totals"`
	}](t, body)
	assert.Equal(t, 1, summary.Totals["ressourceCategories"])
	assert.Zero(t, summary.Totals["suppliers"])
}

func TestVisitorsAreIsolated(t *testing.T) {
	s := newStack(t)
	alice := s.newBrowser(t)
	bob := s.newBrowser(t)

	resp, _ := alice.do(http.MethodPost, "/api/auth/login", model.LoginRequest{Email: mockapi.SeedEmail, Password: mockapi.SeedPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = bob.do(http.MethodGet, "/api/furnitures", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = alice.do(http.MethodGet, "/api/furnitures", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, s.registry.Len())
}

func TestLogout(t *testing.T) {
	s := newStack(t)
	b := s.newBrowser(t)

	resp, _ := b.do(http.MethodPost, "/api/auth/login", model.LoginRequest{Email: mockapi.SeedEmail, Password: mockapi.SeedPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s.api.FailNext(http.MethodPost, "/auth/logout", http.StatusInternalServerError, "Database unavailable")
	resp, body := b.do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeData[model.LogoutResult](t, body)
	assert.False(t, result.Confirmed)
	assert.Equal(t, "Database unavailable", result.Message)

	resp, _ = b.do(http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "a rejected logout keeps the session")

	resp, body = b.do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeData[model.LogoutResult](t, body).Confirmed)

	resp, _ = b.do(http.MethodGet, "/api/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

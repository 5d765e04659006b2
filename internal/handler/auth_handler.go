package handler

import (
	"net/http"

	"furniture-dashboard/internal/model"
)

// AuthHandler serves the session endpoints of the visitor's workspace.
type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	var payload model.LoginRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	state, err := ws.Auth.Login(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, state.View())
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	var payload model.RegisterRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	state, err := ws.Auth.Register(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, state.View())
}

// Logout answers 200 in both outcomes; Confirmed tells the UI whether the
// session is really gone.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	writeSuccess(w, http.StatusOK, ws.Auth.Logout(r.Context()))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	state, err := ws.Auth.Refresh(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, state.View())
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	user, err := ws.Auth.WhoAmI(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user)
}

// Session reports the session as the dashboard currently sees it, without
// any upstream request.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	writeSuccess(w, http.StatusOK, ws.Auth.Session().View())
}

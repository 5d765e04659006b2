package handler

import (
	"encoding/json"
	"net/http"

	"furniture-dashboard/pkg/apierror"
)

// Loading answers while the visitor's session is still being resolved. It
// has no side effects, so the browser can simply poll.
func Loading(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"state": "loading"})
}

func APIUnauthorized(w http.ResponseWriter, _ *http.Request) {
	writeError(w, apierror.Unauthorized("Authentication required"))
}

func APINotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, apierror.New("NOT_FOUND", "Route not found", "", http.StatusNotFound))
}

func Redirect(to string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, to, http.StatusFound)
	}
}

package handler

import (
	"net/http"

	"furniture-dashboard/internal/stats"
	"furniture-dashboard/pkg/apierror"
)

type DashboardHandler struct{}

func NewDashboardHandler() *DashboardHandler {
	return &DashboardHandler{}
}

// Summary answers GET /api/dashboard?window=7|30|90.
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	window, err := stats.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		writeError(w, apierror.Validation("INVALID_WINDOW", err.Error(), map[string]string{"window": "must be 7, 30 or 90"}))
		return
	}

	summary, err := ws.Dashboard.Summary(r.Context(), window)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, summary)
}

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"furniture-dashboard/internal/model"
	"furniture-dashboard/internal/workspace"
	"furniture-dashboard/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Kind = string(apiErr.Kind)
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
		body.FieldErrors = apiErr.FieldErrors
		if status < 400 {
			status = http.StatusBadGateway
		}
	} else if errors.Is(err, model.ErrWorkspaceNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Workspace not found"
	} else {
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

// decodeJSON reads the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierror.Validation("BAD_REQUEST", "invalid JSON body", nil)
	}
	return nil
}

func currentWorkspace(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	ws, err := workspace.FromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return ws, true
}

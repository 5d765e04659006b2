package model

// APIResponse is the envelope of every dashboard JSON answer.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Kind        string            `json:"kind,omitempty"`
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Details     string            `json:"details,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

// Envelope is the upstream wrapper around entity reads and writes.
type Envelope[T any] struct {
	Data T `json:"data"`
}

// SessionView is what the dashboard tells the browser about its session.
type SessionView struct {
	User            *UserProfile `json:"user"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	IsInitialized   bool         `json:"isInitialized"`
	LogoutRequested bool         `json:"logoutRequested,omitempty"`
}

type LogoutResult struct {
	LoggedOut bool   `json:"logged_out"`
	Confirmed bool   `json:"confirmed"`
	Message   string `json:"message,omitempty"`
}

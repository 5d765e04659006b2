package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the caller: validation errors never leave the
// dashboard, unauthorized errors drive the session state machine, server and
// network errors are surfaced as a single message.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindServer       Kind = "server"
	KindNetwork      Kind = "network"
)

const GenericMessage = "Something went wrong, please try again"

type APIError struct {
	Kind        Kind              `json:"kind"`
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Details     string            `json:"details,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
	HTTPStatus  int               `json:"-"`
	Err         error             `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Kind: kindForStatus(status), Code: code, Message: message, Details: details, HTTPStatus: status}
}

func Validation(code string, message string, fields map[string]string) *APIError {
	return &APIError{
		Kind:        KindValidation,
		Code:        code,
		Message:     message,
		FieldErrors: fields,
		HTTPStatus:  http.StatusBadRequest,
	}
}

func Unauthorized(message string) *APIError {
	if message == "" {
		message = "authentication required"
	}
	return &APIError{Kind: KindUnauthorized, Code: "UNAUTHORIZED", Message: message, HTTPStatus: http.StatusUnauthorized}
}

// Server wraps a non-2xx upstream answer. The message is the upstream's own
// wording when it sent one.
func Server(status int, message string) *APIError {
	if message == "" {
		message = GenericMessage
	}
	return &APIError{Kind: kindForStatus(status), Code: codeForStatus(status), Message: message, HTTPStatus: status}
}

func Network(err error) *APIError {
	return &APIError{
		Kind:       KindNetwork,
		Code:       "UPSTREAM_UNAVAILABLE",
		Message:    GenericMessage,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// From normalises any error into an APIError. Unknown errors become
// network-kind errors with the generic message.
func From(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	return Network(err)
}

func IsKind(err error, kind Kind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// MessageOr returns the error's user-facing message, or fallback when the
// error carries none worth showing.
func MessageOr(err error, fallback string) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message == "" || apiErr.Message == GenericMessage {
		return fallback
	}
	return apiErr.Message
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		return KindNetwork
	default:
		return KindServer
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusUnprocessableEntity:
		return "UNPROCESSABLE"
	}
	if status >= 500 {
		return "UPSTREAM_ERROR"
	}
	return "REQUEST_FAILED"
}

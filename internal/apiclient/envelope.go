package apiclient

import (
	"context"
	"net/http"

	"furniture-dashboard/internal/model"
)

// Doer is the part of Client the services depend on.
type Doer interface {
	Do(ctx context.Context, method string, path string, body any, out any) error
}

// Get decodes the data field of a {"data": ...} answer.
func Get[T any](ctx context.Context, c Doer, path string) (T, error) {
	var out model.Envelope[T]
	err := c.Do(ctx, http.MethodGet, path, nil, &out)
	return out.Data, err
}

// Send issues a write and decodes the data field of the answer.
func Send[T any](ctx context.Context, c Doer, method string, path string, body any) (T, error) {
	var out model.Envelope[T]
	err := c.Do(ctx, method, path, body, &out)
	return out.Data, err
}

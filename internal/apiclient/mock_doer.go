package apiclient

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
)

// MockDoer answers Do with canned JSON bodies. Expectations are set on
// (method, path, body) and return (rawJSON string, error).
type MockDoer struct {
	mock.Mock
}

func (m *MockDoer) Do(_ context.Context, method string, path string, body any, out any) error {
	args := m.Called(method, path, body)
	if err := args.Error(1); err != nil {
		return err
	}

	raw, _ := args.Get(0).(string)
	if out == nil || raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}

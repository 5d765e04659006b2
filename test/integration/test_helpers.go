//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"furniture-dashboard/internal/apiclient"
	"furniture-dashboard/internal/config"
	"furniture-dashboard/internal/event"
	"furniture-dashboard/internal/mockapi"
	"furniture-dashboard/internal/router"
	"furniture-dashboard/internal/websocket"
	"furniture-dashboard/internal/workspace"
)

type stack struct {
	api       *mockapi.Server
	dashboard *httptest.Server
	registry  *workspace.Registry
}

// newStack runs the dashboard against a fresh fake upstream.
func newStack(t *testing.T) *stack {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	api, err := mockapi.New(mockapi.Config{JWTSecret: "test-secret", SessionTTL: time.Hour, BcryptCost: 4}, logger)
	require.NoError(t, err)
	upstream := httptest.NewServer(api)
	t.Cleanup(upstream.Close)

	cfg, err := config.LoadFrom(map[string]string{
		"API_BASE_URL":         upstream.URL,
		"RATE_LIMIT_RPM":       "0",
		"AUTH_RATE_LIMIT_RPM":  "1000",
		"SESSION_RESOLVE_WAIT": "2s",
	})
	require.NoError(t, err)

	bus := event.NewBus()
	registry := workspace.NewRegistry(workspace.Options{
		API:         cfg.Upstream(),
		Breaker:     apiclient.NewBreaker(t.Name(), cfg.Upstream(), logger),
		GracePeriod: cfg.CacheGracePeriod,
		Bus:         bus,
		Logger:      logger,
	})
	t.Cleanup(registry.Close)

	dashboard := httptest.NewServer(router.New(cfg, registry, websocket.NewHub(bus, logger), router.DefaultHandlers(""), logger))
	t.Cleanup(dashboard.Close)

	return &stack{api: api, dashboard: dashboard, registry: registry}
}

// browser is one visitor with its own cookie jar.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (s *stack) newBrowser(t *testing.T) *browser {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &browser{
		t:    t,
		base: s.dashboard.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Kind        string            `json:"kind"`
		Code        string            `json:"code"`
		Message     string            `json:"message"`
		FieldErrors map[string]string `json:"field_errors"`
	} `json:"error"`
}

func (b *browser) do(method string, path string, body any) (*http.Response, apiResponse) {
	b.t.Helper()

	var payload io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(b.t, err)
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, b.base+path, payload)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer func() { _ = resp.Body.Close() }()

	var parsed apiResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	if len(raw) > 0 && resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(b.t, json.Unmarshal(raw, &parsed))
	}
	return resp, parsed
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	return out
}

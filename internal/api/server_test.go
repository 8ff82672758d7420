package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toastigo/storefront/internal/auth"
	"github.com/toastigo/storefront/internal/bridge"
	"github.com/toastigo/storefront/internal/command"
	"github.com/toastigo/storefront/internal/config"
	"github.com/toastigo/storefront/internal/printer"
	"github.com/toastigo/storefront/internal/shop"
	"github.com/toastigo/storefront/internal/store"
)

type fakeBridge struct {
	enabled bool
	state   bridge.State
}

func (f *fakeBridge) Enabled() bool       { return f.enabled }
func (f *fakeBridge) State() bridge.State { return f.state }
func (f *fakeBridge) Stats() bridge.Stats {
	return bridge.Stats{Enabled: f.enabled, Protocol: "cloud", State: f.state.String(), Accepted: 7}
}

type fakeOrchestrator struct {
	err   error
	calls int
}

func (f *fakeOrchestrator) RequestFullState(ctx context.Context) error {
	f.calls++
	return f.err
}

type testServer struct {
	t        *testing.T
	srv      *Server
	handler  http.Handler
	cache    *printer.Cache
	shop     *shop.Service
	bridge   *fakeBridge
	orch     *fakeOrchestrator
	verifier *auth.Verifier
	dist     string
	token    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	dist := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dist, "index.html"), []byte("<html>toastigo</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dist, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "assets", "app.js"), []byte("console.log(1)"), 0o644))

	verifier, err := auth.NewVerifier("test-secret", "toast", time.Hour)
	require.NoError(t, err)
	token, _, err := verifier.Login("toast")
	require.NoError(t, err)

	cfg := config.Defaults().Server
	cfg.DistDir = dist
	cfg.MaxBodyBytes = 1 << 10

	ts := &testServer{
		t:        t,
		cache:    printer.NewCache(45 * time.Second),
		shop:     shop.NewService(st),
		bridge:   &fakeBridge{enabled: true, state: bridge.StateConnected},
		orch:     &fakeOrchestrator{},
		verifier: verifier,
		dist:     dist,
		token:    token,
	}
	ts.srv = NewServer(cfg, Deps{
		Status:       ts.cache,
		Bridge:       ts.bridge,
		Orchestrator: ts.orch,
		Shop:         ts.shop,
		Auth:         verifier,
		Middleware:   auth.NewMiddleware(verifier),
		Version:      "test",
	})
	ts.handler = ts.srv.Handler()
	return ts
}

func (ts *testServer) do(method, target, body string, admin bool) *httptest.ResponseRecorder {
	ts.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	req.RemoteAddr = "203.0.113.5:41000"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body: %s", rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorBody
	decode(t, rec, &body)
	assert.Equal(t, "error", body.Result)
	assert.NotEmpty(t, body.CorrelationID)
	return body.Code
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/status", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"online":false,"temp":0,"state":"Offline","percent":0,"lastUpdate":0}`, rec.Body.String())

	temp, pct, state := 55.0, 40.0, "RUNNING"
	ts.cache.ApplyMessage(printer.Update{Temp: &temp, Percent: &pct, State: &state})

	rec = ts.do(http.MethodGet, "/api/status", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]interface{}
	decode(t, rec, &status)
	assert.Equal(t, true, status["online"])
	assert.Equal(t, 55.0, status["temp"])
	assert.Equal(t, 40.0, status["percent"])
	assert.Equal(t, "RUNNING", status["state"])
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestStatusStreamUnavailableWithoutHub(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/status/stream", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "UNAVAILABLE", errorCode(t, rec))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		bridge     fakeBridge
		wantStatus string
		wantBridge string
	}{
		{"connected", fakeBridge{enabled: true, state: bridge.StateConnected}, "ok", "connected"},
		{"reconnecting", fakeBridge{enabled: true, state: bridge.StateConnecting}, "degraded", "connecting"},
		{"disabled", fakeBridge{enabled: false}, "ok", "disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			*ts.bridge = tt.bridge
			rec := ts.do(http.MethodGet, "/api/health", "", false)
			require.Equal(t, http.StatusOK, rec.Code)

			var body struct {
				Status     string                 `json:"status"`
				Version    string                 `json:"version"`
				Subsystems map[string]interface{} `json:"subsystems"`
			}
			decode(t, rec, &body)
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, "test", body.Version)
			assert.Equal(t, tt.wantBridge, body.Subsystems["bridge"])
		})
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	routes := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/orders"},
		{http.MethodPost, "/api/orders/x/status"},
		{http.MethodGet, "/api/uploads"},
		{http.MethodDelete, "/api/uploads/x"},
		{http.MethodPost, "/api/approve"},
		{http.MethodPost, "/api/reject"},
		{http.MethodPost, "/api/gallery"},
		{http.MethodPost, "/api/gallery/delete"},
		{http.MethodDelete, "/api/gallery/x"},
		{http.MethodPost, "/api/products"},
		{http.MethodPost, "/api/ban"},
		{http.MethodPost, "/api/unban"},
		{http.MethodPost, "/api/unban-all"},
		{http.MethodGet, "/api/analytics"},
		{http.MethodGet, "/api/bridge"},
		{http.MethodPost, "/api/printer/request-state"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rec := ts.do(rt.method, rt.path, "", false)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
		})
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/admin/login", `{"password":"nope"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))

	rec = ts.do(http.MethodPost, "/api/admin/login", `{"password":"toast"}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expiresAt"`
	}
	decode(t, rec, &body)

	claims, err := ts.verifier.VerifyToken(body.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.NotEmpty(t, body.ExpiresAt)

	rec = ts.do(http.MethodPost, "/api/admin/login", `not json`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginDisabled(t *testing.T) {
	ts := newTestServer(t)
	v, err := auth.NewVerifier("s", "", time.Hour)
	require.NoError(t, err)
	ts.srv.Auth = v

	rec := ts.do(http.MethodPost, "/api/admin/login", `{"password":""}`, false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "LOGIN_DISABLED", errorCode(t, rec))
}

func TestBridgeAndRequestState(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/bridge", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats bridge.Stats
	decode(t, rec, &stats)
	assert.Equal(t, "connected", stats.State)
	assert.EqualValues(t, 7, stats.Accepted)

	rec = ts.do(http.MethodPost, "/api/printer/request-state", "", true)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, ts.orch.calls)

	ts.orch.err = command.ErrUnavailable
	rec = ts.do(http.MethodPost, "/api/printer/request-state", "", true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "UNAVAILABLE", errorCode(t, rec))

	ts.orch.err = command.ErrTimeout
	rec = ts.do(http.MethodPost, "/api/printer/request-state", "", true)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestBodyLimit(t *testing.T) {
	ts := newTestServer(t)

	big := `{"note":"` + strings.Repeat("x", 2<<10) + `"}`
	rec := ts.do(http.MethodPost, "/api/orders", big, false)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", errorCode(t, rec))
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", shop.ErrInvalidInput, http.StatusBadRequest, "BAD_REQUEST"},
		{"bad request", ErrBadRequest, http.StatusBadRequest, "BAD_REQUEST"},
		{"not found", shop.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"banned", shop.ErrBanned, http.StatusForbidden, "BANNED"},
		{"unavailable", command.ErrUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"timeout", command.ErrTimeout, http.StatusGatewayTimeout, "TIMEOUT"},
		{"bad credentials", auth.ErrBadCredentials, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"api error", NewAPIError("CONFLICT", "taken", http.StatusConflict, nil), http.StatusConflict, "CONFLICT"},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ToAPIError(tt.err)
			assert.Equal(t, tt.wantStatus, status)

			var env ErrorBody
			require.NoError(t, json.Unmarshal(body, &env))
			assert.Equal(t, "error", env.Result)
			assert.Equal(t, tt.wantCode, env.Code)
			assert.NotEmpty(t, env.CorrelationID)
		})
	}

	status, body := ToAPIError(nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, body)
}

func TestClientIP(t *testing.T) {
	srv := NewServer(config.ServerConfig{TrustedProxies: []string{"10.0.0.0/8", "192.0.2.10"}}, Deps{})

	tests := []struct {
		name   string
		remote string
		xff    []string
		want   string
	}{
		{"no header", "198.51.100.3:5555", nil, "198.51.100.3"},
		{"untrusted peer ignores header", "198.51.100.3:5555", []string{"203.0.113.9"}, "198.51.100.3"},
		{"trusted peer", "10.1.2.3:443", []string{"203.0.113.9"}, "203.0.113.9"},
		{"trusted single host", "192.0.2.10:443", []string{"203.0.113.9"}, "203.0.113.9"},
		{"client prepends a fake hop", "10.1.2.3:443", []string{"198.51.100.7, 203.0.113.9"}, "203.0.113.9"},
		{"proxy chain", "10.1.2.3:443", []string{"203.0.113.9, 10.9.9.9"}, "203.0.113.9"},
		{"repeated headers", "10.1.2.3:443", []string{"198.51.100.7", "203.0.113.9"}, "203.0.113.9"},
		{"trusted peer without header", "10.1.2.3:443", nil, "10.1.2.3"},
		{"mapped peer", "[::ffff:10.1.2.3]:443", []string{"203.0.113.9"}, "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			assert.Equal(t, tt.want, srv.clientIP(req))
		})
	}
}

func TestWriteOK(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteOK(rec, map[string]interface{}{"count": 2})
	assert.JSONEq(t, `{"success":true,"count":2}`, rec.Body.String())
	assert.True(t, bytes.HasPrefix([]byte(rec.Header().Get("Content-Type")), []byte("application/json")))
}

func TestServeAndStop(t *testing.T) {
	ts := newTestServer(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- ts.srv.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, ts.srv.Stop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}

func TestStopBeforeServe(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.srv.Stop(context.Background()))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.NoError(t, ts.srv.Serve(l))
}

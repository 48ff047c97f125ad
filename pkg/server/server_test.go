package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/finmon/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		BindAddr:        "127.0.0.1",
		Port:            "0",
		ShutdownTimeout: time.Second,
		Auth: config.AuthConfig{
			JWTSecret:  "0123456789abcdef0123456789abcdef",
			TokenTTL:   time.Hour,
			Issuer:     "finmon",
			CookieName: "finmon_jwt",
		},
		Cost: config.CostConfig{MaxTreeDepth: 256},
	}
}

func TestNewServices_WiresEverything(t *testing.T) {
	svc := NewServices(testConfig(), zap.NewNop())

	assert.NotNil(t, svc.Projects)
	assert.NotNil(t, svc.Events)
	assert.NotNil(t, svc.Users)
	require.NotNil(t, svc.Issuer)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig()

	// Reserve a free port, then hand it to the server.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, _ := net.SplitHostPort(l.Addr().String())
	require.NoError(t, l.Close())
	cfg.Port = port

	ctx, cancel := context.WithCancel(context.Background())
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, handler, zap.NewNop()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + port + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewHandler_PublicRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.Version = "test"
	handler := NewHandler(cfg, nil, NewServices(cfg, zap.NewNop()), zap.NewNop())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

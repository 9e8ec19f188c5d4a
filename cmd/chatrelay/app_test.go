package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chatrelay/gateway/pkg/audit"
	"chatrelay/gateway/pkg/config"
	"chatrelay/gateway/pkg/server"
	"chatrelay/gateway/pkg/telemetry/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(t *testing.T, mutate func(*config.Config)) (*app, *bytes.Buffer) {
	t.Helper()
	t.Setenv("CHATRELAY_TEST_API_KEY", "")

	cfg := config.NewDefault()
	cfg.Upstream.APIKeyEnv = "CHATRELAY_TEST_API_KEY"
	cfg.Audit.Backend = "memory"
	cfg.Audit.AsyncBuffer = 0
	cfg.Sessions.Dir = filepath.Join(t.TempDir(), "sessions")
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, config.Validate(cfg))

	var logs bytes.Buffer
	logger, err := logging.New(logging.Config{Level: "debug", Format: "json", Writer: &logs})
	require.NoError(t, err)

	a, err := newApp(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, &logs
}

func serve(t *testing.T, a *app) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(server.NewServer(a.config.Server, a.routes, a.logger.Logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestNewApp_Routes(t *testing.T) {
	a, _ := testApp(t, nil)
	srv := serve(t, a)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{name: "liveness", method: http.MethodGet, path: "/health", wantStatus: 200, wantBody: `"ok"`},
		{name: "not ready without credential", method: http.MethodGet, path: "/ready", wantStatus: 503, wantBody: "upstream_credential"},
		{name: "version", method: http.MethodGet, path: "/version", wantStatus: 200, wantBody: Version},
		{name: "chat without credential", method: http.MethodPost, path: "/api/chat", body: `{"messages":[{"role":"user","content":"hi"}]}`, wantStatus: 500},
		{name: "sessions list", method: http.MethodGet, path: "/api/sessions", wantStatus: 200, wantBody: `"sessions"`},
		{name: "feedback", method: http.MethodPost, path: "/api/feedback", body: `{"type":"like","msgId":"m1"}`, wantStatus: 200, wantBody: `"LIKE"`},
		{name: "export", method: http.MethodPost, path: "/api/export/txt", body: `{"chatData":{"messages":[{"role":"user","content":"hi"}]}}`, wantStatus: 200, wantBody: "hi"},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: 200, wantBody: "chatrelay_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(body))
			if tt.wantBody != "" {
				assert.Contains(t, string(body), tt.wantBody)
			}
		})
	}

	sink, ok := a.sink.(*audit.MemorySink)
	require.True(t, ok)
	var kinds []audit.Kind
	for _, rec := range sink.Records() {
		kinds = append(kinds, rec.Kind)
	}
	assert.Contains(t, kinds, audit.KindChat)
	assert.Contains(t, kinds, audit.KindFeedback)

	resp, err := http.Get(srv.URL + "/api/log")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "FEEDBACK | LIKE | msgId: m1")
}

func TestNewApp_FrameCapFromConfig(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"n\":1}\n\n")
		io.WriteString(w, "data: "+strings.Repeat("x", 64)+"\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(upstreamSrv.Close)

	a, _ := testApp(t, func(cfg *config.Config) {
		cfg.Upstream.URL = upstreamSrv.URL
		cfg.Upstream.APIKey = "sk-test"
		cfg.Upstream.MaxFrameBytes = 32
	})
	srv := serve(t, a)

	resp, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "data: {\"n\":1}\n\n", string(body))

	sink, ok := a.sink.(*audit.MemorySink)
	require.True(t, ok)
	require.Eventually(t, func() bool { return len(sink.Records()) == 1 }, time.Second, 10*time.Millisecond)
	rec := sink.Records()[0]
	assert.Equal(t, "transport_failure", rec.Terminal)
	assert.Equal(t, 1, rec.Frames)
}

func TestNewApp_OptionalRoutesDisabled(t *testing.T) {
	a, _ := testApp(t, func(cfg *config.Config) {
		cfg.Audit.Enabled = false
		cfg.Sessions.Enabled = false
		cfg.Telemetry.Metrics.Enabled = false
	})
	srv := serve(t, a)

	for _, path := range []string{"/api/sessions", "/api/feedback", "/api/log", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
	assert.Nil(t, a.recorder)
	assert.Nil(t, a.store)
	assert.ElementsMatch(t, []string{"upstream_credential"}, a.checker.Names())
}

func TestNewApp_CredentialRedacted(t *testing.T) {
	a, logs := testApp(t, func(cfg *config.Config) {
		cfg.Upstream.APIKey = "sk-live-0123456789abcdef"
	})

	a.logger.Info("diagnostic", "detail", "token sk-live-0123456789abcdef leaked")

	assert.NoError(t, a.client.Ready())
	assert.NotContains(t, logs.String(), "sk-live-0123456789abcdef")
}

func TestNewApp_Pruners(t *testing.T) {
	a, _ := testApp(t, func(cfg *config.Config) {
		cfg.Audit.Retention.Days = 30
		cfg.Sessions.Retention.Days = 90
	})

	var names []string
	for _, p := range a.pruners {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"audit", "sessions"}, names)
}

func TestNewApp_BadSessionDir(t *testing.T) {
	t.Setenv("CHATRELAY_TEST_API_KEY", "")
	cfg := config.NewDefault()
	cfg.Upstream.APIKeyEnv = "CHATRELAY_TEST_API_KEY"
	cfg.Audit.Enabled = false
	cfg.Sessions.Dir = filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(cfg.Sessions.Dir, []byte("x"), 0o600))

	logger, err := logging.New(logging.Config{Level: "info", Format: "json", Writer: io.Discard})
	require.NoError(t, err)

	_, err = newApp(cfg, logger)
	assert.Error(t, err)
}

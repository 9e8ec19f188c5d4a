package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chatrelay/gateway/pkg/audit"
	"chatrelay/gateway/pkg/config"
	"chatrelay/gateway/pkg/upstream"
)

const chatBody = `{"messages":[{"role":"user","content":"hello"}]}`

// fakeObserver counts observer callbacks.
type fakeObserver struct {
	upstream atomic.Int32
	requests atomic.Int32
	frames   atomic.Int32
	lastCode atomic.Int32
}

func (o *fakeObserver) ObserveUpstream(string, time.Duration) { o.upstream.Add(1) }
func (o *fakeObserver) ObserveFrame()                         { o.frames.Add(1) }
func (o *fakeObserver) ObserveRequest(status int, _ string, _ time.Duration) {
	o.requests.Add(1)
	o.lastCode.Store(int32(status))
}

type harness struct {
	handler  *Handler
	sink     *audit.MemorySink
	observer *fakeObserver
	calls    *atomic.Int32
}

func newHarness(t *testing.T, upstreamURL string, calls *atomic.Int32) *harness {
	t.Helper()

	client := upstream.NewClient(config.UpstreamConfig{
		URL:            upstreamURL,
		ConnectTimeout: 2 * time.Second,
	}, upstream.StaticCredential("sk-test"))

	sink := audit.NewMemorySink()
	rec := audit.NewRecorder(sink, audit.RecorderConfig{Backend: "memory"}, nil)
	t.Cleanup(func() { rec.Close() })

	obs := &fakeObserver{}
	h := NewHandler(client, HandlerConfig{
		Defaults: Defaults{Model: "default-model", MaxTokens: 2000},
		CORS:     testCORS(),
	}, WithAudit(rec), WithObserver(obs))

	if calls == nil {
		calls = &atomic.Int32{}
	}
	return &harness{handler: h, sink: sink, observer: obs, calls: calls}
}

func (hs *harness) do(method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/chat", strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:51234"
	rec := httptest.NewRecorder()
	hs.handler.ServeHTTP(rec, req)
	return rec
}

func (hs *harness) lastRecord(t *testing.T) audit.Record {
	t.Helper()
	records := hs.sink.Records()
	if len(records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(records))
	}
	return records[0]
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorPayload {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}
	var p ErrorPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("error body is not JSON: %v (%q)", err, rec.Body.String())
	}
	return p
}

func streamingUpstream(t *testing.T, calls *atomic.Int32, frames ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, f := range frames {
			_, _ = io.WriteString(w, f+"\n\n")
			w.(http.Flusher).Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandler_ConnectFailureIsJSON(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	hs := newHarness(t, addr, nil)
	rec := hs.do(http.MethodPost, chatBody)

	if rec.Code < 400 {
		t.Errorf("status = %d, want non-2xx", rec.Code)
	}
	p := decodeError(t, rec)
	if p.Error != MsgUpstreamUnreachable {
		t.Errorf("error = %q, want %q", p.Error, MsgUpstreamUnreachable)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header = %q, want *", got)
	}

	ar := hs.lastRecord(t)
	if ar.StatusCode != rec.Code || ar.ErrorSummary == "" {
		t.Errorf("audit record = %+v", ar)
	}
}

func TestHandler_RejectionPropagatesStatus(t *testing.T) {
	for _, status := range []int{400, 401, 402, 404, 429, 500, 503} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			calls := &atomic.Int32{}
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(status)
				_, _ = io.WriteString(w, `{"error":{"message":"nope"}}`)
			}))
			defer srv.Close()

			hs := newHarness(t, srv.URL, calls)
			rec := hs.do(http.MethodPost, chatBody)

			if rec.Code != status {
				t.Errorf("status = %d, want %d", rec.Code, status)
			}
			p := decodeError(t, rec)
			if p.Details != `{"error":{"message":"nope"}}` {
				t.Errorf("details = %q", p.Details)
			}
			if calls.Load() != 1 {
				t.Errorf("upstream calls = %d, want 1", calls.Load())
			}
			if ar := hs.lastRecord(t); ar.StatusCode != status {
				t.Errorf("audit status = %d, want %d", ar.StatusCode, status)
			}
		})
	}
}

func TestHandler_StreamsAndStopsAtSentinel(t *testing.T) {
	calls := &atomic.Int32{}
	srv := streamingUpstream(t, calls,
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: [DONE]`,
		`data: {"after":"done"}`,
	)

	hs := newHarness(t, srv.URL, calls)
	rec := hs.do(http.MethodPost, chatBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if got := rec.Header().Get("X-Accel-Buffering"); got != "no" {
		t.Errorf("X-Accel-Buffering = %q, want no", got)
	}

	want := `data: {"choices":[{"delta":{"content":"Hel"}}]}` + "\n\n" +
		`data: {"choices":[{"delta":{"content":"lo"}}]}` + "\n\n" +
		"data: [DONE]\n\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}

	ar := hs.lastRecord(t)
	if ar.Terminal != string(TerminalSuccess) || ar.Frames != 3 {
		t.Errorf("audit terminal = %q frames = %d, want success/3", ar.Terminal, ar.Frames)
	}
	if ar.ClientAddress != "192.0.2.10" || ar.MessageCount != 1 || ar.Model != "default-model" {
		t.Errorf("audit record = %+v", ar)
	}
	if hs.observer.frames.Load() != 3 || hs.observer.upstream.Load() != 1 {
		t.Errorf("observer frames = %d upstream = %d", hs.observer.frames.Load(), hs.observer.upstream.Load())
	}
}

func TestHandler_EmptyMessagesNoUpstreamCall(t *testing.T) {
	calls := &atomic.Int32{}
	srv := streamingUpstream(t, calls, "data: [DONE]")

	hs := newHarness(t, srv.URL, calls)
	rec := hs.do(http.MethodPost, `{"messages":[]}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if p := decodeError(t, rec); !strings.Contains(p.Error, "messages") {
		t.Errorf("error = %q, want mention of messages", p.Error)
	}
	if calls.Load() != 0 {
		t.Errorf("upstream calls = %d, want 0", calls.Load())
	}
	if ar := hs.lastRecord(t); ar.StatusCode != http.StatusBadRequest {
		t.Errorf("audit status = %d, want 400", ar.StatusCode)
	}
}

func TestHandler_MidStreamDrop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "data: {\"n\":1}\n\n")
		w.(http.Flusher).Flush()
		_, _ = io.WriteString(w, "data: {\"n\":")
		w.(http.Flusher).Flush()

		conn, _, err := http.NewResponseController(w).Hijack()
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	hs := newHarness(t, srv.URL, nil)
	rec := hs.do(http.MethodPost, chatBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "data: {\"n\":1}\n\n" {
		t.Errorf("body = %q, want only the complete frame", got)
	}

	ar := hs.lastRecord(t)
	if ar.Terminal != string(TerminalTransportFailure) {
		t.Errorf("audit terminal = %q, want %q", ar.Terminal, TerminalTransportFailure)
	}
	if ar.ErrorSummary == "" {
		t.Error("audit error summary empty for transport failure")
	}
}

func TestHandler_Options(t *testing.T) {
	calls := &atomic.Int32{}
	srv := streamingUpstream(t, calls)

	hs := newHarness(t, srv.URL, calls)
	rec := hs.do(http.MethodOptions, "")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
	if calls.Load() != 0 {
		t.Errorf("upstream calls = %d, want 0", calls.Load())
	}
	if n := len(hs.sink.Records()); n != 0 {
		t.Errorf("audit records = %d, want 0 for preflight", n)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	hs := newHarness(t, "http://127.0.0.1:1", nil)
	rec := hs.do(http.MethodGet, "")

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != "POST, OPTIONS" {
		t.Errorf("Allow = %q", got)
	}
	decodeError(t, rec)
}

func TestHandler_ClientGoneDuringStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "data: {\"n\":1}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	hs := newHarness(t, srv.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(chatBody)).WithContext(ctx)
	rec := &notifyingRecorder{ResponseRecorder: httptest.NewRecorder(), wrote: make(chan struct{})}

	done := make(chan struct{})
	go func() {
		hs.handler.ServeHTTP(rec, req)
		close(done)
	}()

	select {
	case <-rec.wrote:
	case <-time.After(3 * time.Second):
		t.Fatal("no frame relayed")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("handler did not return after client cancellation")
	}

	if ar := hs.lastRecord(t); ar.Terminal != string(TerminalCancelled) {
		t.Errorf("audit terminal = %q, want %q", ar.Terminal, TerminalCancelled)
	}
}

// notifyingRecorder signals the first body write.
type notifyingRecorder struct {
	*httptest.ResponseRecorder
	once  sync.Once
	wrote chan struct{}
}

func (n *notifyingRecorder) Write(p []byte) (int, error) {
	n.once.Do(func() { close(n.wrote) })
	return n.ResponseRecorder.Write(p)
}

package feedback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/gateway/pkg/audit"
)

type typeCounter map[string]int

func (c typeCounter) RecordFeedback(t string) { c[t]++ }

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, audit.Record) error { return audit.ErrQueueFull }

func newHandler() (*Handler, *audit.MemorySink, typeCounter) {
	sink := audit.NewMemorySink()
	counter := typeCounter{}
	rec := audit.NewRecorder(sink, audit.RecorderConfig{Backend: "memory"}, nil)
	return NewHandler(rec, counter, 0, nil), sink, counter
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(body))
	r.RemoteAddr = "198.51.100.4:40000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestHandler_Records(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantType    string
		wantMsgID   string
		wantPreview string
	}{
		{
			name:        "like",
			body:        `{"type":"LIKE","msgId":"m-1","preview":"Gern geschehen"}`,
			wantType:    "LIKE",
			wantMsgID:   "m-1",
			wantPreview: "Gern geschehen",
		},
		{
			name:        "lowercase dislike without id",
			body:        `{"type":"dislike","preview":"` + strings.Repeat("x", 100) + `"}`,
			wantType:    "DISLIKE",
			wantMsgID:   "unknown",
			wantPreview: strings.Repeat("x", 60),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, sink, counter := newHandler()

			rec := post(h, tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, Response{Status: "ok", Logged: tt.wantType}, resp)

			records := sink.Records()
			require.Len(t, records, 1)
			got := records[0]
			assert.Equal(t, audit.KindFeedback, got.Kind)
			assert.Equal(t, "198.51.100.4", got.ClientAddress)
			require.NotNil(t, got.Feedback)
			assert.Equal(t, tt.wantType, got.Feedback.Type)
			assert.Equal(t, tt.wantMsgID, got.Feedback.MessageID)
			assert.Equal(t, tt.wantPreview, got.Feedback.Preview)
			assert.Equal(t, 1, counter[tt.wantType])
		})
	}
}

func TestHandler_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{name: "unknown type", method: http.MethodPost, body: `{"type":"LOVE"}`, wantStatus: 400},
		{name: "missing type", method: http.MethodPost, body: `{"msgId":"m"}`, wantStatus: 400},
		{name: "invalid json", method: http.MethodPost, body: `{`, wantStatus: 400},
		{name: "get", method: http.MethodGet, wantStatus: 405},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, sink, counter := newHandler()
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/feedback", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Empty(t, sink.Records())
			assert.Empty(t, counter)
		})
	}
}

func TestHandler_RecorderFailure(t *testing.T) {
	counter := typeCounter{}
	h := NewHandler(failingRecorder{}, counter, 0, nil)

	rec := post(h, `{"type":"LIKE"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, counter)
}

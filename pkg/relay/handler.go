package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"chatrelay/gateway/pkg/api"
	"chatrelay/gateway/pkg/audit"
	"chatrelay/gateway/pkg/telemetry/logging"
	"chatrelay/gateway/pkg/upstream"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Connector opens the upstream call. *upstream.Client implements it.
type Connector interface {
	Connect(ctx context.Context, req upstream.CompletionRequest) upstream.Outcome
}

// AuditSink receives one record per request. *audit.Recorder implements it.
type AuditSink interface {
	Record(ctx context.Context, rec audit.Record) error
}

// Observer receives relay measurements. metrics.Collector implements it.
type Observer interface {
	ObserveUpstream(outcome string, d time.Duration)
	ObserveRequest(status int, terminal string, d time.Duration)
	ObserveFrame()
}

// Upstream outcome labels.
const (
	OutcomeAccepted       = "accepted"
	OutcomeRejected       = "rejected"
	OutcomeConnectFailure = "connect_failure"
)

// HandlerConfig contains the per-request settings of a Handler.
type HandlerConfig struct {
	Defaults     Defaults
	MaxBodyBytes int64
	CORS         http.Header
	MaxFrameSize int
}

// Handler serves the chat relay endpoint.
type Handler struct {
	connector Connector
	audit     AuditSink
	observer  Observer
	config    HandlerConfig
	tracer    trace.Tracer
	logger    *slog.Logger
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithAudit sets the audit sink.
func WithAudit(sink AuditSink) HandlerOption {
	return func(h *Handler) { h.audit = sink }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) HandlerOption {
	return func(h *Handler) { h.observer = o }
}

// WithHandlerLogger sets the logger.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler creates the relay handler.
func NewHandler(connector Connector, cfg HandlerConfig, opts ...HandlerOption) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	h := &Handler{
		connector: connector,
		config:    cfg,
		tracer:    otel.Tracer("chatrelay/relay"),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "relay")
	return h
}

// ServeHTTP handles POST and OPTIONS. Every response, including input errors,
// is written through a Gate.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		for k, vs := range h.config.CORS {
			w.Header()[k] = append([]string(nil), vs...)
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := r.Context()
	start := time.Now()
	gate := NewGate(w, h.config.CORS)

	rec := audit.Record{
		Timestamp:     start,
		Kind:          audit.KindChat,
		RequestID:     logging.GetRequestID(ctx),
		ClientAddress: api.ClientAddress(r),
	}
	defer func() {
		rec.Duration = time.Since(start)
		h.finish(ctx, &rec)
	}()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		h.reject(ctx, gate, &rec, http.StatusMethodNotAllowed, ErrorPayload{Error: "method not allowed"})
		return
	}

	req, err := ParseRequest(r, h.config.MaxBodyBytes, h.config.Defaults)
	if err != nil {
		var reqErr *RequestError
		if !errors.As(err, &reqErr) {
			reqErr = &RequestError{Status: http.StatusBadRequest, Message: err.Error()}
		}
		h.reject(ctx, gate, &rec, reqErr.Status, ErrorPayload{Error: reqErr.Message})
		return
	}

	rec.MessageCount = len(req.Messages)
	rec.Model = req.Model
	rec.TrainingOptOut = req.TrainingOptOut

	h.logger.InfoContext(ctx, "relay request",
		"client", rec.ClientAddress,
		"model", req.Model,
		"messages", len(req.Messages),
		"max_tokens", req.MaxTokens,
		"no_training", req.TrainingOptOut,
	)

	outcome := h.connect(ctx, req)
	mode := Classify(outcome)

	if err := gate.Commit(mode); err != nil {
		if errors.Is(err, ErrAlreadyCommitted) {
			h.logger.ErrorContext(ctx, "response committed twice", "state", gate.State().String())
		}
		if es, ok := mode.(*EventStream); ok {
			es.Body.Close()
			rec.StatusCode = http.StatusOK
			rec.Terminal = string(TerminalCancelled)
			rec.ErrorSummary = "client gone before stream opened: " + err.Error()
			return
		}
	}

	switch m := mode.(type) {
	case *ErrorJSON:
		rec.StatusCode = m.StatusCode
		rec.ErrorSummary = summarize(m.Payload)
		h.logger.WarnContext(ctx, "relay error response",
			"status", m.StatusCode,
			"error", m.Payload.Error,
		)

	case *EventStream:
		rec.StatusCode = http.StatusOK
		res := h.stream(ctx, m.Body, gate)
		gate.Close()

		rec.Terminal = string(res.Terminal)
		rec.Frames = res.Frames
		if res.Err != nil {
			rec.ErrorSummary = res.Err.Error()
		}

		level := slog.LevelInfo
		if res.Terminal != TerminalSuccess {
			level = slog.LevelWarn
		}
		h.logger.Log(ctx, level, "stream completed",
			"terminal", string(res.Terminal),
			"frames", res.Frames,
			"saw_done", res.SawDone,
			"duration_ms", res.Duration.Milliseconds(),
		)
	}
}

func (h *Handler) connect(ctx context.Context, req upstream.CompletionRequest) upstream.Outcome {
	ctx, span := h.tracer.Start(ctx, "relay.connect", trace.WithAttributes(
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.messages", len(req.Messages)),
	))
	defer span.End()

	start := time.Now()
	outcome := h.connector.Connect(ctx, req)

	label := OutcomeConnectFailure
	switch o := outcome.(type) {
	case *upstream.Accepted:
		label = OutcomeAccepted
		span.SetAttributes(attribute.Int("http.response.status_code", o.StatusCode))
	case *upstream.Rejected:
		label = OutcomeRejected
		span.SetAttributes(attribute.Int("http.response.status_code", o.StatusCode))
		span.SetStatus(codes.Error, "upstream rejected request")
	case *upstream.ConnectFailure:
		span.SetAttributes(attribute.String("relay.failure_reason", string(o.Reason)))
		span.SetStatus(codes.Error, string(o.Reason))
		h.logger.ErrorContext(ctx, "upstream connect failed", "reason", string(o.Reason), "error", o.Err)
	}
	span.SetAttributes(attribute.String("relay.outcome", label))

	if h.observer != nil {
		h.observer.ObserveUpstream(label, time.Since(start))
	}
	return outcome
}

func (h *Handler) stream(ctx context.Context, body io.ReadCloser, gate *Gate) StreamResult {
	ctx, span := h.tracer.Start(ctx, "relay.stream")
	defer span.End()

	s := &Streamer{MaxFrameSize: h.config.MaxFrameSize}
	if h.observer != nil {
		s.OnFrame = h.observer.ObserveFrame
	}
	res := s.Relay(ctx, body, gate)

	span.SetAttributes(
		attribute.String("relay.terminal", string(res.Terminal)),
		attribute.Int("relay.frames", res.Frames),
	)
	if res.Terminal != TerminalSuccess {
		span.SetStatus(codes.Error, string(res.Terminal))
	}
	return res
}

func (h *Handler) reject(ctx context.Context, gate *Gate, rec *audit.Record, status int, payload ErrorPayload) {
	rec.StatusCode = status
	rec.ErrorSummary = summarize(payload)

	if err := gate.CommitError(status, payload); err != nil {
		h.logger.DebugContext(ctx, "failed to write error response", "error", err)
	}
	h.logger.InfoContext(ctx, "request rejected", "status", status, "error", payload.Error)
}

func (h *Handler) finish(ctx context.Context, rec *audit.Record) {
	if h.observer != nil {
		h.observer.ObserveRequest(rec.StatusCode, rec.Terminal, rec.Duration)
	}
	if h.audit == nil {
		return
	}
	if err := h.audit.Record(context.WithoutCancel(ctx), *rec); err != nil {
		h.logger.WarnContext(ctx, "audit record dropped", "error", err)
	}
}

const maxSummaryLength = 300

func summarize(p ErrorPayload) string {
	s := p.Error
	if p.Details != "" {
		s += ": " + p.Details
	}
	if r := []rune(s); len(r) > maxSummaryLength {
		s = string(r[:maxSummaryLength])
	}
	return s
}

package feedback

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"chatrelay/gateway/pkg/api"
	"chatrelay/gateway/pkg/audit"
	"chatrelay/gateway/pkg/telemetry/logging"
)

// Recorder stores feedback records. *audit.Recorder implements it.
type Recorder interface {
	Record(ctx context.Context, rec audit.Record) error
}

// Observer receives feedback measurements. metrics.Collector implements it.
type Observer interface {
	RecordFeedback(feedbackType string)
}

// Handler serves POST /api/feedback.
type Handler struct {
	recorder     Recorder
	observer     Observer
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewHandler creates the feedback endpoint. observer may be nil.
func NewHandler(recorder Recorder, observer Observer, maxBodyBytes int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		recorder:     recorder,
		observer:     observer,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With("component", "feedback"),
	}
}

// Request is the body of a feedback submission.
type Request struct {
	Type      string `json:"type"`
	MessageID string `json:"msgId"`
	Preview   string `json:"preview"`
}

// Response acknowledges a recorded rating.
type Response struct {
	Status string `json:"status"`
	Logged string `json:"logged"`
}

// ServeHTTP records one rating.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !api.AllowMethods(w, r, http.MethodPost) {
		return
	}

	var req Request
	if err := api.DecodeJSON(r, h.maxBodyBytes, &req); err != nil {
		api.WriteError(w, err)
		return
	}

	fbType := strings.ToUpper(strings.TrimSpace(req.Type))
	if fbType != audit.FeedbackLike && fbType != audit.FeedbackDislike {
		api.WriteError(w, api.BadRequest("invalid feedback type"))
		return
	}
	msgID := req.MessageID
	if msgID == "" {
		msgID = "unknown"
	}

	ctx := r.Context()
	err := h.recorder.Record(context.WithoutCancel(ctx), audit.Record{
		Kind:          audit.KindFeedback,
		RequestID:     logging.GetRequestID(ctx),
		ClientAddress: api.ClientAddress(r),
		Feedback: &audit.Feedback{
			Type:      fbType,
			MessageID: msgID,
			Preview:   audit.TruncatePreview(req.Preview),
		},
	})
	if err != nil {
		h.logger.WarnContext(ctx, "feedback not recorded", "type", fbType, "error", err)
		api.WriteError(w, api.NewError(http.StatusServiceUnavailable, "feedback not recorded"))
		return
	}

	if h.observer != nil {
		h.observer.RecordFeedback(fbType)
	}
	h.logger.InfoContext(ctx, "feedback recorded", "type", fbType, "msg_id", msgID)
	api.WriteJSON(w, http.StatusOK, Response{Status: "ok", Logged: fbType})
}

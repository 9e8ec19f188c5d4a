package export

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"chatrelay/gateway/pkg/api"
	"chatrelay/gateway/pkg/session"
)

// RoutePrefix is where the export endpoints are mounted.
const RoutePrefix = "/api/export/"

// Observer receives export measurements. metrics.Collector implements it.
type Observer interface {
	RecordExport(format string)
}

// Handler serves POST /api/export/{format}.
type Handler struct {
	exporter     *Exporter
	observer     Observer
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewHandler creates the export endpoint. observer may be nil.
func NewHandler(exporter *Exporter, observer Observer, maxBodyBytes int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		exporter:     exporter,
		observer:     observer,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With("component", "export"),
	}
}

type exportRequest struct {
	ChatData json.RawMessage `json:"chatData"`
}

// ServeHTTP renders the posted conversation as an attachment.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, RoutePrefix)
	format, ok := ParseFormat(name)
	if !ok {
		api.WriteError(w, api.NotFound("unknown export format: "+name))
		return
	}
	if !api.AllowMethods(w, r, http.MethodPost) {
		return
	}

	var req exportRequest
	if err := api.DecodeJSON(r, h.maxBodyBytes, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	if len(req.ChatData) == 0 || string(req.ChatData) == "null" {
		api.WriteError(w, api.BadRequest("no chat data"))
		return
	}

	conv, err := session.ParseConversation(req.ChatData)
	if err != nil {
		api.WriteError(w, &api.Error{Status: http.StatusBadRequest, Message: "invalid chat data", Details: err.Error()})
		return
	}

	doc, err := h.exporter.Render(format, conv)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "export failed", "format", string(format), "error", err)
		api.WriteError(w, err)
		return
	}

	if h.observer != nil {
		h.observer.RecordExport(string(format))
	}
	h.logger.InfoContext(r.Context(), "conversation exported",
		"format", string(format),
		"messages", len(conv.Messages),
		"bytes", len(doc.Body),
	)
	api.WriteAttachment(w, doc.ContentType, doc.Filename, doc.Body)
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"chatrelay/gateway/pkg/api"
)

// Observer receives session store measurements. metrics.Collector
// implements it.
type Observer interface {
	RecordSessionOperation(operation string, err error)
}

// Repository is the storage used by Handler. *Store implements it.
type Repository interface {
	Save(ctx context.Context, id string, data json.RawMessage) error
	Load(ctx context.Context, id string) (json.RawMessage, error)
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) error
}

// Handler serves the session endpoints.
type Handler struct {
	repo         Repository
	observer     Observer
	maxBodyBytes int64
	now          func() time.Time
	logger       *slog.Logger
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithObserver sets the metrics observer.
func WithObserver(o Observer) HandlerOption {
	return func(h *Handler) { h.observer = o }
}

// WithMaxBodyBytes limits request bodies.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) { h.maxBodyBytes = n }
}

// WithHandlerLogger sets the handler logger.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler creates the session endpoints over repo.
func NewHandler(repo Repository, opts ...HandlerOption) *Handler {
	h := &Handler{
		repo:   repo,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "sessions")
	return h
}

// Register mounts the endpoints under /api/sessions.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/sessions", h.List)
	mux.HandleFunc("/api/sessions/save", h.Save)
	mux.HandleFunc("/api/sessions/load", h.Load)
	mux.HandleFunc("/api/sessions/delete", h.Delete)
}

type saveRequest struct {
	SessionID string          `json:"sessionId"`
	ChatData  json.RawMessage `json:"chatData"`
}

type saveResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type idRequest struct {
	SessionID string `json:"sessionId"`
}

type loadResponse struct {
	Success  bool            `json:"success"`
	ChatData json.RawMessage `json:"chatData"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type listResponse struct {
	Sessions []Summary `json:"sessions"`
}

// List answers GET with every stored session, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !api.AllowMethods(w, r, http.MethodGet) {
		return
	}

	sessions, err := h.repo.List(r.Context())
	h.observe(r.Context(), "list", "", err)
	if err != nil {
		h.fail(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, listResponse{Sessions: sessions})
}

// Save stores chatData under sessionId. An omitted sessionId is generated.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	if !api.AllowMethods(w, r, http.MethodPost) {
		return
	}

	var req saveRequest
	if err := api.DecodeJSON(r, h.maxBodyBytes, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = NewID(h.now())
	}

	err := h.repo.Save(r.Context(), req.SessionID, req.ChatData)
	h.observe(r.Context(), "save", req.SessionID, err)
	if err != nil {
		h.fail(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, saveResponse{
		Success:   true,
		SessionID: req.SessionID,
		Message:   "session saved",
	})
}

// Load returns the stored document of sessionId.
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	if !api.AllowMethods(w, r, http.MethodPost) {
		return
	}

	id, ok := h.decodeID(w, r)
	if !ok {
		return
	}

	data, err := h.repo.Load(r.Context(), id)
	h.observe(r.Context(), "load", id, err)
	if err != nil {
		h.fail(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, loadResponse{Success: true, ChatData: data})
}

// Delete removes sessionId.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !api.AllowMethods(w, r, http.MethodPost) {
		return
	}

	id, ok := h.decodeID(w, r)
	if !ok {
		return
	}

	err := h.repo.Delete(r.Context(), id)
	h.observe(r.Context(), "delete", id, err)
	if err != nil {
		h.fail(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, deleteResponse{Success: true, Message: "session deleted"})
}

func (h *Handler) decodeID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req idRequest
	if err := api.DecodeJSON(r, h.maxBodyBytes, &req); err != nil {
		api.WriteError(w, err)
		return "", false
	}
	if req.SessionID == "" {
		api.WriteError(w, api.BadRequest("no session id"))
		return "", false
	}
	return req.SessionID, true
}

func (h *Handler) observe(ctx context.Context, op, id string, err error) {
	if h.observer != nil {
		h.observer.RecordSessionOperation(op, err)
	}
	if err != nil && toAPIError(err) == nil {
		h.logger.ErrorContext(ctx, "session operation failed", "operation", op, "session_id", id, "error", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if apiErr := toAPIError(err); apiErr != nil {
		api.WriteError(w, apiErr)
		return
	}
	api.WriteError(w, err)
}

// toAPIError maps client-caused store errors to HTTP errors. It returns nil
// for internal failures.
func toAPIError(err error) *api.Error {
	var valErr *ValidationError
	switch {
	case errors.As(err, &valErr):
		return &api.Error{Status: http.StatusBadRequest, Message: "invalid session id", Details: valErr.Reason}
	case errors.Is(err, ErrNotFound):
		return api.NotFound("session not found")
	case errors.Is(err, ErrNoChatData):
		return api.BadRequest("no chat data")
	}
	return nil
}

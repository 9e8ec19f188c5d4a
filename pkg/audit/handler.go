package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// MaxTailLines caps the lines query parameter of the log viewer.
const MaxTailLines = 10000

// LogHandler serves the most recent audit lines as plain text.
type LogHandler struct {
	tailer       Tailer
	defaultLines int
	logger       *slog.Logger
}

// NewLogHandler creates the log viewer. lines is the default number of
// lines returned.
func NewLogHandler(tailer Tailer, lines int, logger *slog.Logger) *LogHandler {
	if lines <= 0 {
		lines = 500
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHandler{
		tailer:       tailer,
		defaultLines: lines,
		logger:       logger.With("component", "audit.viewer"),
	}
}

// ServeHTTP answers GET and HEAD. ?lines=N overrides the default count.
func (h *LogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	default:
		w.Header().Set("Allow", "GET, HEAD, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	n := h.defaultLines
	if v := r.URL.Query().Get("lines"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			http.Error(w, "lines must be a positive integer", http.StatusBadRequest)
			return
		}
		n = min(parsed, MaxTailLines)
	}

	lines, err := h.tailer.Tail(r.Context(), n)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to read audit log", "error", err)
		http.Error(w, "failed to read audit log", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if len(lines) == 0 {
		w.Write([]byte("no log entries\n"))
		return
	}
	w.Write([]byte(strings.Join(lines, "\n") + "\n"))
}

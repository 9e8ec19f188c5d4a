package audit

import (
	"fmt"

	"chatrelay/gateway/pkg/config"
)

// NewSink builds the sink selected by cfg.Backend.
func NewSink(cfg config.AuditConfig) (Sink, error) {
	switch cfg.Backend {
	case "file":
		return NewFileSink(cfg.File.Path)
	case "sqlite":
		return NewSQLiteSink(cfg.SQLite)
	case "memory":
		return NewMemorySink(), nil
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Backend)
	}
}

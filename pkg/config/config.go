package config

import "time"

// Config is the root configuration structure for the chat relay.
// It contains the HTTP server settings, the upstream completion API,
// the audit trail, the session store, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, request body limits and CORS.
	Server ServerConfig `yaml:"server"`

	// Upstream contains configuration for the remote chat-completion API.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Audit contains configuration for the per-request audit trail.
	Audit AuditConfig `yaml:"audit"`

	// Sessions contains configuration for the saved chat session store.
	Sessions SessionsConfig `yaml:"sessions"`

	// Telemetry contains configuration for logging, metrics, and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the inbound HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writes of the response. Streams can be long lived,
	// so zero disables the timeout.
	// Default: 0 (no timeout)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight
	// requests during graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits the size of inbound request bodies.
	// Default: 10485760 (10MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigin is the value of Access-Control-Allow-Origin.
	// Default: "*"
	AllowedOrigin string `yaml:"allowed_origin"`

	// AllowedMethods is the list of methods advertised on preflight.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is the list of request headers advertised on preflight.
	// Default: ["Content-Type"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the preflight cache duration in seconds. Zero omits the header.
	// Default: 0
	MaxAge int `yaml:"max_age"`
}

// UpstreamConfig contains configuration for the chat-completion API.
type UpstreamConfig struct {
	// URL is the full chat-completions endpoint.
	// Default: "https://api.deepseek.com/v1/chat/completions"
	URL string `yaml:"url"`

	// APIKey is the bearer credential. Prefer APIKeyEnv or APIKeyFile.
	APIKey string `yaml:"api_key"`

	// APIKeyEnv names the environment variable holding the credential.
	// Default: "DEEPSEEK_API_KEY"
	APIKeyEnv string `yaml:"api_key_env"`

	// APIKeyFile is a file holding the credential. The file is watched
	// and the credential is rotated on change.
	APIKeyFile string `yaml:"api_key_file"`

	// DefaultModel is used when a request does not name a model.
	// Default: "deepseek-chat"
	DefaultModel string `yaml:"default_model"`

	// DefaultMaxTokens is used when a request does not set max_tokens.
	// Default: 2000
	DefaultMaxTokens int `yaml:"default_max_tokens"`

	// ConnectTimeout bounds connection setup and the wait for response
	// headers. It never bounds the streamed body.
	// Default: 60s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// MaxErrorBodyBytes caps how much of a rejection body is read.
	// Default: 1048576 (1MB)
	MaxErrorBodyBytes int64 `yaml:"max_error_body_bytes"`

	// MaxFrameBytes caps a single line of the upstream event stream. A
	// longer line ends the stream as a transport failure.
	// Default: 1048576 (1MB)
	MaxFrameBytes int `yaml:"max_frame_bytes"`

	// TrainingOptOutHeader is sent with value "true" when the client asks
	// that its conversation not be used for training.
	// Default: "X-No-Training"
	TrainingOptOutHeader string `yaml:"training_opt_out_header"`
}

// AuditConfig contains configuration for the audit trail.
type AuditConfig struct {
	// Enabled controls whether audit records are written.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the sink: "file", "sqlite", or "memory".
	// Default: "file"
	Backend string `yaml:"backend"`

	// File contains settings for the append-only text log.
	File AuditFileConfig `yaml:"file"`

	// SQLite contains settings for the SQLite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// AsyncBuffer is the size of the recorder queue.
	// Default: 256
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds a single sink write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// TailLines is the number of lines returned by the log viewer.
	// Default: 500
	TailLines int `yaml:"tail_lines"`

	// Retention contains pruning settings.
	Retention RetentionConfig `yaml:"retention"`
}

// AuditFileConfig contains settings for the file audit backend.
type AuditFileConfig struct {
	// Path is the log file.
	// Default: "data/chat.log"
	Path string `yaml:"path"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	// Driver selects the database/sql driver: "sqlite3" (cgo) or
	// "sqlite" (pure Go, for CGO_ENABLED=0 builds).
	// Default: "sqlite3"
	Driver string `yaml:"driver"`

	// Path is the database file.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the connection pool ceiling.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig contains pruning settings shared by audit and sessions.
type RetentionConfig struct {
	// Days is how long data is kept. Zero keeps data forever.
	Days int `yaml:"days"`

	// Schedule is a standard 5-field cron expression.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`
}

// SessionsConfig contains configuration for the session store.
type SessionsConfig struct {
	// Enabled controls whether the session endpoints are mounted.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Dir is where session files are stored.
	// Default: "data/sessions"
	Dir string `yaml:"dir"`

	// Retention contains pruning settings for old sessions.
	Retention RetentionConfig `yaml:"retention"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is one of "json", "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes source file and line in log records.
	AddSource bool `yaml:"add_source"`

	// RedactPatterns are additional patterns scrubbed from log output.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern is a custom redaction rule.
type RedactPattern struct {
	// Name identifies the rule.
	Name string `yaml:"name"`

	// Pattern is a Go regular expression.
	Pattern string `yaml:"pattern"`

	// Replacement is substituted for each match.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains Prometheus configuration.
type MetricsConfig struct {
	// Enabled controls whether /metrics is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "chatrelay"
	Namespace string `yaml:"namespace"`

	// DurationBuckets are the histogram buckets for request and stream
	// durations in seconds.
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig contains OpenTelemetry configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// ServiceName is reported as service.name.
	// Default: "chatrelay"
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the fraction of traces sampled, 0.0 to 1.0.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`
}

package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576  // 1MB
	DefaultMaxBodyBytes    = 10485760 // 10MB

	// CORS defaults
	DefaultCORSEnabled       = true
	DefaultCORSAllowedOrigin = "*"

	// Upstream defaults
	DefaultUpstreamURL          = "https://api.deepseek.com/v1/chat/completions"
	DefaultAPIKeyEnv            = "DEEPSEEK_API_KEY"
	DefaultModel                = "deepseek-chat"
	DefaultMaxTokens            = 2000
	DefaultConnectTimeout       = 60 * time.Second
	DefaultMaxErrorBodyBytes    = 1048576 // 1MB
	DefaultMaxFrameBytes        = 1048576 // 1MB
	DefaultTrainingOptOutHeader = "X-No-Training"

	// Audit defaults
	DefaultAuditEnabled        = true
	DefaultAuditBackend        = "file"
	DefaultAuditFilePath       = "data/chat.log"
	DefaultAuditSQLitePath     = "data/audit.db"
	DefaultSQLiteDriver        = "sqlite3"
	DefaultSQLiteMaxOpenConns  = 4
	DefaultSQLiteWALMode       = true
	DefaultSQLiteBusyTimeout   = 5 * time.Second
	DefaultAuditAsyncBuffer    = 256
	DefaultAuditWriteTimeout   = 5 * time.Second
	DefaultAuditTailLines      = 500
	DefaultRetentionSchedule   = "0 3 * * *"
	DefaultSessionsEnabled     = true
	DefaultSessionsDir         = "data/sessions"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
	DefaultMetricsEnabled      = true
	DefaultMetricsPath         = "/metrics"
	DefaultMetricsNamespace    = "chatrelay"
	DefaultTracingEnabled      = false
	DefaultTracingEndpoint     = "localhost:4317"
	DefaultTracingServiceName  = "chatrelay"
	DefaultTracingSampleRatio  = 1.0
	DefaultTracingInsecureMode = true
)

// DefaultCORSAllowedMethods are advertised on preflight when none are configured.
var DefaultCORSAllowedMethods = []string{"GET", "POST", "OPTIONS"}

// DefaultCORSAllowedHeaders are advertised on preflight when none are configured.
var DefaultCORSAllowedHeaders = []string{"Content-Type"}

// DefaultDurationBuckets cover short error replies through multi-minute streams.
var DefaultDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// NewDefault returns a configuration with every field set to its default.
// Boolean defaults are only expressible here, so YAML is decoded on top of it.
func NewDefault() *Config {
	cfg := &Config{
		Server: ServerConfig{
			CORS: CORSConfig{Enabled: DefaultCORSEnabled},
		},
		Audit: AuditConfig{
			Enabled: DefaultAuditEnabled,
			SQLite:  SQLiteConfig{WALMode: DefaultSQLiteWALMode},
		},
		Sessions: SessionsConfig{Enabled: DefaultSessionsEnabled},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{
				Enabled:  DefaultTracingEnabled,
				Insecure: DefaultTracingInsecureMode,
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-valued field with its default.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Server.CORS.AllowedOrigin == "" {
		cfg.Server.CORS.AllowedOrigin = DefaultCORSAllowedOrigin
	}
	if len(cfg.Server.CORS.AllowedMethods) == 0 {
		cfg.Server.CORS.AllowedMethods = append([]string(nil), DefaultCORSAllowedMethods...)
	}
	if len(cfg.Server.CORS.AllowedHeaders) == 0 {
		cfg.Server.CORS.AllowedHeaders = append([]string(nil), DefaultCORSAllowedHeaders...)
	}

	// Upstream defaults
	if cfg.Upstream.URL == "" {
		cfg.Upstream.URL = DefaultUpstreamURL
	}
	if cfg.Upstream.APIKeyEnv == "" {
		cfg.Upstream.APIKeyEnv = DefaultAPIKeyEnv
	}
	if cfg.Upstream.DefaultModel == "" {
		cfg.Upstream.DefaultModel = DefaultModel
	}
	if cfg.Upstream.DefaultMaxTokens == 0 {
		cfg.Upstream.DefaultMaxTokens = DefaultMaxTokens
	}
	if cfg.Upstream.ConnectTimeout == 0 {
		cfg.Upstream.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.Upstream.MaxErrorBodyBytes == 0 {
		cfg.Upstream.MaxErrorBodyBytes = DefaultMaxErrorBodyBytes
	}
	if cfg.Upstream.MaxFrameBytes == 0 {
		cfg.Upstream.MaxFrameBytes = DefaultMaxFrameBytes
	}
	if cfg.Upstream.TrainingOptOutHeader == "" {
		cfg.Upstream.TrainingOptOutHeader = DefaultTrainingOptOutHeader
	}

	// Audit defaults
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.File.Path == "" {
		cfg.Audit.File.Path = DefaultAuditFilePath
	}
	if cfg.Audit.SQLite.Path == "" {
		cfg.Audit.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.Audit.SQLite.Driver == "" {
		cfg.Audit.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Audit.SQLite.MaxOpenConns == 0 {
		cfg.Audit.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Audit.SQLite.BusyTimeout == 0 {
		cfg.Audit.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Audit.AsyncBuffer == 0 {
		cfg.Audit.AsyncBuffer = DefaultAuditAsyncBuffer
	}
	if cfg.Audit.WriteTimeout == 0 {
		cfg.Audit.WriteTimeout = DefaultAuditWriteTimeout
	}
	if cfg.Audit.TailLines == 0 {
		cfg.Audit.TailLines = DefaultAuditTailLines
	}
	if cfg.Audit.Retention.Schedule == "" {
		cfg.Audit.Retention.Schedule = DefaultRetentionSchedule
	}

	// Sessions defaults
	if cfg.Sessions.Dir == "" {
		cfg.Sessions.Dir = DefaultSessionsDir
	}
	if cfg.Sessions.Retention.Schedule == "" {
		cfg.Sessions.Retention.Schedule = DefaultRetentionSchedule
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
}

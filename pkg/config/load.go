package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "CHATRELAY_"

// LoadConfig loads configuration from a YAML file at the specified path.
// An empty path yields the defaults. The result is validated but not
// modified by environment variables; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefault()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
		ApplyDefaults(cfg)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention CHATRELAY_SECTION_FIELD (e.g., CHATRELAY_SERVER_LISTEN_ADDRESS).
//
// The loading sequence is:
// 1. Apply default values
// 2. Load YAML from file
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Server overrides
	setString(&cfg.Server.ListenAddress, "SERVER_LISTEN_ADDRESS")
	setDuration(&cfg.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT")
	setInt64(&cfg.Server.MaxBodyBytes, "SERVER_MAX_BODY_BYTES")
	setBool(&cfg.Server.CORS.Enabled, "SERVER_CORS_ENABLED")
	setString(&cfg.Server.CORS.AllowedOrigin, "SERVER_CORS_ALLOWED_ORIGIN")

	// Upstream overrides
	setString(&cfg.Upstream.URL, "UPSTREAM_URL")
	setString(&cfg.Upstream.APIKey, "UPSTREAM_API_KEY")
	setString(&cfg.Upstream.APIKeyEnv, "UPSTREAM_API_KEY_ENV")
	setString(&cfg.Upstream.APIKeyFile, "UPSTREAM_API_KEY_FILE")
	setString(&cfg.Upstream.DefaultModel, "UPSTREAM_DEFAULT_MODEL")
	setInt(&cfg.Upstream.DefaultMaxTokens, "UPSTREAM_DEFAULT_MAX_TOKENS")
	setDuration(&cfg.Upstream.ConnectTimeout, "UPSTREAM_CONNECT_TIMEOUT")
	setInt(&cfg.Upstream.MaxFrameBytes, "UPSTREAM_MAX_FRAME_BYTES")

	// Audit overrides
	setBool(&cfg.Audit.Enabled, "AUDIT_ENABLED")
	setString(&cfg.Audit.Backend, "AUDIT_BACKEND")
	setString(&cfg.Audit.File.Path, "AUDIT_FILE_PATH")
	setString(&cfg.Audit.SQLite.Path, "AUDIT_SQLITE_PATH")
	setString(&cfg.Audit.SQLite.Driver, "AUDIT_SQLITE_DRIVER")
	setInt(&cfg.Audit.Retention.Days, "AUDIT_RETENTION_DAYS")

	// Sessions overrides
	setBool(&cfg.Sessions.Enabled, "SESSIONS_ENABLED")
	setString(&cfg.Sessions.Dir, "SESSIONS_DIR")
	setInt(&cfg.Sessions.Retention.Days, "SESSIONS_RETENTION_DAYS")

	// Telemetry overrides
	setString(&cfg.Telemetry.Logging.Level, "TELEMETRY_LOGGING_LEVEL")
	setString(&cfg.Telemetry.Logging.Format, "TELEMETRY_LOGGING_FORMAT")
	setBool(&cfg.Telemetry.Metrics.Enabled, "TELEMETRY_METRICS_ENABLED")
	setBool(&cfg.Telemetry.Tracing.Enabled, "TELEMETRY_TRACING_ENABLED")
	setString(&cfg.Telemetry.Tracing.Endpoint, "TELEMETRY_TRACING_ENDPOINT")
}

func lookup(key string) (string, bool) {
	val := strings.TrimSpace(os.Getenv(EnvPrefix + key))
	return val, val != ""
}

func setString(dst *string, key string) {
	if val, ok := lookup(key); ok {
		*dst = val
	}
}

func setInt(dst *int, key string) {
	if val, ok := lookup(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if val, ok := lookup(key); ok {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if val, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if val, ok := lookup(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"chatrelay/gateway/pkg/config"
)

// ErrNoCredential is returned when no upstream credential is configured.
var ErrNoCredential = errors.New("upstream credential not configured")

// Credential supplies the bearer token for outbound calls.
type Credential interface {
	Token() (string, error)
}

// StaticCredential is a credential fixed at startup.
type StaticCredential string

// Token returns the credential, or ErrNoCredential if it is empty.
func (c StaticCredential) Token() (string, error) {
	if c == "" {
		return "", ErrNoCredential
	}
	return string(c), nil
}

// FileCredential reads the credential from a file and re-reads it when the
// file changes. The file must be mode 0600 or 0400.
type FileCredential struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	value    string
	onRotate func(string)
}

// NewFileCredential loads the credential from path.
func NewFileCredential(path string, logger *slog.Logger) (*FileCredential, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &FileCredential{
		path:   path,
		logger: logger.With("component", "credential"),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// Token returns the most recently loaded credential.
func (c *FileCredential) Token() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.value == "" {
		return "", ErrNoCredential
	}
	return c.value, nil
}

// OnRotate registers a callback invoked with each newly loaded value, so
// callers can register it for log redaction.
func (c *FileCredential) OnRotate(fn func(string)) {
	c.mu.Lock()
	c.onRotate = fn
	value := c.value
	c.mu.Unlock()

	if fn != nil && value != "" {
		fn(value)
	}
}

// Watch reloads the credential whenever the file changes, until ctx ends.
// A failed reload keeps the previous value.
func (c *FileCredential) Watch(ctx context.Context) error {
	fw, err := config.NewFileWatcher(c.path, 0, c.logger)
	if err != nil {
		return err
	}
	return fw.Watch(ctx, func() {
		if err := c.load(); err != nil {
			c.logger.Error("credential reload failed", "error", err)
			return
		}
		c.logger.Info("credential rotated")
	})
}

func (c *FileCredential) load() error {
	info, err := os.Stat(c.path)
	if err != nil {
		return fmt.Errorf("failed to stat credential file %q: %w", c.path, err)
	}
	if mode := info.Mode().Perm(); mode != 0600 && mode != 0400 {
		return fmt.Errorf("insecure permissions on %s: %o (expected 0600 or 0400)", c.path, mode)
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to read credential file %q: %w", c.path, err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return fmt.Errorf("credential file %q is empty", c.path)
	}

	c.mu.Lock()
	c.value = value
	onRotate := c.onRotate
	c.mu.Unlock()

	if onRotate != nil {
		onRotate(value)
	}
	return nil
}

// CredentialFromConfig resolves the configured credential source: an inline
// key, a watched file, or an environment variable, in that order. A missing
// environment variable yields an empty StaticCredential so the relay can
// start and report the configuration error per request.
func CredentialFromConfig(cfg config.UpstreamConfig, logger *slog.Logger) (Credential, error) {
	switch {
	case cfg.APIKey != "":
		return StaticCredential(cfg.APIKey), nil
	case cfg.APIKeyFile != "":
		return NewFileCredential(cfg.APIKeyFile, logger)
	default:
		return StaticCredential(strings.TrimSpace(os.Getenv(cfg.APIKeyEnv))), nil
	}
}

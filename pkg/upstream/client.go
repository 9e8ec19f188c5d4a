package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"chatrelay/gateway/pkg/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client opens streaming completion calls against a single endpoint.
// It never retries.
type Client struct {
	url            string
	credential     Credential
	httpClient     *http.Client
	connectTimeout time.Duration
	maxErrorBody   int64
	optOutHeader   string
	logger         *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout must be zero,
// otherwise long streams are cut off.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a Client for the configured endpoint. The credential is
// consulted on every call and never logged.
func NewClient(cfg config.UpstreamConfig, credential Credential, opts ...Option) *Client {
	c := &Client{
		url:            cfg.URL,
		credential:     credential,
		connectTimeout: cfg.ConnectTimeout,
		maxErrorBody:   cfg.MaxErrorBodyBytes,
		optOutHeader:   cfg.TrainingOptOutHeader,
		logger:         slog.Default(),
	}
	if c.connectTimeout <= 0 {
		c.connectTimeout = config.DefaultConnectTimeout
	}
	if c.maxErrorBody <= 0 {
		c.maxErrorBody = config.DefaultMaxErrorBodyBytes
	}
	if c.optOutHeader == "" {
		c.optOutHeader = config.DefaultTrainingOptOutHeader
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ForceAttemptHTTP2 = true
		c.httpClient = &http.Client{Transport: otelhttp.NewTransport(transport)}
	}
	c.logger = c.logger.With("component", "upstream")

	return c
}

// Ready reports whether a credential is available.
func (c *Client) Ready() error {
	_, err := c.credential.Token()
	return err
}

// Connect sends req and waits for the response headers. The connect timeout
// covers dialing and the wait for headers only; once headers arrive the
// returned body lives as long as ctx.
func (c *Client) Connect(ctx context.Context, req CompletionRequest) Outcome {
	token, err := c.credential.Token()
	if err != nil {
		return &ConnectFailure{Reason: ReasonCredential, Err: err}
	}

	body, err := json.Marshal(wireRequest{
		Model:     req.Model,
		Messages:  req.Messages,
		MaxTokens: req.MaxTokens,
		Stream:    true,
	})
	if err != nil {
		return &ConnectFailure{Reason: ReasonNetwork, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	callCtx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(c.connectTimeout, cancel)

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		timer.Stop()
		cancel()
		return &ConnectFailure{Reason: ReasonNetwork, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if req.TrainingOptOut {
		httpReq.Header.Set(c.optOutHeader, "true")
	}

	c.logger.DebugContext(ctx, "opening upstream call",
		"model", req.Model,
		"messages", len(req.Messages),
		"max_tokens", req.MaxTokens,
	)

	resp, err := c.httpClient.Do(httpReq)
	timedOut := !timer.Stop()
	if err != nil {
		cancel()
		switch {
		case ctx.Err() != nil:
			return &ConnectFailure{Reason: ReasonCancelled, Err: ctx.Err()}
		case timedOut || errors.Is(err, context.DeadlineExceeded):
			return &ConnectFailure{
				Reason: ReasonTimeout,
				Err:    fmt.Errorf("no response headers within %s", c.connectTimeout),
			}
		default:
			return &ConnectFailure{Reason: ReasonNetwork, Err: err}
		}
	}
	if timedOut {
		// Headers raced the timer; the call context is already cancelled.
		resp.Body.Close()
		cancel()
		return &ConnectFailure{
			Reason: ReasonTimeout,
			Err:    fmt.Errorf("no response headers within %s", c.connectTimeout),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer resp.Body.Close()

		data, readErr := io.ReadAll(io.LimitReader(resp.Body, c.maxErrorBody))
		if readErr != nil {
			c.logger.WarnContext(ctx, "failed to read upstream error body", "status", resp.StatusCode, "error", readErr)
		}
		return &Rejected{StatusCode: resp.StatusCode, Body: string(data)}
	}

	return &Accepted{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       &cancelOnClose{ReadCloser: resp.Body, cancel: cancel},
	}
}

// cancelOnClose releases the call context together with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

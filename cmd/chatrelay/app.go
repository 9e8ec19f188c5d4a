package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatrelay/gateway/pkg/audit"
	"chatrelay/gateway/pkg/config"
	"chatrelay/gateway/pkg/export"
	"chatrelay/gateway/pkg/feedback"
	"chatrelay/gateway/pkg/relay"
	"chatrelay/gateway/pkg/retention"
	"chatrelay/gateway/pkg/server"
	"chatrelay/gateway/pkg/server/middleware"
	"chatrelay/gateway/pkg/session"
	"chatrelay/gateway/pkg/telemetry/health"
	"chatrelay/gateway/pkg/telemetry/logging"
	"chatrelay/gateway/pkg/telemetry/metrics"
	"chatrelay/gateway/pkg/upstream"
)

// app holds the components of a running relay.
type app struct {
	config    *config.Config
	logger    *logging.Logger
	client    *upstream.Client
	rotating  *upstream.FileCredential
	collector *metrics.Collector
	sink      audit.Sink
	recorder  *audit.Recorder
	store     *session.Store
	checker   *health.Checker
	pruners   []*retention.Pruner
	routes    server.Routes
}

// newApp builds every component from cfg. Close releases what was opened,
// also after a partial failure.
func newApp(cfg *config.Config, logger *logging.Logger) (*app, error) {
	a := &app{
		config:    cfg,
		logger:    logger,
		collector: metrics.NewCollector(cfg.Telemetry.Metrics, nil),
		checker:   health.New(0),
	}

	for _, setup := range []func() error{a.setupUpstream, a.setupAudit, a.setupSessions} {
		if err := setup(); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.setupRoutes()
	return a, nil
}

func (a *app) setupUpstream() error {
	log := a.logger.Logger
	cred, err := upstream.CredentialFromConfig(a.config.Upstream, log)
	if err != nil {
		return fmt.Errorf("failed to load upstream credential: %w", err)
	}
	if token, err := cred.Token(); err == nil && token != "" {
		a.logger.Redactor().AddLiteral(token)
	}
	if fc, ok := cred.(*upstream.FileCredential); ok {
		fc.OnRotate(a.logger.Redactor().AddLiteral)
		a.rotating = fc
	}

	a.client = upstream.NewClient(a.config.Upstream, cred, upstream.WithLogger(log))
	if err := a.client.Ready(); err != nil {
		log.Warn("upstream not ready; chat requests will fail until a credential is provided", "error", err)
	}
	a.checker.RegisterCheck("upstream_credential", func(context.Context) error {
		return a.client.Ready()
	})
	return nil
}

func (a *app) setupAudit() error {
	cfg := a.config.Audit
	if !cfg.Enabled {
		return nil
	}

	sink, err := audit.NewSink(cfg)
	if err != nil {
		return fmt.Errorf("failed to open audit %s backend: %w", cfg.Backend, err)
	}
	a.sink = sink
	a.recorder = audit.NewRecorder(sink, audit.RecorderConfig{
		Backend:      cfg.Backend,
		AsyncBuffer:  cfg.AsyncBuffer,
		WriteTimeout: cfg.WriteTimeout,
	}, a.collector)

	if tailer, ok := sink.(audit.Tailer); ok {
		a.checker.RegisterCheck("audit", func(ctx context.Context) error {
			_, err := tailer.Tail(ctx, 1)
			return err
		})
	}
	if target, ok := sink.(audit.Pruner); ok {
		a.addPruner("audit", target, cfg.Retention)
	}
	return nil
}

func (a *app) setupSessions() error {
	cfg := a.config.Sessions
	if !cfg.Enabled {
		return nil
	}

	store, err := session.NewStore(cfg.Dir, session.WithLogger(a.logger.Logger))
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	a.store = store
	a.checker.RegisterCheck("sessions", store.Check)
	a.addPruner("sessions", store, cfg.Retention)
	return nil
}

func (a *app) addPruner(name string, target retention.Target, cfg config.RetentionConfig) {
	if cfg.Days <= 0 {
		return
	}
	a.pruners = append(a.pruners, retention.NewPruner(name, target, retention.Config{
		RetentionDays: cfg.Days,
		PruneSchedule: cfg.Schedule,
	}, a.collector))
}

func (a *app) setupRoutes() {
	cfg := a.config
	log := a.logger.Logger

	opts := []relay.HandlerOption{
		relay.WithObserver(a.collector),
		relay.WithHandlerLogger(log),
	}
	if a.recorder != nil {
		opts = append(opts, relay.WithAudit(a.recorder))
	}

	a.routes = server.Routes{
		Chat: relay.NewHandler(a.client, relay.HandlerConfig{
			Defaults: relay.Defaults{
				Model:     cfg.Upstream.DefaultModel,
				MaxTokens: cfg.Upstream.DefaultMaxTokens,
			},
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
			MaxFrameSize: cfg.Upstream.MaxFrameBytes,
			CORS:         middleware.CORSHeaders(cfg.Server.CORS),
		}, opts...),
		Health:  a.checker,
		Version: health.VersionHandler(Version, GitCommit, BuildDate),
	}

	exportOpts := export.DefaultOptions()
	exportOpts.Version = Version
	a.routes.Export = export.NewHandler(export.New(exportOpts), a.collector, cfg.Server.MaxBodyBytes, log)

	if a.store != nil {
		a.routes.Sessions = session.NewHandler(a.store,
			session.WithObserver(a.collector),
			session.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
			session.WithHandlerLogger(log),
		)
	}
	if a.recorder != nil {
		a.routes.Feedback = feedback.NewHandler(a.recorder, a.collector, cfg.Server.MaxBodyBytes, log)
		if tailer, ok := a.sink.(audit.Tailer); ok {
			a.routes.Log = audit.NewLogHandler(tailer, cfg.Audit.TailLines, log)
		}
	}
	if cfg.Telemetry.Metrics.Enabled {
		a.routes.Metrics = a.collector.Handler()
		a.routes.MetricsPath = cfg.Telemetry.Metrics.Path
	}
}

// start launches the background work: credential rotation and pruning.
// It returns once everything is scheduled.
func (a *app) start(ctx context.Context) {
	if a.rotating != nil {
		go func() {
			if err := a.rotating.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("credential watcher stopped", "error", err)
			}
		}()
	}
	for _, p := range a.pruners {
		if err := p.Start(ctx); err != nil {
			a.logger.Warn("failed to start retention scheduler", "target", p.Name(), "error", err)
			continue
		}
		if next := p.NextPruning(); next != nil {
			a.logger.Debug("retention scheduler started", "target", p.Name(), "next_pruning", next.Format(time.RFC3339))
		}
	}
}

// Close stops the pruners and flushes the audit trail.
func (a *app) Close() error {
	for _, p := range a.pruners {
		p.Stop()
	}
	var errs []error
	if a.recorder != nil {
		errs = append(errs, a.recorder.Close())
	} else if a.sink != nil {
		errs = append(errs, a.sink.Close())
	}
	return errors.Join(errs...)
}

// applyLevel adjusts the running logger after a configuration reload.
func applyLevel(logger *logging.Logger, cfg *config.Config) {
	if err := logger.SetLevel(cfg.Telemetry.Logging.Level); err != nil {
		logger.Warn("ignoring reloaded log level", "level", cfg.Telemetry.Logging.Level, "error", err)
		return
	}
	logger.Info("configuration reloaded", slog.String("log_level", logger.Level().String()))
}

package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Target deletes entries older than a cutoff. audit.Pruner sinks and
// *session.Store implement it.
type Target interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Observer receives pruning measurements. metrics.Collector implements it.
type Observer interface {
	RecordPruned(target string, n int64)
}

// Config contains configuration for one pruner.
type Config struct {
	// RetentionDays is the number of days to keep entries.
	// 0 means keep entries forever.
	RetentionDays int

	// PruneSchedule is a standard cron expression.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string
}

// Pruner enforces a retention period on one Target.
type Pruner struct {
	name      string
	target    Target
	config    Config
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
	scheduler *Scheduler
}

// NewPruner creates a pruner for target. observer may be nil.
func NewPruner(name string, target Target, cfg Config, observer Observer) *Pruner {
	p := &Pruner{
		name:     name,
		target:   target,
		config:   cfg,
		observer: observer,
		logger:   slog.Default().With("component", "retention", "target", name),
		now:      time.Now,
	}
	p.scheduler = NewScheduler(p)
	return p
}

// Name returns the target name.
func (p *Pruner) Name() string {
	return p.name
}

// Cutoff returns the oldest timestamp that is kept.
func (p *Pruner) Cutoff() time.Time {
	return p.now().AddDate(0, 0, -p.config.RetentionDays)
}

// Prune deletes entries older than the retention period and returns how
// many were removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.RetentionDays <= 0 {
		p.logger.DebugContext(ctx, "retention disabled, nothing pruned")
		return 0, nil
	}

	cutoff := p.Cutoff()
	p.logger.DebugContext(ctx, "pruning by age",
		"cutoff_time", cutoff,
		"retention_days", p.config.RetentionDays,
	)

	deleted, err := p.target.Prune(ctx, cutoff)
	if err != nil {
		return deleted, fmt.Errorf("prune %s: %w", p.name, err)
	}

	if p.observer != nil {
		p.observer.RecordPruned(p.name, deleted)
	}
	if deleted > 0 {
		p.logger.InfoContext(ctx, "pruning completed",
			"deleted_count", deleted,
			"retention_days", p.config.RetentionDays,
		)
	}
	return deleted, nil
}

// Start starts the background schedule.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the background schedule and waits for a running prune.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled prune.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}

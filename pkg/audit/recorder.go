package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Observer is notified of every write attempt. metrics.Collector implements it.
type Observer interface {
	ObserveAuditWrite(backend string, err error, d time.Duration)
}

// RecorderConfig contains configuration for the Recorder.
type RecorderConfig struct {
	// Backend names the sink in logs and metrics.
	Backend string

	// AsyncBuffer is the size of the write queue. Zero makes writes synchronous.
	AsyncBuffer int

	// WriteTimeout bounds enqueueing and each sink write.
	WriteTimeout time.Duration
}

// Recorder writes records to a Sink off the request path. Sink failures are
// logged and never returned to callers of Record.
type Recorder struct {
	sink     Sink
	config   RecorderConfig
	observer Observer
	queue    chan *Record
	done     chan struct{}
	wg       sync.WaitGroup
	logger   *slog.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewRecorder starts a recorder for sink. observer may be nil.
func NewRecorder(sink Sink, cfg RecorderConfig, observer Observer) *Recorder {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Backend == "" {
		cfg.Backend = "unknown"
	}

	r := &Recorder{
		sink:     sink,
		config:   cfg,
		observer: observer,
		done:     make(chan struct{}),
		logger:   slog.Default().With("component", "audit.recorder", "backend", cfg.Backend),
	}

	if cfg.AsyncBuffer > 0 {
		r.queue = make(chan *Record, cfg.AsyncBuffer)
		r.wg.Add(1)
		go r.worker()
	}

	return r
}

// Record stamps rec with an ID and timestamp if missing and hands it to the
// sink. It returns ErrQueueFull or ErrClosed when the record was dropped;
// callers are expected to log and continue.
func (r *Recorder) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}

	if r.queue == nil {
		r.write(&rec)
		return nil
	}

	timer := time.NewTimer(r.config.WriteTimeout)
	defer timer.Stop()

	select {
	case r.queue <- &rec:
		return nil
	case <-timer.C:
		r.logger.Error("audit queue full, dropping record",
			"record_id", rec.ID,
			"request_id", rec.RequestID,
			"capacity", r.config.AsyncBuffer,
		)
		r.observe(ErrQueueFull, 0)
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sink returns the underlying sink.
func (r *Recorder) Sink() Sink {
	return r.sink
}

// Close drains the queue, waits for pending writes, and closes the sink.
func (r *Recorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		close(r.done)
		r.wg.Wait()

		err = r.sink.Close()
		r.logger.Info("audit recorder shut down")
	})
	return err
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.queue:
			r.write(rec)
		case <-r.done:
			for {
				select {
				case rec := <-r.queue:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := r.sink.Write(ctx, rec)
	r.observe(err, time.Since(start))

	if err != nil {
		r.logger.Error("failed to write audit record",
			"record_id", rec.ID,
			"request_id", rec.RequestID,
			"error", err,
		)
		return
	}
	r.logger.Debug("audit record written",
		"record_id", rec.ID,
		"kind", string(rec.Kind),
		"status", rec.StatusCode,
	)
}

func (r *Recorder) observe(err error, d time.Duration) {
	if r.observer != nil {
		r.observer.ObserveAuditWrite(r.config.Backend, err, d)
	}
}

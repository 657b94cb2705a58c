package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aiusage/disclosure/internal/retention"
)

// DefaultWriteTimeout bounds a single detached write.
const DefaultWriteTimeout = 5 * time.Second

// Writer persists one entry.
type Writer interface {
	Insert(ctx context.Context, e Entry) error
}

// Observer is told the outcome of every write attempt.
type Observer interface {
	ObserveAuditWrite(err error)
}

// Recorder writes audit entries on detached goroutines. Record never blocks and
// never reports failure to its caller.
type Recorder struct {
	writer   Writer
	window   retention.Window
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
	idGen    func() string
	observer Observer
	wg       sync.WaitGroup
}

// RecorderOption customises a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithWriteTimeout overrides DefaultWriteTimeout.
func WithWriteTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithObserver reports write outcomes to o.
func WithObserver(o Observer) RecorderOption {
	return func(r *Recorder) { r.observer = o }
}

// NewRecorder constructs a Recorder.
func NewRecorder(writer Writer, window retention.Window, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		writer:  writer,
		window:  window,
		timeout: DefaultWriteTimeout,
		logger:  logger,
		now:     time.Now,
		idGen:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record schedules the entry write and returns immediately. The write outlives
// request cancellation but is bounded by the recorder timeout.
func (r *Recorder) Record(ctx context.Context, actorID, capability string, resourceID *string) {
	if r == nil || r.writer == nil {
		return
	}
	at := r.now().UTC()
	entry := Entry{
		ID:         r.idGen(),
		ActorID:    actorID,
		Capability: capability,
		ResourceID: resourceID,
		AccessedAt: at,
		ExpiresAt:  r.window.AuditExpiry(at),
	}
	detached := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go r.write(detached, entry)
}

func (r *Recorder) write(ctx context.Context, entry Entry) {
	defer r.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("audit write panicked",
				slog.String("actor_id", entry.ActorID),
				slog.String("capability", entry.Capability),
				slog.Any("panic", rec))
			r.observe(fmt.Errorf("audit: write panicked: %v", rec))
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	err := r.writer.Insert(ctx, entry)
	if err != nil {
		r.logger.Warn("audit write failed",
			slog.String("actor_id", entry.ActorID),
			slog.String("capability", entry.Capability),
			slog.Any("error", err))
	}
	r.observe(err)
}

func (r *Recorder) observe(err error) {
	if r.observer != nil {
		r.observer.ObserveAuditWrite(err)
	}
}

// Wait blocks until every scheduled write has finished. Used on shutdown.
func (r *Recorder) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

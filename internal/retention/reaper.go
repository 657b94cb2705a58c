package retention

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is the period between reaper runs.
const DefaultInterval = 24 * time.Hour

// Table names reported by the reaper.
const (
	TableDeclarations = "declarations"
	TableAccessLog    = "access_log"
)

// Purger deletes rows whose expiry is strictly before now and reports how many
// it removed.
type Purger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Observer receives per-table deletion counts.
type Observer interface {
	ObserveDeleted(table string, count int64)
}

// Invalidator is notified when a run removed rows that may be cached.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Report summarises one run.
type Report struct {
	RanAt               time.Time
	DeclarationsDeleted int64
	AuditDeleted        int64
	DeclarationsErr     error
	AuditErr            error
}

// Failed reports whether either delete failed.
func (r Report) Failed() bool {
	return r.DeclarationsErr != nil || r.AuditErr != nil
}

// Reaper deletes expired declarations and audit entries. Deletion is
// unconditional: nothing exempts a row once its expiry has passed.
type Reaper struct {
	declarations Purger
	audit        Purger
	observer     Observer
	invalidator  Invalidator
	logger       *slog.Logger
	interval     time.Duration
	now          func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option customises a Reaper.
type Option func(*Reaper)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(r *Reaper) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reaper) {
		if now != nil {
			r.now = now
		}
	}
}

// WithObserver reports deletion counts to o.
func WithObserver(o Observer) Option {
	return func(r *Reaper) { r.observer = o }
}

// WithInvalidator bumps inv after a run that deleted declarations.
func WithInvalidator(inv Invalidator) Option {
	return func(r *Reaper) { r.invalidator = inv }
}

// NewReaper constructs a Reaper.
func NewReaper(declarations, audit Purger, logger *slog.Logger, opts ...Option) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reaper{
		declarations: declarations,
		audit:        audit,
		logger:       logger,
		interval:     DefaultInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce performs a single sweep. Failures are logged and reported, never
// returned or propagated as panics.
func (r *Reaper) RunOnce(ctx context.Context) (report Report) {
	report.RanAt = r.now().UTC()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("retention run panicked", slog.Any("panic", rec), slog.Time("ran_at", report.RanAt))
		}
	}()

	report.DeclarationsDeleted, report.DeclarationsErr = r.purge(ctx, TableDeclarations, r.declarations, report.RanAt)
	report.AuditDeleted, report.AuditErr = r.purge(ctx, TableAccessLog, r.audit, report.RanAt)

	if report.DeclarationsDeleted > 0 && r.invalidator != nil {
		if err := r.invalidator.Bump(ctx); err != nil {
			r.logger.Warn("retention cache bump", slog.Any("error", err))
		}
	}

	r.logger.Info("retention run complete",
		slog.Int64("declarations_deleted", report.DeclarationsDeleted),
		slog.Int64("audit_deleted", report.AuditDeleted),
		slog.Time("ran_at", report.RanAt))
	return report
}

func (r *Reaper) purge(ctx context.Context, table string, p Purger, now time.Time) (int64, error) {
	if p == nil {
		return 0, nil
	}
	n, err := p.DeleteExpired(ctx, now)
	if err != nil {
		r.logger.Error("retention delete failed", slog.String("table", table), slog.Any("error", err))
		return 0, err
	}
	if r.observer != nil {
		r.observer.ObserveDeleted(table, n)
	}
	return n, nil
}

// Start runs a sweep immediately and then once per interval on a single
// goroutine until Stop is called or ctx ends. Calling Start twice is a no-op.
func (r *Reaper) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)
}

func (r *Reaper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	r.RunOnce(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// Stop ends the loop and waits for an in-flight run to finish.
func (r *Reaper) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

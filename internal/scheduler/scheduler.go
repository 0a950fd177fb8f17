package scheduler

import (
	"context"
	"log/slog"
	"time"

	"notion_sync/internal/domain"
	"notion_sync/internal/service"
)

// Syncer defines the interface for sync operations.
type Syncer interface {
	Sync(ctx context.Context, opts service.Options) (*domain.SyncReport, error)
}

// ReportFunc receives the outcome of every scheduled run.
type ReportFunc func(report *domain.SyncReport, err error)

// Scheduler repeats a sync on a fixed interval until its context ends.
// Runs never overlap: the next tick is only taken after the current run returns.
type Scheduler struct {
	syncer   Syncer
	opts     service.Options
	interval time.Duration
	timeout  time.Duration
	onReport ReportFunc
	logger   *slog.Logger
}

type Option func(*Scheduler)

// WithTimeout bounds each run. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

func WithReportFunc(fn ReportFunc) Option {
	return func(s *Scheduler) { s.onReport = fn }
}

func NewScheduler(syncer Syncer, opts service.Options, interval time.Duration, logger *slog.Logger, options ...Option) *Scheduler {
	s := &Scheduler{
		syncer:   syncer,
		opts:     opts,
		interval: interval,
		timeout:  10 * time.Minute,
		logger:   logger.With("component", "scheduler"),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Start runs once immediately, then on every tick. It returns ctx.Err() on shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runSync(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runSync(ctx)
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) {
	syncCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		syncCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	report, err := s.syncer.Sync(syncCtx, s.opts)
	if err != nil {
		s.logger.Error("sync failed", "error", err)
	}
	if s.onReport != nil {
		s.onReport(report, err)
	}
}

// Package syncer drains pending leads into the CRM, one lead per tick.
package syncer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/NonStopMan/vamo-heatos/internal/crm"
	"github.com/NonStopMan/vamo-heatos/internal/metrics"
	"github.com/NonStopMan/vamo-heatos/internal/model"
	"github.com/NonStopMan/vamo-heatos/internal/resilience"
	"github.com/NonStopMan/vamo-heatos/internal/store"
)

// MaxRetries is the number of failed attempts after which a lead is failed.
const MaxRetries = 5

// Outcome describes what a tick did.
type Outcome string

const (
	OutcomeSkipped Outcome = "skipped" // another tick held the guard or lock
	OutcomeIdle    Outcome = "idle"    // no pending lead
	OutcomeSynced  Outcome = "synced"
	OutcomeRetry   Outcome = "retry"  // attempt failed, lead stays pending
	OutcomeFailed  Outcome = "failed" // attempt failed, lead is now terminal
	OutcomeError   Outcome = "error"  // store failure, nothing recorded
)

// Config controls the tick loop.
type Config struct {
	IntervalSecs int  `yaml:"interval_secs" mapstructure:"interval_secs"`
	RunOnStart   bool `yaml:"run_on_start" mapstructure:"run_on_start"`
}

// Interval returns the tick interval, defaulting to one minute.
func (c Config) Interval() time.Duration {
	if c.IntervalSecs <= 0 {
		return time.Minute
	}
	return time.Duration(c.IntervalSecs) * time.Second
}

// Locker provides cross-process exclusion of ticks.
type Locker interface {
	TryLock(ctx context.Context) (release func(), acquired bool, err error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocker makes every tick also hold l.
func WithLocker(l Locker) Option {
	return func(s *Scheduler) { s.locker = l }
}

// WithMetrics records tick outcomes and forward durations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// Scheduler forwards the oldest pending lead to the CRM on each tick. At most
// one tick runs at a time per Scheduler.
type Scheduler struct {
	store   store.Store
	adapter crm.Adapter
	cfg     Config
	locker  Locker
	metrics *metrics.Metrics
	log     *zap.Logger

	running atomic.Bool
}

// New creates a Scheduler.
func New(st store.Store, adapter crm.Adapter, cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:   st,
		adapter: adapter,
		cfg:     cfg,
		log:     zap.L().With(zap.String("component", "syncer")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tick attempts to forward one pending lead. A concurrent call returns
// OutcomeSkipped without touching the store or the CRM. CRM failures are
// recorded on the lead and are not returned; store failures are.
func (s *Scheduler) Tick(ctx context.Context) (outcome Outcome, err error) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.SyncTick(string(OutcomeSkipped))
		return OutcomeSkipped, nil
	}
	defer s.running.Store(false)
	defer func() { s.metrics.SyncTick(string(outcome)) }()

	if s.locker != nil {
		release, acquired, lerr := s.locker.TryLock(ctx)
		if lerr != nil {
			return OutcomeSkipped, eris.Wrap(lerr, "syncer: acquire lock")
		}
		if !acquired {
			s.log.Debug("tick lock held elsewhere")
			return OutcomeSkipped, nil
		}
		defer release()
	}

	lead, err := s.store.FindNextPending(ctx, MaxRetries)
	if err != nil {
		return OutcomeError, eris.Wrap(err, "syncer: find next pending")
	}
	if lead == nil {
		return OutcomeIdle, nil
	}

	return s.attempt(ctx, lead)
}

func (s *Scheduler) attempt(ctx context.Context, lead *model.Lead) (Outcome, error) {
	log := s.log.With(zap.String("lead_id", lead.ID), zap.Int("retries", lead.CRMRetries))

	start := time.Now()
	forwardErr := s.forward(ctx, lead)
	s.metrics.ObserveForward(time.Since(start))

	if forwardErr == nil {
		if err := s.store.MarkSynced(ctx, lead.ID); err != nil {
			return OutcomeError, eris.Wrapf(err, "syncer: mark synced %s", lead.ID)
		}
		log.Info("lead synced to crm")
		return OutcomeSynced, nil
	}

	// Shutdown is not an attempt.
	if ctx.Err() != nil {
		return OutcomeError, eris.Wrapf(ctx.Err(), "syncer: forward %s interrupted", lead.ID)
	}

	msg := crm.NormalizeError(forwardErr.Error())
	next := lead.CRMRetries + 1
	status := model.CRMStatusPending
	outcome := OutcomeRetry
	if next >= MaxRetries {
		status = model.CRMStatusFailed
		outcome = OutcomeFailed
	}

	if err := s.store.MarkFailed(ctx, lead.ID, next, msg, status); err != nil {
		return OutcomeError, eris.Wrapf(err, "syncer: mark failed %s", lead.ID)
	}

	log.Warn("crm forward failed",
		zap.String("error", msg),
		zap.String("kind", resilience.Kind(forwardErr)),
		zap.Int("next_retries", next),
		zap.String("status", string(status)),
	)
	return outcome, nil
}

func (s *Scheduler) forward(ctx context.Context, lead *model.Lead) error {
	payload, err := lead.DecodePayload()
	if err != nil {
		return eris.Wrap(err, "stored payload is not valid JSON")
	}
	return s.adapter.ForwardLead(ctx, payload)
}

// Run ticks every configured interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.cfg.Interval()
	s.log.Info("starting crm sync scheduler",
		zap.Duration("interval", interval),
		zap.Int("max_retries", MaxRetries),
		zap.Bool("distributed_lock", s.locker != nil),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if s.cfg.RunOnStart {
		s.runTick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("crm sync scheduler stopped")
			return
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("syncer: tick panicked", zap.Any("panic", r))
		}
	}()

	outcome, err := s.Tick(ctx)
	if err != nil {
		s.log.Error("syncer: tick failed", zap.String("outcome", string(outcome)), zap.Error(err))
		return
	}
	if outcome != OutcomeIdle && outcome != OutcomeSkipped {
		s.refreshCounts(ctx)
	}
}

func (s *Scheduler) refreshCounts(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		s.log.Debug("syncer: count leads", zap.Error(err))
		return
	}
	labels := make(map[string]int, len(counts))
	for status, n := range counts {
		labels[string(status)] = n
	}
	s.metrics.SetLeadCounts(labels)
}

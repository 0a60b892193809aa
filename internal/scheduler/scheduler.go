// Package scheduler drives periodic subscription checks with bounded
// concurrency and starvation-free fair selection (spec.md §4.1).
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sunerpy/akari/models"
)

// SubscriptionLister is the narrow persistence-gateway surface needed for
// fair selection. Satisfied by *models.AnimeDB.
type SubscriptionLister interface {
	ListEnabledForPoll(limit int) ([]models.Subscription, error)
	GetSubscriptionByID(id uint) (*models.Subscription, error)
	UpdateCheckTimestamps(id uint, checkedAt time.Time, downloadAt *time.Time, incrementCount bool) error
}

// CheckFunc performs one subscription's fetch→parse→filter→submit
// pipeline. Returning an error only logs; it never aborts the batch
// (spec §4.1 "Failure semantics").
type CheckFunc func(ctx context.Context, sub models.Subscription) (downloaded bool, err error)

// Options configures a Scheduler; zero values fall back to spec defaults.
type Options struct {
	StartupDelay time.Duration // default 30s
	Interval     time.Duration // default 30min
	MaxPerPoll   int           // default 50
	PoolSize     int           // default 3
}

func (o Options) withDefaults() Options {
	if o.StartupDelay <= 0 {
		o.StartupDelay = 30 * time.Second
	}
	if o.Interval <= 0 {
		o.Interval = 30 * time.Minute
	}
	if o.MaxPerPoll <= 0 {
		o.MaxPerPoll = 50
	}
	if o.PoolSize <= 0 {
		o.PoolSize = 3
	}
	return o
}

// Scheduler runs one long-lived tick loop plus an on-demand kick channel,
// both bounded by the same worker pool (spec §4.1, §5 "one long-running
// scheduler loop ... a bounded worker pool for subscription checks").
type Scheduler struct {
	opts   Options
	lister SubscriptionLister
	check  CheckFunc
	logger *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	kickCh  chan uint
	running bool
}

// New creates a Scheduler. logger may be nil (a no-op logger is used).
func New(lister SubscriptionLister, check CheckFunc, opts Options, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		opts:   opts.withDefaults(),
		lister: lister,
		check:  check,
		logger: logger,
		kickCh: make(chan uint, 16),
	}
}

// Start launches the tick loop after the configured startup delay. Start
// is idempotent — calling it twice while already running is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop signals graceful shutdown and waits for the in-flight batch to
// finish (spec §4.1 "returns when the in-flight batch completes").
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// KickSubscription enqueues an immediate out-of-band check for one
// subscription, bypassing the interval (spec §4.1 contract). It's a
// best-effort send — if the kick queue is full the request is dropped
// rather than blocking the caller.
func (s *Scheduler) KickSubscription(id uint) bool {
	select {
	case s.kickCh <- id:
		return true
	default:
		return false
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	// Kicks are served during the startup delay too; only ticks wait for it.
	startup := time.NewTimer(s.opts.StartupDelay)
	defer startup.Stop()
	for waiting := true; waiting; {
		select {
		case <-ctx.Done():
			return
		case <-startup.C:
			waiting = false
		case id := <-s.kickCh:
			s.runOne(ctx, id)
		}
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.runTick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runTick(ctx)
		case id := <-s.kickCh:
			s.runOne(ctx, id)
		}
	}
}

// runTick performs one full fair-selection batch (spec §4.1 algorithm
// steps 1-4), bounded by PoolSize concurrent checks.
func (s *Scheduler) runTick(ctx context.Context) {
	subs, err := s.lister.ListEnabledForPoll(s.opts.MaxPerPoll)
	if err != nil {
		s.logger.Error("listing subscriptions for poll failed", zap.Error(err))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.PoolSize)

	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			s.runCheck(gctx, sub)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) runOne(ctx context.Context, id uint) {
	sub, err := s.lister.GetSubscriptionByID(id)
	if err != nil {
		s.logger.Error("loading kicked subscription failed", zap.Uint("subscription_id", id), zap.Error(err))
		return
	}
	if sub == nil {
		s.logger.Warn("kicked subscription not found", zap.Uint("subscription_id", id))
		return
	}
	s.runCheck(ctx, *sub)
}

// runCheck runs one subscription's check and always updates
// last_checked_at afterward, regardless of outcome (spec §4.1 step 4).
// A task observing cancellation discards partial results instead of
// updating timestamps, since Stop() means the batch itself is being
// abandoned (spec §5 cancellation rules).
func (s *Scheduler) runCheck(ctx context.Context, sub models.Subscription) {
	downloaded, err := s.check(ctx, sub)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.logger.Error("subscription check failed", zap.Uint("subscription_id", sub.ID), zap.Error(err))
	}

	now := time.Now()
	var downloadAt *time.Time
	if downloaded {
		downloadAt = &now
	}
	if updErr := s.lister.UpdateCheckTimestamps(sub.ID, now, downloadAt, downloaded); updErr != nil {
		s.logger.Error("updating check timestamps failed", zap.Uint("subscription_id", sub.ID), zap.Error(updErr))
	}
}

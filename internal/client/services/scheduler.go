package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fieldops/techsync/internal/common"
	"github.com/fieldops/techsync/internal/logging"
)

// Mode is the scheduler's view of connectivity.
type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Checker probes server reachability. Injected rather than read from some
// ambient global so tests can flip connectivity at will.
type Checker interface {
	Online(ctx context.Context) bool
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context) bool

func (f CheckerFunc) Online(ctx context.Context) bool { return f(ctx) }

// Runner is the slice of the engine the scheduler drives.
type Runner interface {
	RunCycle(ctx context.Context) (*CycleResult, error)
}

// SchedulerOptions tune trigger cadence. Zero values fall back to defaults.
type SchedulerOptions struct {
	ProbeInterval time.Duration // connectivity probe cadence
	SyncInterval  time.Duration // periodic backstop while online
	ProbeTimeout  time.Duration // per-probe bound
	RetryDelay    time.Duration // pause before re-arming a refused trigger
}

func (o *SchedulerOptions) withDefaults() {
	if o.ProbeInterval <= 0 {
		o.ProbeInterval = 15 * time.Second
	}
	if o.SyncInterval <= 0 {
		o.SyncInterval = 3 * time.Minute
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 3 * time.Second
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
}

// Scheduler decides when sync cycles run: on the offline-to-online
// transition, on explicit kicks (pull-to-refresh), and on a coarse periodic
// timer while online. Cycles run strictly one at a time; kicks arriving
// mid-cycle collapse into a single follow-up cycle.
type Scheduler struct {
	runner  Runner
	checker Checker
	log     logging.Logger
	opts    SchedulerOptions

	kick chan struct{} // capacity 1: pending triggers coalesce here

	mu       sync.Mutex
	mode     Mode
	onResult []func(*CycleResult)
}

// NewScheduler builds a scheduler; call Run to start it.
func NewScheduler(runner Runner, checker Checker, log logging.Logger, opts SchedulerOptions) *Scheduler {
	opts.withDefaults()
	return &Scheduler{
		runner:  runner,
		checker: checker,
		log:     log.With("component", "scheduler"),
		opts:    opts,
		kick:    make(chan struct{}, 1),
		mode:    ModeOffline,
	}
}

// Kick requests a sync cycle. Safe from any goroutine; while a cycle is in
// flight at most one follow-up is queued no matter how many kicks arrive.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Mode reports the current connectivity mode.
func (s *Scheduler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// OnResult registers a callback invoked after every completed cycle.
func (s *Scheduler) OnResult(fn func(*CycleResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResult = append(s.onResult, fn)
}

// Run drives the trigger loop until ctx is cancelled. Cancellation between
// cycles is always safe; the engine itself only commits whole batches.
func (s *Scheduler) Run(ctx context.Context) {
	probe := time.NewTicker(s.opts.ProbeInterval)
	defer probe.Stop()
	backstop := time.NewTicker(s.opts.SyncInterval)
	defer backstop.Stop()

	s.probe(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-probe.C:
			s.probe(ctx)
		case <-backstop.C:
			if s.Mode() == ModeOnline {
				s.Kick()
			}
		case <-s.kick:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, s.opts.ProbeTimeout)
	online := s.checker.Online(probeCtx)
	cancel()

	s.mu.Lock()
	prev := s.mode
	if online {
		s.mode = ModeOnline
	} else {
		s.mode = ModeOffline
	}
	now := s.mode
	s.mu.Unlock()

	if prev != now {
		s.log.Info(ctx, "connectivity changed", "mode", string(now))
		if now == ModeOnline {
			// Reconnect: drain whatever accumulated while offline.
			s.Kick()
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	res, err := s.runner.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, common.ErrSyncInProgress) {
			// Another cycle is mid-flight; re-arm the trigger after a pause
			// so the loop does not spin on the kick channel.
			time.AfterFunc(s.opts.RetryDelay, s.Kick)
			return
		}
		s.log.Error(ctx, "sync cycle failed", "error", err)
		return
	}

	s.mu.Lock()
	callbacks := append([]func(*CycleResult){}, s.onResult...)
	s.mu.Unlock()
	for _, fn := range callbacks {
		fn(res)
	}
}

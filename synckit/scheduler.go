package synckit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	syncErrors "github.com/c0deZ3R0/quotesync/errors"
)

// State is the phase of the current sync attempt.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateMerging
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateMerging:
		return "merging"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Scheduler runs the Engine on a timer or on demand. A single-slot semaphore
// guards every entry point: an attempt made while a sync is in flight is
// dropped, not queued.
type Scheduler struct {
	engine   *Engine
	logger   *slog.Logger
	metrics  MetricsCollector
	notifier Notifier
	onState  func(State)

	guard *semaphore.Weighted
	state atomic.Int32

	mu       sync.Mutex
	interval time.Duration
	trigger  *trigger
	closed   bool
}

// trigger is one repeating timer goroutine.
type trigger struct {
	cancel context.CancelFunc
	done   chan struct{}
	// syncing is set while the goroutine runs a sync, so notifiers and state
	// hooks on that goroutine can stop it without waiting on themselves.
	syncing atomic.Bool
}

func newScheduler(engine *Engine, logger *slog.Logger, metrics MetricsCollector, notifier Notifier, onState func(State)) *Scheduler {
	if onState == nil {
		onState = func(State) {}
	}
	return &Scheduler{
		engine:   engine,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
		onState:  onState,
		guard:    semaphore.NewWeighted(1),
	}
}

// State reports the phase of the sync currently in flight.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
	s.onState(st)
}

// Running reports whether the repeating trigger is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trigger != nil
}

// Interval returns the interval of the active trigger, or zero.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trigger == nil {
		return 0
	}
	return s.interval
}

// Start begins a repeating sync every interval. A running trigger is stopped
// first, so there is never more than one timer.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return syncErrors.E(syncErrors.OpSchedule, syncErrors.Component("scheduler"), syncErrors.KindInvalid,
			fmt.Errorf("sync interval must be positive, got %s", interval))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return syncErrors.E(syncErrors.OpSchedule, syncErrors.Component("scheduler"), syncErrors.KindClosed,
			fmt.Errorf("scheduler is closed"))
	}
	previous := s.detachLocked()

	ctx, cancel := context.WithCancel(context.Background())
	t := &trigger{cancel: cancel, done: make(chan struct{})}
	s.interval = interval
	s.trigger = t
	go s.loop(ctx, interval, t)
	s.mu.Unlock()

	previous.wait()
	s.logger.Info("Auto sync started", "interval", interval)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, t *trigger) {
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		close(t.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.syncing.Store(true)
			_, err := s.run(ctx, "scheduled")
			t.syncing.Store(false)
			if err != nil {
				if syncErrors.IsKind(err, syncErrors.KindBusy) {
					s.logger.Debug("Scheduled sync skipped, previous sync still running")
					continue
				}
				s.logger.Debug("Scheduled sync failed", "error", err)
			}
		}
	}
}

// Stop cancels the repeating trigger and waits for its goroutine to exit.
// When called while that goroutine runs a scheduled sync, for example from a
// Notifier, Stop returns at once and the goroutine exits after the sync.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	t := s.detachLocked()
	s.mu.Unlock()
	if t != nil {
		t.wait()
		s.logger.Info("Auto sync stopped")
	}
}

// detachLocked cancels the active trigger and clears it. The caller waits on
// the returned trigger after releasing s.mu.
func (s *Scheduler) detachLocked() *trigger {
	t := s.trigger
	if t == nil {
		return nil
	}
	t.cancel()
	s.trigger = nil
	s.interval = 0
	return t
}

func (t *trigger) wait() {
	if t == nil || t.syncing.Load() {
		return
	}
	<-t.done
}

// TriggerNow runs a sync immediately. If one is already in flight the call
// returns a KindBusy error without touching any state.
func (s *Scheduler) TriggerNow(ctx context.Context) (*SyncResult, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, syncErrors.E(syncErrors.OpSync, syncErrors.Component("scheduler"), syncErrors.KindClosed,
			fmt.Errorf("scheduler is closed"))
	}

	res, err := s.run(ctx, "manual")
	if syncErrors.IsKind(err, syncErrors.KindBusy) {
		s.notifier.Notify(ctx, Notification{
			Kind:    NotifySyncSkipped,
			Message: "Sync already in progress",
			Error:   err.Error(),
		})
	}
	return res, err
}

func (s *Scheduler) run(ctx context.Context, trigger string) (*SyncResult, error) {
	if !s.guard.TryAcquire(1) {
		s.metrics.RecordSkipped(trigger)
		return nil, syncErrors.E(syncErrors.OpSync, syncErrors.Component("scheduler"), syncErrors.KindBusy,
			fmt.Errorf("sync already in progress"))
	}
	defer s.guard.Release(1)
	defer s.setState(StateIdle)

	return s.engine.synchronize(ctx, s.setState)
}

// Close stops the trigger and rejects further syncs.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	t := s.detachLocked()
	s.closed = true
	s.mu.Unlock()

	t.wait()
	return nil
}

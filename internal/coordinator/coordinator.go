package coordinator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"golang.org/x/sync/singleflight"
)

// Defaults applied by New and Start.
const (
	DefaultInterval     = 300 * time.Second
	DefaultCycleTimeout = 60 * time.Second
)

// singleflight key; there is only ever one kind of cycle.
const cycleKey = "refresh"

// Fetcher performs the two vendor calls of a cycle.
type Fetcher interface {
	BikesInfo(ctx context.Context) (any, error)
	LastKnownStates(ctx context.Context) (any, error)
}

// Logger defines the logging interface used by the coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder receives coordinator metrics. *metrics.Metrics implements it.
type Recorder interface {
	ObserveCycle(err error, elapsed time.Duration, bikes int)
	IncCoalesced()
	SetState(state string)
	SetSubscribers(n int)
}

type noopRecorder struct{}

func (noopRecorder) ObserveCycle(error, time.Duration, int) {}
func (noopRecorder) IncCoalesced()                          {}
func (noopRecorder) SetState(string)                        {}
func (noopRecorder) SetSubscribers(int)                     {}

// Options configures a Coordinator.
type Options struct {
	Fetcher Fetcher
	Logger  Logger
	Metrics Recorder

	// CycleTimeout bounds one cycle (both fetches). Defaults to
	// DefaultCycleTimeout.
	CycleTimeout time.Duration

	// Jitter, when positive, delays each scheduled cycle by a random
	// duration in [0, Jitter).
	Jitter time.Duration
}

// Coordinator owns the refresh loop and the current Snapshot.
//
// At most one cycle runs at a time. A refresh requested while a cycle is in
// flight joins that cycle and receives its result. Readers never block on
// a cycle: CurrentSnapshot returns the last successful snapshot.
//
// Thread Safety: All methods are safe for concurrent use.
type Coordinator struct {
	fetcher      Fetcher
	logger       Logger
	recorder     Recorder
	cycleTimeout time.Duration
	jitter       time.Duration

	machine  *fsm.FSM
	snapshot atomic.Pointer[Snapshot]
	flight   singleflight.Group
	inFlight atomic.Bool
	// notifying holds the snapshot being delivered to listeners; nil otherwise.
	notifying atomic.Pointer[Snapshot]

	subMu sync.RWMutex
	subs  map[uuid.UUID]Listener

	statusMu    sync.RWMutex
	lastErr     error
	lastSuccess time.Time

	// Lifecycle
	mu       sync.Mutex
	started  bool
	stopped  bool
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Coordinator in the idle state. Fetcher is required.
func New(opts Options) (*Coordinator, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("coordinator: fetcher is required")
	}

	c := &Coordinator{
		fetcher:      opts.Fetcher,
		logger:       noopLogger{},
		recorder:     noopRecorder{},
		cycleTimeout: opts.CycleTimeout,
		jitter:       opts.Jitter,
		subs:         make(map[uuid.UUID]Listener),
		done:         make(chan struct{}),
	}
	if opts.Logger != nil {
		c.logger = opts.Logger
	}
	if opts.Metrics != nil {
		c.recorder = opts.Metrics
	}
	if c.cycleTimeout <= 0 {
		c.cycleTimeout = DefaultCycleTimeout
	}

	c.machine = newStateMachine(func(from, to string) {
		c.recorder.SetState(to)
		c.logger.Debug("coordinator state changed", "from", from, "to", to)
	})

	return c, nil
}

// Start begins periodic refreshing every interval. It does not fetch
// immediately. A non-positive interval means DefaultInterval.
func (c *Coordinator) Start(interval time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ErrStopped
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	if interval <= 0 {
		interval = DefaultInterval
	}

	c.wg.Add(1)
	go c.loop(interval)

	c.logger.Info("refresh loop started", "interval", interval.String(), "jitter", c.jitter.String())
	return nil
}

// Stop ends the refresh loop and waits for it to exit. A cycle already in
// flight is allowed to finish. Stop is idempotent and safe to call before
// Start.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		close(c.done)
		c.mu.Unlock()

		c.wg.Wait()
		c.logger.Info("refresh loop stopped")
	})
}

func (c *Coordinator) loop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if !c.waitJitter() {
				return
			}
			// Failures are recorded and logged by the cycle; the next tick retries.
			_, _ = c.refresh(context.Background())
		}
	}
}

// waitJitter sleeps for a random fraction of the configured jitter.
// It returns false if Stop was called meanwhile.
func (c *Coordinator) waitJitter() bool {
	if c.jitter <= 0 {
		return true
	}
	timer := time.NewTimer(rand.N(c.jitter))
	defer timer.Stop()

	select {
	case <-c.done:
		return false
	case <-timer.C:
		return true
	}
}

// RefreshNow runs a cycle, or joins the one in flight, and waits for it.
//
// On failure the returned error wraps ErrRefreshFailed and the underlying
// cause, so callers can classify it with errors.As. If ctx ends first the
// caller stops waiting but the cycle itself carries on.
func (c *Coordinator) RefreshNow(ctx context.Context) (*Snapshot, error) {
	return c.refresh(ctx)
}

func (c *Coordinator) refresh(ctx context.Context) (*Snapshot, error) {
	// A refresh requested while listeners run belongs to the cycle that is
	// notifying them. Joining the flight from a listener would wait on itself.
	if snap := c.notifying.Load(); snap != nil {
		c.recorder.IncCoalesced()
		return snap, nil
	}
	if c.inFlight.Load() {
		c.recorder.IncCoalesced()
	}

	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(cycleKey, func() (any, error) {
		c.inFlight.Store(true)
		defer c.inFlight.Store(false)
		return c.runCycle(detached)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		snap, _ := res.Val.(*Snapshot)
		return snap, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, ctx.Err())
	}
}

// runCycle fetches both lists, merges them and publishes the result. It is
// only ever executed by one goroutine at a time.
func (c *Coordinator) runCycle(parent context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(parent, c.cycleTimeout)
	defer cancel()

	start := time.Now()
	c.transition(eventRefresh)

	rawBikes, err := c.fetcher.BikesInfo(ctx)
	if err != nil {
		return nil, c.failCycle(fmt.Errorf("%w: fetching bikes: %w", ErrRefreshFailed, err), start)
	}

	rawStates, err := c.fetcher.LastKnownStates(ctx)
	if err != nil {
		return nil, c.failCycle(fmt.Errorf("%w: fetching last known states: %w", ErrRefreshFailed, err), start)
	}

	snap := Merge(rawBikes, rawStates, time.Now())
	c.snapshot.Store(snap)

	c.statusMu.Lock()
	c.lastErr = nil
	c.lastSuccess = snap.FetchedAt
	c.statusMu.Unlock()

	elapsed := time.Since(start)
	c.recorder.ObserveCycle(nil, elapsed, snap.Len())
	c.transition(eventSucceed)

	c.logger.Debug("refresh complete",
		"bikes", snap.Len(),
		"states", len(snap.StatesByBikeID),
		"duration", elapsed.String(),
	)

	c.notifying.Store(snap)
	c.notify(snap)
	c.notifying.Store(nil)
	return snap, nil
}

func (c *Coordinator) failCycle(err error, start time.Time) error {
	c.statusMu.Lock()
	c.lastErr = err
	c.statusMu.Unlock()

	c.recorder.ObserveCycle(err, time.Since(start), 0)
	c.transition(eventFail)

	c.logger.Warn("refresh failed, keeping previous snapshot",
		"error", err,
		"has_snapshot", c.snapshot.Load() != nil,
	)
	return err
}

func (c *Coordinator) transition(event string) {
	if err := c.machine.Event(context.Background(), event); err != nil {
		c.logger.Error("invalid coordinator transition", "event", event, "state", c.machine.Current(), "error", err)
	}
}

// CurrentSnapshot returns the last successful snapshot, or nil if no cycle
// has succeeded yet. It never blocks on a cycle.
func (c *Coordinator) CurrentSnapshot() *Snapshot {
	return c.snapshot.Load()
}

// State returns the current lifecycle state name.
func (c *Coordinator) State() string {
	return c.machine.Current()
}

// LastError returns the error of the most recent cycle, nil after a success.
func (c *Coordinator) LastError() error {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.lastErr
}

// LastSuccess returns when the current snapshot was fetched, zero if never.
func (c *Coordinator) LastSuccess() time.Time {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.lastSuccess
}

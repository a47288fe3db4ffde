package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/ponbike-core/internal/coordinator"
	"github.com/nerrad567/ponbike-core/internal/device"
	"github.com/nerrad567/ponbike-core/internal/entity"
)

// Coordinator is the part of *coordinator.Coordinator an Entry drives.
type Coordinator interface {
	RefreshNow(ctx context.Context) (*coordinator.Snapshot, error)
	Start(interval time.Duration) error
	Stop()
	CurrentSnapshot() *coordinator.Snapshot
}

// DeviceRegistry records bike metadata. *device.Registry implements it.
type DeviceRegistry interface {
	UpsertDevice(ctx context.Context, d *device.Device) (bool, error)
}

// Logger defines the logging interface used by an Entry.
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

// Options configures an Entry.
type Options struct {
	EntryID     string
	Coordinator Coordinator
	Registry    DeviceRegistry
	Interval    time.Duration
	Logger      Logger
}

// Entry is one configured account: its coordinator plus the bookkeeping
// done on setup and unload.
type Entry struct {
	id       string
	coord    Coordinator
	registry DeviceRegistry
	interval time.Duration
	logger   Logger
}

// NewEntry creates an Entry. EntryID and Coordinator are required; the
// registry is optional.
func NewEntry(opts Options) (*Entry, error) {
	if opts.EntryID == "" {
		return nil, fmt.Errorf("integration: entry id is required")
	}
	if opts.Coordinator == nil {
		return nil, fmt.Errorf("integration: coordinator is required")
	}

	e := &Entry{
		id:       opts.EntryID,
		coord:    opts.Coordinator,
		registry: opts.Registry,
		interval: opts.Interval,
		logger:   noopLogger{},
	}
	if opts.Logger != nil {
		e.logger = opts.Logger
	}
	return e, nil
}

// ID returns the entry id.
func (e *Entry) ID() string {
	return e.id
}

// Setup runs one refresh to prove the credentials and routes work, records
// every bike in the registry and starts the periodic loop.
//
// A failed refresh is classified and returned as ErrReauthRequired,
// ErrSetupFailed or ErrNotReady wrapping the cause. The loop is not started
// in that case.
func (e *Entry) Setup(ctx context.Context) (Outcome, error) {
	snap, err := e.coord.RefreshNow(ctx)
	outcome := Classify(err)
	if outcome != OutcomeProceed {
		switch outcome {
		case OutcomeReauth:
			e.logger.Warn("vendor api unauthorized, re-authorization required", "entry_id", e.id, "error", err)
		case OutcomeFailSetup:
			e.logger.Error("vendor api endpoint not found, check vendor.base_url", "entry_id", e.id, "error", err)
		default:
			e.logger.Error("vendor api not ready", "entry_id", e.id, "error", err)
		}
		return outcome, fmt.Errorf("%w: %w", outcome.Err(), err)
	}

	e.logger.Info("vendor api ok", "entry_id", e.id, "bikes", snap.Len())
	e.syncRegistry(ctx, snap)

	if err := e.coord.Start(e.interval); err != nil {
		return OutcomeNotReady, fmt.Errorf("%w: starting refresh loop: %w", ErrNotReady, err)
	}
	return OutcomeProceed, nil
}

// syncRegistry records each bike's metadata. Registry failures are logged;
// they never block setup.
func (e *Entry) syncRegistry(ctx context.Context, snap *coordinator.Snapshot) {
	if e.registry == nil || snap == nil {
		return
	}

	for _, b := range snap.Bikes {
		if b.ID == "" {
			continue
		}
		d := device.FromBike(e.id, b)
		if _, err := e.registry.UpsertDevice(ctx, &d); err != nil {
			e.logger.Warn("recording bike in registry failed", "bike_id", b.ID, "error", err)
		}
	}
}

// Unload stops the refresh loop. The last snapshot stays readable.
func (e *Entry) Unload() {
	e.coord.Stop()
	e.logger.Info("entry unloaded", "entry_id", e.id)
}

// Entities builds the presentation entities for the current snapshot.
func (e *Entry) Entities() []entity.Entity {
	return entity.Build(e.id, e.coord.CurrentSnapshot())
}

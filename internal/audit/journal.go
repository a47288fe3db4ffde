package audit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Journal defaults.
const (
	DefaultQueueSize     = 256
	DefaultRetention     = 30 * 24 * time.Hour
	DefaultPruneInterval = 6 * time.Hour

	writeTimeout = 5 * time.Second
)

// CycleRecorder receives coordinator cycle metrics. It mirrors the
// coordinator's Recorder so a Journal can sit in front of another one.
type CycleRecorder interface {
	ObserveCycle(err error, elapsed time.Duration, bikes int)
	IncCoalesced()
	SetState(state string)
	SetSubscribers(n int)
}

// Logger defines the logging interface used by the journal.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopRecorder struct{}

func (noopRecorder) ObserveCycle(error, time.Duration, int) {}
func (noopRecorder) IncCoalesced()                          {}
func (noopRecorder) SetState(string)                        {}
func (noopRecorder) SetSubscribers(int)                     {}

// JournalOptions configures a Journal.
type JournalOptions struct {
	Repository Repository
	EntryID    string
	Next       CycleRecorder // optional: receives every recorder call
	Logger     Logger

	QueueSize     int           // defaults to DefaultQueueSize
	Retention     time.Duration // defaults to DefaultRetention; negative keeps everything
	PruneInterval time.Duration // defaults to DefaultPruneInterval
}

// Journal writes audit entries asynchronously.
//
// Thread Safety: All methods are safe for concurrent use.
type Journal struct {
	repo          Repository
	entryID       string
	next          CycleRecorder
	logger        Logger
	retention     time.Duration
	pruneInterval time.Duration

	ch       chan *AuditLog
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewJournal creates a Journal. Entries recorded before Start are queued.
func NewJournal(opts JournalOptions) (*Journal, error) {
	if opts.Repository == nil {
		return nil, errors.New("audit: repository is required")
	}

	j := &Journal{
		repo:          opts.Repository,
		entryID:       opts.EntryID,
		next:          noopRecorder{},
		logger:        noopLogger{},
		retention:     opts.Retention,
		pruneInterval: opts.PruneInterval,
		done:          make(chan struct{}),
	}
	if opts.Next != nil {
		j.next = opts.Next
	}
	if opts.Logger != nil {
		j.logger = opts.Logger
	}
	if j.retention == 0 {
		j.retention = DefaultRetention
	}
	if j.pruneInterval <= 0 {
		j.pruneInterval = DefaultPruneInterval
	}

	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	j.ch = make(chan *AuditLog, size)

	return j, nil
}

// Start launches the writer goroutine.
func (j *Journal) Start() {
	j.wg.Add(1)
	go j.drain()
}

// Stop writes whatever is still queued and stops the writer. It is
// idempotent; entries recorded afterwards are dropped.
func (j *Journal) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
	})
}

func (j *Journal) drain() {
	defer j.wg.Done()

	j.prune()
	ticker := time.NewTicker(j.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-j.ch:
			j.write(entry)
		case <-ticker.C:
			j.prune()
		case <-j.done:
			for {
				select {
				case entry := <-j.ch:
					j.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) write(entry *AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := j.repo.Create(ctx, entry); err != nil {
		j.logger.Error("audit log write failed",
			"action", entry.Action,
			"error", err,
		)
	}
}

func (j *Journal) prune() {
	if j.retention < 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if _, err := j.repo.Prune(ctx, time.Now().Add(-j.retention)); err != nil {
		j.logger.Error("audit log prune failed", "error", err)
	}
}

// Record queues an entry. Missing entity fields default to the account.
func (j *Journal) Record(entry *AuditLog) {
	if entry.EntityType == "" {
		entry.EntityType = EntityTypeAccount
	}
	if entry.EntityID == "" {
		entry.EntityID = j.entryID
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	select {
	case <-j.done:
		return
	default:
	}

	select {
	case j.ch <- entry:
	default:
		j.logger.Warn("audit log queue full, dropping entry", "action", entry.Action)
	}
}

// List reads back recorded entries.
func (j *Journal) List(ctx context.Context, filter Filter) (*ListResult, error) {
	return j.repo.List(ctx, filter)
}

// ObserveCycle records the outcome of a coordinator cycle and forwards it.
func (j *Journal) ObserveCycle(err error, elapsed time.Duration, bikes int) {
	j.next.ObserveCycle(err, elapsed, bikes)

	entry := &AuditLog{
		Action: ActionRefreshSucceeded,
		Source: SourceCoordinator,
		Details: map[string]any{
			"bikes":       bikes,
			"duration_ms": elapsed.Milliseconds(),
		},
	}
	if err != nil {
		entry.Action = ActionRefreshFailed
		entry.Details["error"] = err.Error()
	}
	j.Record(entry)
}

// IncCoalesced forwards to the next recorder.
func (j *Journal) IncCoalesced() { j.next.IncCoalesced() }

// SetState forwards to the next recorder.
func (j *Journal) SetState(state string) { j.next.SetState(state) }

// SetSubscribers forwards to the next recorder.
func (j *Journal) SetSubscribers(n int) { j.next.SetSubscribers(n) }

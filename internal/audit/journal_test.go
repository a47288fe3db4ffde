package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockRepository is an in-memory Repository.
type mockRepository struct {
	mu        sync.Mutex
	logs      []AuditLog
	createErr error
	pruned    []time.Time
}

func (m *mockRepository) Create(_ context.Context, log *AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockRepository) List(_ context.Context, _ Filter) (*ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	logs := make([]AuditLog, len(m.logs))
	copy(logs, m.logs)
	return &ListResult{Logs: logs, Total: len(logs)}, nil
}

func (m *mockRepository) Prune(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned = append(m.pruned, before)
	return 0, nil
}

func (m *mockRepository) snapshot() []AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	logs := make([]AuditLog, len(m.logs))
	copy(logs, m.logs)
	return logs
}

// mockRecorder counts forwarded calls.
type mockRecorder struct {
	mu          sync.Mutex
	cycles      int
	coalesced   int
	state       string
	subscribers int
}

func (m *mockRecorder) ObserveCycle(error, time.Duration, int) {
	m.mu.Lock()
	m.cycles++
	m.mu.Unlock()
}

func (m *mockRecorder) IncCoalesced() {
	m.mu.Lock()
	m.coalesced++
	m.mu.Unlock()
}

func (m *mockRecorder) SetState(state string) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

func (m *mockRecorder) SetSubscribers(n int) {
	m.mu.Lock()
	m.subscribers = n
	m.mu.Unlock()
}

func TestNewJournal_RequiresRepository(t *testing.T) {
	if _, err := NewJournal(JournalOptions{}); err == nil {
		t.Fatal("NewJournal() expected error without repository")
	}
}

func TestJournal_ObserveCycle(t *testing.T) {
	repo := &mockRepository{}
	next := &mockRecorder{}
	j, err := NewJournal(JournalOptions{Repository: repo, EntryID: "garage", Next: next})
	if err != nil {
		t.Fatal(err)
	}
	j.Start()

	j.ObserveCycle(nil, 1500*time.Millisecond, 2)
	j.ObserveCycle(errors.New("vendor down"), time.Second, 0)
	j.Stop()

	logs := repo.snapshot()
	if len(logs) != 2 {
		t.Fatalf("recorded %d entries, want 2", len(logs))
	}

	ok := logs[0]
	if ok.Action != ActionRefreshSucceeded || ok.Source != SourceCoordinator {
		t.Errorf("first entry = %+v", ok)
	}
	if ok.EntityType != EntityTypeAccount || ok.EntityID != "garage" {
		t.Errorf("entity = %s/%s, want account/garage", ok.EntityType, ok.EntityID)
	}
	if ok.Details["bikes"] != 2 || ok.Details["duration_ms"] != int64(1500) {
		t.Errorf("details = %v", ok.Details)
	}

	failed := logs[1]
	if failed.Action != ActionRefreshFailed || failed.Details["error"] != "vendor down" {
		t.Errorf("second entry = %+v", failed)
	}

	if next.cycles != 2 {
		t.Errorf("forwarded cycles = %d, want 2", next.cycles)
	}
}

func TestJournal_ForwardsRecorderCalls(t *testing.T) {
	next := &mockRecorder{}
	j, err := NewJournal(JournalOptions{Repository: &mockRepository{}, Next: next})
	if err != nil {
		t.Fatal(err)
	}

	j.IncCoalesced()
	j.SetState("refreshing")
	j.SetSubscribers(3)

	if next.coalesced != 1 || next.state != "refreshing" || next.subscribers != 3 {
		t.Errorf("next = %+v", next)
	}
}

func TestJournal_QueuedBeforeStart(t *testing.T) {
	repo := &mockRepository{}
	j, err := NewJournal(JournalOptions{Repository: repo})
	if err != nil {
		t.Fatal(err)
	}

	j.Record(&AuditLog{Action: ActionRefreshRequested, Source: SourceAPI, UserID: "alice"})
	if len(repo.snapshot()) != 0 {
		t.Fatal("entry written before Start")
	}

	j.Start()
	j.Stop()

	if got := repo.snapshot(); len(got) != 1 || got[0].UserID != "alice" {
		t.Errorf("logs = %+v, want the queued request", got)
	}
}

func TestJournal_QueueFullDrops(t *testing.T) {
	repo := &mockRepository{}
	j, err := NewJournal(JournalOptions{Repository: repo, QueueSize: 2})
	if err != nil {
		t.Fatal(err)
	}

	for range 5 {
		j.Record(&AuditLog{Action: ActionRefreshRequested, Source: SourceAPI})
	}
	j.Start()
	j.Stop()

	if got := len(repo.snapshot()); got != 2 {
		t.Errorf("written = %d, want 2", got)
	}
}

func TestJournal_RecordAfterStopDropped(t *testing.T) {
	repo := &mockRepository{}
	j, err := NewJournal(JournalOptions{Repository: repo})
	if err != nil {
		t.Fatal(err)
	}
	j.Start()
	j.Stop()
	j.Stop() // idempotent

	j.Record(&AuditLog{Action: ActionRefreshRequested, Source: SourceAPI})
	if got := len(repo.snapshot()); got != 0 {
		t.Errorf("written = %d, want 0", got)
	}
}

func TestJournal_WriteErrorLogged(t *testing.T) {
	repo := &mockRepository{createErr: errors.New("disk full")}
	j, err := NewJournal(JournalOptions{Repository: repo})
	if err != nil {
		t.Fatal(err)
	}
	j.Start()
	j.ObserveCycle(nil, time.Second, 1)
	j.Stop()

	if got := len(repo.snapshot()); got != 0 {
		t.Errorf("written = %d, want 0", got)
	}
}

func TestJournal_Retention(t *testing.T) {
	tests := []struct {
		name       string
		retention  time.Duration
		wantPrunes int
	}{
		{"default prunes at start", 0, 1},
		{"custom prunes at start", time.Hour, 1},
		{"negative keeps everything", -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{}
			j, err := NewJournal(JournalOptions{Repository: repo, Retention: tt.retention})
			if err != nil {
				t.Fatal(err)
			}
			j.Start()
			j.Stop()

			repo.mu.Lock()
			defer repo.mu.Unlock()
			if len(repo.pruned) != tt.wantPrunes {
				t.Errorf("prunes = %d, want %d", len(repo.pruned), tt.wantPrunes)
			}
		})
	}
}

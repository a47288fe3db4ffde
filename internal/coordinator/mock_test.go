package coordinator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// mockFetcher implements Fetcher for testing.
type mockFetcher struct {
	mu          sync.Mutex
	bikes       any
	states      any
	bikesErr    error
	statesErr   error
	bikesCalls  int
	statesCalls int

	// gate, when set, blocks BikesInfo until closed.
	gate chan struct{}
	// entered receives a value each time BikesInfo is entered.
	entered chan struct{}
}

func newMockFetcher(t *testing.T, bikesJSON, statesJSON string) *mockFetcher {
	t.Helper()
	return &mockFetcher{
		bikes:   decode(t, bikesJSON),
		states:  decode(t, statesJSON),
		entered: make(chan struct{}, 64),
	}
}

func (m *mockFetcher) BikesInfo(ctx context.Context) (any, error) {
	m.mu.Lock()
	m.bikesCalls++
	gate := m.gate
	bikes, err := m.bikes, m.bikesErr
	m.mu.Unlock()

	select {
	case m.entered <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return bikes, err
}

func (m *mockFetcher) LastKnownStates(_ context.Context) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statesCalls++
	return m.states, m.statesErr
}

func (m *mockFetcher) set(bikesJSON, statesJSON string, t *testing.T) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bikes = decode(t, bikesJSON)
	m.states = decode(t, statesJSON)
}

func (m *mockFetcher) setErrors(bikesErr, statesErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bikesErr = bikesErr
	m.statesErr = statesErr
}

func (m *mockFetcher) setGate(gate chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
}

func (m *mockFetcher) calls() (bikes, states int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bikesCalls, m.statesCalls
}

// mockRecorder implements Recorder for testing.
type mockRecorder struct {
	mu          sync.Mutex
	cycles      int
	failures    int
	coalesced   int
	states      []string
	subscribers int
}

func (r *mockRecorder) ObserveCycle(err error, _ time.Duration, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles++
	if err != nil {
		r.failures++
	}
}

func (r *mockRecorder) IncCoalesced() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coalesced++
}

func (r *mockRecorder) SetState(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *mockRecorder) SetSubscribers(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = n
}

func (r *mockRecorder) coalescedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coalesced
}

func decode(t *testing.T, s string) any {
	t.Helper()
	if s == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	return v
}

func newTestCoordinator(t *testing.T, f Fetcher, rec Recorder) *Coordinator {
	t.Helper()
	c, err := New(Options{Fetcher: f, Metrics: rec, CycleTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Stop)
	return c
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

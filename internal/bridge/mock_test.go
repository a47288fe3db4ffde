package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/ponbike-core/internal/coordinator"
	"github.com/nerrad567/ponbike-core/internal/infrastructure/mqtt"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu         sync.Mutex
	published  []mockPublish
	handlers   map[string]mqtt.MessageHandler
	connected  bool
	publishErr error
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

func (m *MockMQTTClient) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockPublish, len(m.published))
	copy(out, m.published)
	return out
}

func (m *MockMQTTClient) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

func (m *MockMQTTClient) HasHandler(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[topic]
	return ok
}

// SimulateMessage simulates receiving an MQTT message on a topic.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) error {
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if !ok {
		return errors.New("no handler for " + topic)
	}
	return handler(topic, payload)
}

// countTopic returns how many publishes went to topic.
func (m *MockMQTTClient) countTopic(topic string) int {
	n := 0
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			n++
		}
	}
	return n
}

// last returns the most recent payload published to topic.
func (m *MockMQTTClient) last(topic string) ([]byte, bool) {
	pubs := m.GetPublished()
	for i := len(pubs) - 1; i >= 0; i-- {
		if pubs[i].Topic == topic {
			return pubs[i].Payload, true
		}
	}
	return nil, false
}

// fakeFetcher implements coordinator.Fetcher for testing.
type fakeFetcher struct {
	mu       sync.Mutex
	bikes    any
	states   any
	bikesErr error
	calls    int
}

func (f *fakeFetcher) BikesInfo(context.Context) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.bikes, f.bikesErr
}

func (f *fakeFetcher) LastKnownStates(context.Context) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states, nil
}

func (f *fakeFetcher) setBikesErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bikesErr = err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

const (
	testBikes = `[
		{"bikeId":"A1","nickName":"Cargo","frameNumber":"F1","manufacturerId":"UA","category":"cargo","type":"family"},
		{"nickName":"no id"}
	]`
	testStates = `[
		{"bikeId":"A1","lastOnline":"2026-01-01T10:00:00Z",
		 "bikeTelemetry":{"odometer":12},
		 "location":{"coordinate":{"latitude":52.1,"longitude":4.3}},
		 "iotTelemetry":{"moduleCharge":80}}
	]`
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func newTestCoordinator(t *testing.T) (*coordinator.Coordinator, *fakeFetcher) {
	t.Helper()
	f := &fakeFetcher{bikes: decode(t, testBikes), states: decode(t, testStates)}
	c, err := coordinator.New(coordinator.Options{Fetcher: f, CycleTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("coordinator.New() error = %v", err)
	}
	t.Cleanup(c.Stop)
	return c, f
}

func newTestBridge(t *testing.T, src Source, client MQTTClient) *Bridge {
	t.Helper()
	b, err := New(Options{
		EntryID:        "garage",
		Version:        "test",
		MQTTClient:     client,
		Source:         src,
		QoS:            1,
		HealthInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return b
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

// mockRecorder implements Recorder for testing.
type mockRecorder struct {
	mu     sync.Mutex
	ok     int
	failed int
}

func (r *mockRecorder) ObservePublish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed++
		return
	}
	r.ok++
}

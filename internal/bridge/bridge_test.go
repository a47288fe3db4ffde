package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/ponbike-core/internal/infrastructure/mqtt"
)

func TestNew_Validation(t *testing.T) {
	c, _ := newTestCoordinator(t)
	client := NewMockMQTTClient()

	tests := []struct {
		name string
		opts Options
	}{
		{"missing entry id", Options{MQTTClient: client, Source: c}},
		{"missing client", Options{EntryID: "garage", Source: c}},
		{"missing source", Options{EntryID: "garage", MQTTClient: client}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Error("New() expected error, got nil")
			}
		})
	}
}

func TestBridge_StartWithoutSnapshot(t *testing.T) {
	c, _ := newTestCoordinator(t)
	client := NewMockMQTTClient()
	b := newTestBridge(t, c, client)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	if !client.HasHandler(mqtt.Topics{}.Command(CommandRefresh)) {
		t.Error("refresh command topic not subscribed")
	}

	payload, ok := client.last(mqtt.Topics{}.Health())
	if !ok {
		t.Fatal("no health published on start")
	}
	var msg HealthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if msg.Status != HealthStarting {
		t.Errorf("Status = %q, want %q", msg.Status, HealthStarting)
	}
	if msg.EntryID != "garage" || msg.Version != "test" {
		t.Errorf("health = %+v", msg)
	}
	if client.countTopic(mqtt.Topics{}.EntityState("A1", "odometer")) != 0 {
		t.Error("state published before any snapshot")
	}
}

func TestBridge_PublishesOnRefresh(t *testing.T) {
	c, _ := newTestCoordinator(t)
	client := NewMockMQTTClient()
	b := newTestBridge(t, c, client)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	if _, err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow() error = %v", err)
	}

	topics := mqtt.Topics{}

	// Odometer state
	payload, ok := client.last(topics.EntityState("A1", "odometer"))
	if !ok {
		t.Fatal("odometer state not published")
	}
	var state map[string]any
	if err := json.Unmarshal(payload, &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if state["value"] != float64(12) {
		t.Errorf("odometer value = %v, want 12", state["value"])
	}
	if _, ok := state["fetched_at"]; !ok {
		t.Error("state missing fetched_at")
	}

	// Tracker state carries position and raw attributes
	payload, ok = client.last(topics.EntityState("A1", "tracker"))
	if !ok {
		t.Fatal("tracker state not published")
	}
	var tracker StateMessage
	if err := json.Unmarshal(payload, &tracker); err != nil {
		t.Fatalf("unmarshal tracker: %v", err)
	}
	if tracker.Latitude == nil || *tracker.Latitude != 52.1 {
		t.Errorf("Latitude = %v, want 52.1", tracker.Latitude)
	}
	if tracker.Attributes["bikeId"] != "A1" {
		t.Errorf("bikeId attribute = %v", tracker.Attributes["bikeId"])
	}

	// Entity metadata and device document
	payload, ok = client.last(topics.EntityConfig("A1", "module_charge"))
	if !ok {
		t.Fatal("module charge metadata not published")
	}
	var meta map[string]any
	if err := json.Unmarshal(payload, &meta); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if meta["unique_id"] != "garage_A1_module_charge" {
		t.Errorf("unique_id = %v", meta["unique_id"])
	}
	if meta["state_topic"] != topics.EntityState("A1", "module_charge") {
		t.Errorf("state_topic = %v", meta["state_topic"])
	}

	payload, ok = client.last(topics.Device("A1"))
	if !ok {
		t.Fatal("device document not published")
	}
	var dev DeviceMessage
	if err := json.Unmarshal(payload, &dev); err != nil {
		t.Fatalf("unmarshal device: %v", err)
	}
	if dev.Identifier != "A1" || len(dev.Entities) != 3 {
		t.Errorf("device = %+v, want A1 with 3 entities", dev)
	}

	// Bike without an id gets nothing
	for _, p := range client.GetPublished() {
		if p.Topic == topics.Device("") {
			t.Error("published device for bike without id")
		}
	}

	// Everything is retained
	for _, p := range client.GetPublished() {
		if !p.Retained {
			t.Errorf("publish to %s not retained", p.Topic)
		}
		if p.QoS != 1 {
			t.Errorf("publish to %s QoS = %d, want 1", p.Topic, p.QoS)
		}
	}

	payload, _ = client.last(topics.Health())
	var health HealthMessage
	if err := json.Unmarshal(payload, &health); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if health.Status != HealthReady || health.Bikes != 2 || health.LastSuccess == nil {
		t.Errorf("health = %+v, want ready with 2 bikes", health)
	}
}

func TestBridge_MetadataOnlyOnChange(t *testing.T) {
	c, _ := newTestCoordinator(t)
	client := NewMockMQTTClient()
	b := newTestBridge(t, c, client)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	for range 3 {
		if _, err := c.RefreshNow(context.Background()); err != nil {
			t.Fatalf("RefreshNow() error = %v", err)
		}
	}

	topics := mqtt.Topics{}
	if n := client.countTopic(topics.EntityConfig("A1", "odometer")); n != 1 {
		t.Errorf("entity metadata published %d times, want 1", n)
	}
	if n := client.countTopic(topics.Device("A1")); n != 1 {
		t.Errorf("device document published %d times, want 1", n)
	}
	if n := client.countTopic(topics.EntityState("A1", "odometer")); n != 3 {
		t.Errorf("state published %d times, want 3", n)
	}
}

func TestBridge_FailedRefreshKeepsStates(t *testing.T) {
	c, f := newTestCoordinator(t)
	client := NewMockMQTTClient()
	b := newTestBridge(t, c, client)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	if _, err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow() error = %v", err)
	}
	client.ClearPublished()

	f.setBikesErr(errors.New("vendor down"))
	if _, err := c.RefreshNow(context.Background()); err == nil {
		t.Fatal("RefreshNow() expected error")
	}

	if client.countTopic(mqtt.Topics{}.EntityState("A1", "odometer")) != 0 {
		t.Error("failed cycle must not republish states")
	}

	// The last snapshot is still what a late publish sees.
	if err := b.health.PublishNow(); err != nil {
		t.Fatalf("PublishNow() error = %v", err)
	}
	payload, _ := client.last(mqtt.Topics{}.Health())
	var health HealthMessage
	if err := json.Unmarshal(payload, &health); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if health.Status != HealthDegraded {
		t.Errorf("Status = %q, want degraded", health.Status)
	}
	if health.Reason == "" {
		t.Error("degraded health should carry a reason")
	}
	if health.Bikes != 2 {
		t.Errorf("Bikes = %d, want last known 2", health.Bikes)
	}
}

func TestBridge_StartPublishesExistingSnapshot(t *testing.T) {
	c, _ := newTestCoordinator(t)
	if _, err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow() error = %v", err)
	}

	client := NewMockMQTTClient()
	b := newTestBridge(t, c, client)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	if client.countTopic(mqtt.Topics{}.EntityState("A1", "odometer")) != 1 {
		t.Error("existing snapshot not published on start")
	}
}

func TestBridge_RefreshCommand(t *testing.T) {
	c, f := newTestCoordinator(t)
	client := NewMockMQTTClient()
	b := newTestBridge(t, c, client)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	topic := mqtt.Topics{}.Command(CommandRefresh)

	tests := []struct {
		name    string
		payload []byte
		wantErr bool
	}{
		{"empty payload", nil, false},
		{"with request id", []byte(`{"request_id":"abc"}`), false},
		{"invalid json", []byte(`{not json`), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.callCount()
			err := client.SimulateMessage(topic, tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("handler error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			waitFor(t, time.Second, func() bool { return f.callCount() > before })
		})
	}

	waitFor(t, time.Second, func() bool {
		return client.countTopic(mqtt.Topics{}.EntityState("A1", "odometer")) > 0
	})
}

func TestBridge_PublishErrorsCounted(t *testing.T) {
	c, _ := newTestCoordinator(t)
	client := NewMockMQTTClient()
	rec := &mockRecorder{}

	b, err := New(Options{
		EntryID:        "garage",
		MQTTClient:     client,
		Source:         c,
		HealthInterval: time.Hour,
		Metrics:        rec,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	snap, err := c.RefreshNow(context.Background())
	if err != nil {
		t.Fatalf("RefreshNow() error = %v", err)
	}

	client.SetPublishError(errors.New("broker gone"))
	b.PublishSnapshot(snap)

	rec.mu.Lock()
	failed := rec.failed
	rec.mu.Unlock()
	if failed == 0 {
		t.Error("failed publishes not recorded")
	}

	// Metadata that failed to publish is retried next time.
	client.SetPublishError(nil)
	b.PublishSnapshot(snap)
	if client.countTopic(mqtt.Topics{}.Device("A1")) != 1 {
		t.Error("device document not retried after failure")
	}
}

func TestBridge_PublishSnapshotNil(t *testing.T) {
	c, _ := newTestCoordinator(t)
	client := NewMockMQTTClient()
	b := newTestBridge(t, c, client)

	b.PublishSnapshot(nil)
	if len(client.GetPublished()) != 0 {
		t.Error("nil snapshot should publish nothing")
	}
}

func TestBridge_StopIdempotent(t *testing.T) {
	c, _ := newTestCoordinator(t)
	client := NewMockMQTTClient()
	b := newTestBridge(t, c, client)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	b.Stop()
	b.Stop()

	if client.HasHandler(mqtt.Topics{}.Command(CommandRefresh)) {
		t.Error("refresh command still subscribed after Stop")
	}

	payload, ok := client.last(mqtt.Topics{}.Health())
	if !ok {
		t.Fatal("no health published")
	}
	var msg HealthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Status != HealthStopping {
		t.Errorf("final Status = %q, want stopping", msg.Status)
	}

	// No longer a listener
	client.ClearPublished()
	if _, err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow() error = %v", err)
	}
	if len(client.GetPublished()) != 0 {
		t.Error("bridge published after Stop")
	}

	// Commands after Stop are ignored
	if err := b.handleRefreshCommand("", nil); err != nil {
		t.Errorf("handleRefreshCommand after Stop = %v", err)
	}
}

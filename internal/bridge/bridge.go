package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/ponbike-core/internal/coordinator"
	"github.com/nerrad567/ponbike-core/internal/entity"
	"github.com/nerrad567/ponbike-core/internal/infrastructure/mqtt"
)

// CommandRefresh is the command name that triggers a refresh.
const CommandRefresh = "refresh"

// refreshTimeout bounds how long a refresh command waits for its cycle.
const refreshTimeout = 2 * time.Minute

// Publisher publishes MQTT messages.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// MQTTClient is the broker connection the bridge needs. *mqtt.Client
// implements it.
type MQTTClient interface {
	Publisher
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Source is the coordinator as seen by the bridge.
type Source interface {
	Subscribe(l coordinator.Listener) coordinator.Subscription
	Unsubscribe(sub coordinator.Subscription)
	RefreshNow(ctx context.Context) (*coordinator.Snapshot, error)
	CurrentSnapshot() *coordinator.Snapshot
	State() string
	LastError() error
	LastSuccess() time.Time
}

// Recorder counts publish outcomes. *metrics.Metrics implements it.
type Recorder interface {
	ObservePublish(err error)
}

type noopRecorder struct{}

func (noopRecorder) ObservePublish(error) {}

// Logger defines the logging interface used by the bridge.
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

// Options holds configuration for creating a bridge.
type Options struct {
	EntryID        string
	Version        string
	MQTTClient     MQTTClient
	Source         Source
	QoS            byte
	HealthInterval time.Duration
	Logger         Logger
	Metrics        Recorder
}

// Bridge mirrors the coordinator's snapshots onto MQTT.
//
// After every successful cycle it publishes, retained, one state message
// per entity, entity metadata and a device document per bike (only when
// they change), and the current health. It also listens on
// ponbike/command/refresh and turns each message into a coalesced refresh.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	entryID string
	mqtt    MQTTClient
	source  Source
	qos     byte
	health  *HealthReporter

	sub coordinator.Subscription

	// Last published metadata payloads by topic, for change detection.
	published   map[string][]byte
	publishedMu sync.Mutex

	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	recorder Recorder
}

// New creates a bridge. Call Start to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.EntryID == "" {
		return nil, fmt.Errorf("entry id is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		entryID:   opts.EntryID,
		mqtt:      opts.MQTTClient,
		source:    opts.Source,
		qos:       opts.QoS,
		published: make(map[string][]byte),
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: cancel,
		logger:    noopLogger{},
		recorder:  noopRecorder{},
	}
	if opts.Logger != nil {
		b.logger = opts.Logger
	}
	if opts.Metrics != nil {
		b.recorder = opts.Metrics
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		EntryID:   opts.EntryID,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Source:    opts.Source,
		QoS:       opts.QoS,
		Logger:    b.logger,
	})
	return b, nil
}

// Start subscribes to refresh commands and to the coordinator, publishes
// the current snapshot if there is one, and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	topic := mqtt.Topics{}.Command(CommandRefresh)
	if err := b.mqtt.Subscribe(topic, b.qos, b.handleRefreshCommand); err != nil {
		return fmt.Errorf("subscribe to refresh command: %w", err)
	}
	b.logger.Info("subscribed to commands", "topic", topic)

	b.sub = b.source.Subscribe(b.PublishSnapshot)

	if snap := b.source.CurrentSnapshot(); snap != nil {
		b.PublishSnapshot(snap)
	} else if err := b.health.PublishNow(); err != nil {
		b.logger.Warn("failed to publish health", "error", err)
	}

	b.health.Start(ctx)
	b.logger.Info("mqtt bridge started", "entry_id", b.entryID)
	return nil
}

// Stop unsubscribes, waits for in-flight refresh commands and publishes a
// final "stopping" health. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.source.Unsubscribe(b.sub)

		if err := b.mqtt.Unsubscribe(mqtt.Topics{}.Command(CommandRefresh)); err != nil {
			b.logger.Debug("unsubscribe refresh command", "error", err)
		}

		b.ctxCancel()
		b.wg.Wait()
		b.health.Stop()

		b.logger.Info("mqtt bridge stopped")
	})
}

// PublishSnapshot publishes every entity of snap plus health. It is the
// coordinator listener; publish failures are logged and counted.
func (b *Bridge) PublishSnapshot(snap *coordinator.Snapshot) {
	if snap == nil {
		return
	}

	topics := mqtt.Topics{}
	entities := entity.Build(b.entryID, snap)
	byBike := make(map[string][]string)

	for _, e := range entities {
		stateTopic := topics.EntityState(e.BikeID, e.Key)
		byBike[e.BikeID] = append(byBike[e.BikeID], e.UniqueID)

		b.publishIfChanged(topics.EntityConfig(e.BikeID, e.Key), EntityMessage{
			Entity:     e,
			StateTopic: stateTopic,
		})
		b.publishJSON(stateTopic, StateMessage{
			State:     e.Render(snap),
			FetchedAt: snap.FetchedAt.UTC(),
		})
	}

	for _, e := range entities {
		ids, ok := byBike[e.BikeID]
		if !ok {
			continue
		}
		delete(byBike, e.BikeID)
		b.publishIfChanged(topics.Device(e.BikeID), DeviceMessage{
			DeviceInfo: e.Device,
			EntryID:    b.entryID,
			Entities:   ids,
		})
	}

	if err := b.health.PublishNow(); err != nil {
		b.logger.Warn("failed to publish health", "error", err)
	}

	b.logger.Debug("snapshot published", "bikes", snap.Len(), "entities", len(entities))
}

// publishIfChanged publishes retained metadata unless the same payload was
// already published on topic.
func (b *Bridge) publishIfChanged(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("marshalling message", "topic", topic, "error", err)
		return
	}

	b.publishedMu.Lock()
	prev, seen := b.published[topic]
	b.publishedMu.Unlock()
	if seen && string(prev) == string(payload) {
		return
	}

	if b.publish(topic, payload) {
		b.publishedMu.Lock()
		b.published[topic] = payload
		b.publishedMu.Unlock()
	}
}

func (b *Bridge) publishJSON(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("marshalling message", "topic", topic, "error", err)
		return
	}
	b.publish(topic, payload)
}

func (b *Bridge) publish(topic string, payload []byte) bool {
	err := b.mqtt.Publish(topic, payload, b.qos, true)
	b.recorder.ObservePublish(err)
	if err != nil {
		b.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
		return false
	}
	return true
}

// handleRefreshCommand runs a refresh in the background so the MQTT
// delivery goroutine is not held for a whole cycle. The payload is optional.
func (b *Bridge) handleRefreshCommand(_ string, payload []byte) error {
	var cmd RefreshCommand
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return fmt.Errorf("parsing refresh command: %w", err)
		}
	}

	select {
	case <-b.done:
		return nil
	default:
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ctx, cancel := context.WithTimeout(b.ctx, refreshTimeout)
		defer cancel()

		if _, err := b.source.RefreshNow(ctx); err != nil {
			b.logger.Warn("refresh command failed", "request_id", cmd.RequestID, "error", err)
			if err := b.health.PublishNow(); err != nil {
				b.logger.Warn("failed to publish health", "error", err)
			}
			return
		}
		b.logger.Info("refresh command completed", "request_id", cmd.RequestID)
	}()
	return nil
}

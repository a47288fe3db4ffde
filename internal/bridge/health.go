package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/ponbike-core/internal/coordinator"
	"github.com/nerrad567/ponbike-core/internal/infrastructure/mqtt"
)

const defaultHealthInterval = 30 * time.Second

// HealthReporter publishes the coordinator's health on a fixed interval
// and on demand.
type HealthReporter struct {
	entryID   string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher Publisher
	source    Source
	qos       byte

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger Logger
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	EntryID   string
	Version   string
	Interval  time.Duration
	Publisher Publisher
	Source    Source
	QoS       byte
	Logger    Logger
}

// NewHealthReporter creates a reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	h := &HealthReporter{
		entryID:   cfg.EntryID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		source:    cfg.Source,
		qos:       cfg.QoS,
		done:      make(chan struct{}),
		logger:    noopLogger{},
	}
	if cfg.Logger != nil {
		h.logger = cfg.Logger
	}
	return h
}

// Start begins periodic reporting until ctx ends or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // best effort during shutdown
		h.publish(HealthStopping, "")
	})
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publish(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logger.Warn("failed to publish health", "error", err)
			}
		}
	}
}

// determineStatus maps the coordinator lifecycle onto a health status.
// While a cycle is running the outcome of the previous one is reported.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.source == nil {
		return HealthStarting, ""
	}

	switch h.source.State() {
	case coordinator.StateReady:
		return HealthReady, ""
	case coordinator.StateDegraded:
		return HealthDegraded, errString(h.source.LastError())
	case coordinator.StateRefreshing:
		if err := h.source.LastError(); err != nil {
			return HealthDegraded, err.Error()
		}
		if !h.source.LastSuccess().IsZero() {
			return HealthReady, ""
		}
	}
	return HealthStarting, ""
}

func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	msg := HealthMessage{
		Bridge:        mqtt.TopicPrefix,
		EntryID:       h.entryID,
		Status:        status,
		Reason:        reason,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Timestamp:     time.Now().UTC(),
	}
	if h.source != nil {
		msg.Bikes = h.source.CurrentSnapshot().Len()
		if last := h.source.LastSuccess(); !last.IsZero() {
			last = last.UTC()
			msg.LastSuccess = &last
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.publisher.Publish(mqtt.Topics{}.Health(), payload, h.qos, true)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

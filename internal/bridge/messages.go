package bridge

import (
	"time"

	"github.com/nerrad567/ponbike-core/internal/entity"
)

// HealthStatus is the bridge health published on ponbike/health.
type HealthStatus string

const (
	// HealthStarting means no refresh has succeeded yet.
	HealthStarting HealthStatus = "starting"

	// HealthReady means the last refresh succeeded.
	HealthReady HealthStatus = "ready"

	// HealthDegraded means the last refresh failed. Entity states keep
	// their last good values.
	HealthDegraded HealthStatus = "degraded"

	// HealthStopping is published once on shutdown.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is the retained payload on ponbike/health.
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	EntryID       string       `json:"entry_id"`
	Status        HealthStatus `json:"status"`
	Reason        string       `json:"reason,omitempty"`
	Version       string       `json:"version,omitempty"`
	Bikes         int          `json:"bikes"`
	LastSuccess   *time.Time   `json:"last_success,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Timestamp     time.Time    `json:"timestamp"`
}

// StateMessage is the retained payload on ponbike/state/{bike}/{key}.
type StateMessage struct {
	entity.State
	FetchedAt time.Time `json:"fetched_at"`
}

// EntityMessage is the retained payload on ponbike/entity/{bike}/{key}.
type EntityMessage struct {
	entity.Entity
	StateTopic string `json:"state_topic"`
}

// DeviceMessage is the retained payload on ponbike/device/{bike}.
type DeviceMessage struct {
	entity.DeviceInfo
	EntryID  string   `json:"entry_id"`
	Entities []string `json:"entities"`
}

// RefreshCommand is the optional payload on ponbike/command/refresh.
// An empty payload is accepted.
type RefreshCommand struct {
	RequestID string `json:"request_id,omitempty"`
}

package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemStatus represents the complete status response.
type SystemStatus struct {
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Runtime       RuntimeStatus     `json:"runtime"`
	Coordinator   CoordinatorStatus `json:"coordinator"`
	WebSocket     WSStatus          `json:"websocket"`
	MQTT          *MQTTStatus       `json:"mqtt,omitempty"`
	Devices       DeviceStatus      `json:"devices"`
	Database      *DatabaseStatus   `json:"database,omitempty"`
}

// RuntimeStatus contains Go runtime statistics.
type RuntimeStatus struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// CoordinatorStatus describes the refresh loop.
type CoordinatorStatus struct {
	State       string     `json:"state"`
	Bikes       int        `json:"bikes"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// WSStatus reports the WebSocket snapshot feed.
type WSStatus struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTStatus contains MQTT client statistics.
type MQTTStatus struct {
	Connected bool `json:"connected"`
}

// DeviceStatus contains device registry statistics.
type DeviceStatus struct {
	Registered int `json:"registered"`
}

// DatabaseStatus contains database connection pool statistics.
type DatabaseStatus struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleStatus returns runtime, coordinator and connection status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := SystemStatus{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeStatus{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Coordinator: CoordinatorStatus{
			State: s.source.State(),
			Bikes: s.source.CurrentSnapshot().Len(),
		},
		WebSocket: WSStatus{
			ConnectedClients: s.feed.count(),
		},
	}

	if last := s.source.LastSuccess(); !last.IsZero() {
		last = last.UTC()
		status.Coordinator.LastSuccess = &last
	}
	if err := s.source.LastError(); err != nil {
		status.Coordinator.LastError = err.Error()
	}

	if s.mqtt != nil {
		status.MQTT = &MQTTStatus{Connected: s.mqtt.IsConnected()}
	}

	if s.registry != nil {
		status.Devices.Registered = s.registry.GetDeviceCount()
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		status.Database = &DatabaseStatus{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, status)
}

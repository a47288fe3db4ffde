// Package api provides the HTTP read API and WebSocket push for the bike bridge.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/ponbike-core/internal/audit"
	"github.com/nerrad567/ponbike-core/internal/coordinator"
	"github.com/nerrad567/ponbike-core/internal/device"
	"github.com/nerrad567/ponbike-core/internal/infrastructure/config"
	"github.com/nerrad567/ponbike-core/internal/infrastructure/database"
	"github.com/nerrad567/ponbike-core/internal/infrastructure/logging"
	"github.com/nerrad567/ponbike-core/internal/metrics"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// WebSocket fallbacks for zero config values (bytes, seconds).
const (
	defaultWSMaxMessageSize = 8192
	defaultWSPingInterval   = 30
	defaultWSPongTimeout    = 10
)

// SnapshotSource is the coordinator as seen by the API. The API never
// fetches on its own; POST /refresh goes through RefreshNow and therefore
// joins any cycle already in flight.
type SnapshotSource interface {
	CurrentSnapshot() *coordinator.Snapshot
	RefreshNow(ctx context.Context) (*coordinator.Snapshot, error)
	Subscribe(l coordinator.Listener) coordinator.Subscription
	Unsubscribe(sub coordinator.Subscription)
	State() string
	LastError() error
	LastSuccess() time.Time
}

// DeviceLister reads the persisted device registry. *device.Registry
// implements it.
type DeviceLister interface {
	ListDevices() []device.Device
	GetDevice(ctx context.Context, id string) (*device.Device, error)
	GetDeviceCount() int
}

// ConnectionStatus reports whether a downstream connection is up.
// *mqtt.Client implements it.
type ConnectionStatus interface {
	IsConnected() bool
}

// AuditJournal records and lists refresh activity. *audit.Journal
// implements it.
type AuditJournal interface {
	Record(entry *audit.AuditLog)
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	EntryID  string
	Source   SnapshotSource
	Registry DeviceLister     // optional: /devices returns 503 without it
	MQTT     ConnectionStatus // optional: reported by /status only
	DB       *database.DB     // optional: pool stats in /status
	Audit    AuditJournal     // optional: /audit returns 503 without it
	Metrics  *metrics.Metrics // optional: /metrics is not mounted without it
	Version  string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and the WebSocket snapshot feed.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	entryID   string
	source    SnapshotSource
	registry  DeviceLister
	mqtt      ConnectionStatus
	db        *database.DB
	audit     AuditJournal
	metrics   *metrics.Metrics
	version   string
	startTime time.Time

	feed    *snapshotFeed
	tickets *ticketStore

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	sub      coordinator.Subscription
	cancel   context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}
	if deps.WS.MaxMessageSize <= 0 {
		deps.WS.MaxMessageSize = defaultWSMaxMessageSize
	}
	if deps.WS.PingInterval <= 0 {
		deps.WS.PingInterval = defaultWSPingInterval
	}
	if deps.WS.PongTimeout <= 0 {
		deps.WS.PongTimeout = defaultWSPongTimeout
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		entryID:   deps.EntryID,
		source:    deps.Source,
		registry:  deps.Registry,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		version:   deps.Version,
		startTime: time.Now(),
		tickets:   newTicketStore(),
	}
	s.feed = newSnapshotFeed(deps.WS, deps.Logger, s.currentView)
	return s, nil
}

// Start binds the listener, starts the snapshot feed and subscribes to the
// coordinator so every successful cycle is pushed to WebSocket clients.
// The HTTP server runs in a background goroutine until Close.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.feed.run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

	s.sub = s.source.Subscribe(s.broadcastSnapshot)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	s.source.Unsubscribe(s.sub)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// broadcastSnapshot is the coordinator listener.
func (s *Server) broadcastSnapshot(snap *coordinator.Snapshot) {
	if snap == nil {
		return
	}
	s.feed.publish(newSnapshotView(s.entryID, snap))
}

// currentView is the snapshot a watcher receives when it subscribes.
func (s *Server) currentView() *snapshotView {
	snap := s.source.CurrentSnapshot()
	if snap == nil {
		return nil
	}
	view := newSnapshotView(s.entryID, snap)
	return &view
}

// PON Bike Core - connected e-bike bridge
//
// This is the main entry point. It polls the PON connected-bike cloud API
// for one account, keeps the latest merged snapshot in memory, records the
// bikes in a local registry and presents them over MQTT and a local HTTP
// API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/ponbike-core/internal/api"
	"github.com/nerrad567/ponbike-core/internal/audit"
	"github.com/nerrad567/ponbike-core/internal/auth"
	"github.com/nerrad567/ponbike-core/internal/bridge"
	"github.com/nerrad567/ponbike-core/internal/coordinator"
	"github.com/nerrad567/ponbike-core/internal/device"
	"github.com/nerrad567/ponbike-core/internal/infrastructure/config"
	"github.com/nerrad567/ponbike-core/internal/infrastructure/database"
	"github.com/nerrad567/ponbike-core/internal/infrastructure/logging"
	"github.com/nerrad567/ponbike-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/ponbike-core/internal/integration"
	"github.com/nerrad567/ponbike-core/internal/metrics"
	"github.com/nerrad567/ponbike-core/internal/ponapi"
	"github.com/nerrad567/ponbike-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// Process exit codes. Each setup outcome gets its own.
const (
	exitError     = 1
	exitReauth    = 2
	exitFailSetup = 3
	exitNotReady  = 4
)

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(exitCode(err))
	}
}

// exitCode maps a run error onto the process exit status.
func exitCode(err error) int {
	switch {
	case errors.Is(err, integration.ErrReauthRequired):
		return exitReauth
	case errors.Is(err, integration.ErrSetupFailed):
		return exitFailSetup
	case errors.Is(err, integration.ErrNotReady):
		return exitNotReady
	default:
		return exitError
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting PON Bike Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise device registry
	deviceRegistry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	deviceRegistry.SetLogger(log.Component("device"))
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

	m := metrics.New()

	// Audit journal sits in front of the Prometheus recorder
	journal, err := audit.NewJournal(audit.JournalOptions{
		Repository: audit.NewSQLiteRepository(db.DB),
		EntryID:    cfg.Account.EntryID,
		Next:       m,
		Logger:     log.Component("audit"),
	})
	if err != nil {
		return fmt.Errorf("creating audit journal: %w", err)
	}
	journal.Start()
	defer func() {
		log.Info("stopping audit journal")
		journal.Stop()
	}()

	coord, err := newCoordinator(cfg, m, journal, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("stopping coordinator")
		coord.Stop()
	}()

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(cfg.MQTT, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled")
	}

	// Prove the credentials with one refresh, then start the loop
	entry, err := integration.NewEntry(integration.Options{
		EntryID:     cfg.Account.EntryID,
		Coordinator: coord,
		Registry:    deviceRegistry,
		Interval:    cfg.GetPollInterval(),
		Logger:      log.Component("integration"),
	})
	if err != nil {
		return fmt.Errorf("creating integration entry: %w", err)
	}

	outcome, err := entry.Setup(ctx)
	if err != nil {
		log.Error("integration setup failed", "outcome", outcome.String(), "error", err)
		return fmt.Errorf("setting up entry %s: %w", entry.ID(), err)
	}
	defer entry.Unload()
	log.Info("integration entry ready",
		"entry_id", entry.ID(),
		"entities", len(entry.Entities()),
		"interval", cfg.GetPollInterval().String(),
	)

	// Start MQTT bridge
	if mqttClient != nil {
		mqttBridge, bridgeErr := bridge.New(bridge.Options{
			EntryID:    cfg.Account.EntryID,
			Version:    version,
			MQTTClient: mqttClient,
			Source:     coord,
			QoS:        byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0-2 by config
			Logger:     log.Component("bridge"),
			Metrics:    m,
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating MQTT bridge: %w", bridgeErr)
		}
		if startErr := mqttBridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			mqttBridge.Stop()
		}()
	}

	// Start API server
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.Component("api"),
			EntryID:  cfg.Account.EntryID,
			Source:   coord,
			Registry: deviceRegistry,
			DB:       db,
			Audit:    journal,
			Metrics:  m,
			Version:  version,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}

		apiServer, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// API, MQTT bridge, entry, MQTT, coordinator, audit journal, database.
	log.Info("PON Bike Core stopped")
	return nil
}

// newCoordinator builds the vendor client and the refresh coordinator.
// It does not fetch.
func newCoordinator(cfg *config.Config, m *metrics.Metrics, recorder coordinator.Recorder, log *logging.Logger) (*coordinator.Coordinator, error) {
	tokens, err := auth.NewOAuthProvider(cfg.OAuth, cfg.GetVendorTimeout())
	if err != nil {
		return nil, fmt.Errorf("creating token provider: %w", err)
	}

	client, err := ponapi.New(ponapi.Options{
		BaseURL:  cfg.Vendor.BaseURL,
		Timeout:  cfg.GetVendorTimeout(),
		Tokens:   tokens,
		Logger:   log.Component("ponapi"),
		Observer: m,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vendor client: %w", err)
	}

	coord, err := coordinator.New(coordinator.Options{
		Fetcher:      client,
		Logger:       log.Component("coordinator"),
		Metrics:      recorder,
		CycleTimeout: cfg.GetCycleTimeout(),
		Jitter:       cfg.GetJitter(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating coordinator: %w", err)
	}
	return coord, nil
}

// connectMQTT dials the broker and wires connection logging.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, error) {
	mqttLog := log.Component("mqtt")
	client, err := mqtt.Connect(cfg, mqtt.Hooks{
		Logger: mqttLog,
		OnConnect: func() {
			mqttLog.Debug("MQTT session established")
		},
		OnConnectionLost: func(err error) {
			mqttLog.Warn("MQTT disconnected", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)
	return client, nil
}

// getConfigPath returns the configuration file path.
// Uses PONBIKE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PONBIKE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient may be nil when MQTT is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	return nil
}

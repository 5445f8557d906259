// iotbridged is the IoT device bridge daemon.
//
// It normalizes heterogeneous device protocols behind a uniform adapter
// contract: inbound state observations are merged into a canonical
// per-device state store, and outbound commands are queued, routed to
// the owning protocol adapter, and retried with backoff.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/iotbridge-core/migrations"

	"github.com/nerrad567/iotbridge-core/internal/adapter"
	"github.com/nerrad567/iotbridge-core/internal/audit"
	bridgemqtt "github.com/nerrad567/iotbridge-core/internal/bridges/mqtt"
	"github.com/nerrad567/iotbridge-core/internal/device"
	"github.com/nerrad567/iotbridge-core/internal/dispatch"
	"github.com/nerrad567/iotbridge-core/internal/infrastructure/broker"
	"github.com/nerrad567/iotbridge-core/internal/infrastructure/config"
	"github.com/nerrad567/iotbridge-core/internal/infrastructure/database"
	"github.com/nerrad567/iotbridge-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/iotbridge-core/internal/infrastructure/logging"
	"github.com/nerrad567/iotbridge-core/internal/retry"
	"github.com/nerrad567/iotbridge-core/internal/state"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting iotbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath)

	// Embedded broker, when enabled, replaces the configured MQTT
	// endpoint so the bridge connects locally.
	if cfg.Broker.Enabled {
		embedded := broker.New(cfg.Broker)
		embedded.SetLogger(log)
		if err := embedded.Start(); err != nil {
			return fmt.Errorf("starting embedded broker: %w", err)
		}
		defer func() {
			log.Info("stopping embedded broker")
			if stopErr := embedded.Stop(); stopErr != nil {
				log.Error("error stopping embedded broker", "error", stopErr)
			}
		}()

		cfg.MQTT.Broker.Host = cfg.Broker.Host
		cfg.MQTT.Broker.Port = embedded.Port()
		log.Info("embedded broker running", "port", embedded.Port())
	}

	// State store backend.
	var store state.Store
	switch cfg.State.Backend {
	case "file":
		store = state.NewFileStore(cfg.State.Path)
		log.Info("state store ready", "backend", "file", "path", cfg.State.Path)
	default:
		store = state.NewMemoryStore()
		log.Info("state store ready", "backend", "memory")
	}

	manager := device.NewManager(store)
	manager.SetLogger(log)

	// State-change history (optional, SQLite).
	if cfg.Database.Enabled {
		db, err := database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", cfg.Database.Path)

		manager.SetHistory(device.NewSQLiteStateHistoryRepository(db.DB))
	} else {
		log.Info("state history disabled")
	}

	// Telemetry (optional, InfluxDB).
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		manager.SetTelemetry(influxClient)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Audit trail (optional, JSON-lines files).
	var recorder audit.Recorder = audit.NopRecorder{}
	if cfg.Audit.Enabled {
		fileRecorder, err := audit.NewFileRecorder(cfg.Audit.Dir)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer func() {
			if closeErr := fileRecorder.Close(); closeErr != nil {
				log.Error("error closing audit log", "error", closeErr)
			}
		}()
		recorder = fileRecorder
		log.Info("audit log ready", "dir", cfg.Audit.Dir)
	}

	// MQTT protocol adapter.
	bridge := bridgemqtt.New()
	bridge.SetLogger(log)
	if err := bridge.Initialize(bridgemqtt.BridgeConfig(cfg.MQTT)); err != nil {
		return fmt.Errorf("initializing MQTT bridge: %w", err)
	}

	registry := adapter.NewRegistry()
	if err := registry.Register(bridge); err != nil {
		return fmt.Errorf("registering MQTT bridge: %w", err)
	}

	// Observed state flows into the canonical store; devices the bridge
	// hears from for the first time are registered on the fly.
	bridge.OnDeviceStateChange(func(deviceID string, newState map[string]any) {
		if _, known := manager.GetDevice(deviceID); !known {
			if regErr := manager.RegisterDevice(device.Device{
				ID:       deviceID,
				Name:     deviceID,
				Protocol: bridge.Name(),
			}); regErr != nil {
				log.Warn("auto-registration failed", "device_id", deviceID, "error", regErr)
			}
		}
		if _, patchErr := manager.ApplyStatePatch(ctx, deviceID, newState, device.StateHistorySourceAdapter); patchErr != nil {
			log.Error("state patch failed", "device_id", deviceID, "error", patchErr)
		}
	})

	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting MQTT bridge: %w", err)
	}
	defer func() {
		log.Info("stopping MQTT bridge")
		if stopErr := bridge.Stop(context.Background()); stopErr != nil {
			log.Error("error stopping MQTT bridge", "error", stopErr)
		}
	}()
	log.Info("MQTT bridge started",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"base_topic", cfg.MQTT.BaseTopic,
	)

	// Command dispatch pipeline.
	dispatcher, err := dispatch.New(registry, cfg.Queue.Capacity, retry.Config{
		Retries:   cfg.Retry.Retries,
		BaseDelay: cfg.Retry.BaseDelay(),
		MaxDelay:  cfg.Retry.MaxDelay(),
		Jitter:    cfg.Retry.Jitter,
	})
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	dispatcher.SetLogger(log)
	dispatcher.SetRecorder(recorder)

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatcher.Run(ctx)
	}()
	defer func() {
		<-dispatchDone
		log.Info("dispatcher stopped")
	}()
	log.Info("dispatcher running", "queue_capacity", cfg.Queue.Capacity)

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path, preferring the
// IOTBRIDGE_CONFIG environment variable.
func getConfigPath() string {
	if path := os.Getenv("IOTBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// Karen - Home Automation Event Core
//
// This is the main entry point for the Karen service. Karen records
// device and presence observations as half-open intervals in SQLite,
// serves state, history and aggregates over HTTP/WebSocket, bridges
// MQTT-attached devices, and optionally mirrors changes to InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattlunn/karen-sub001/migrations"

	"github.com/mattlunn/karen-sub001/internal/api"
	"github.com/mattlunn/karen-sub001/internal/capability"
	"github.com/mattlunn/karen-sub001/internal/event"
	"github.com/mattlunn/karen-sub001/internal/infrastructure/config"
	"github.com/mattlunn/karen-sub001/internal/infrastructure/database"
	"github.com/mattlunn/karen-sub001/internal/infrastructure/logging"
	"github.com/mattlunn/karen-sub001/internal/infrastructure/mqtt"
	"github.com/mattlunn/karen-sub001/internal/infrastructure/tsdb"
	"github.com/mattlunn/karen-sub001/internal/presence"
	"github.com/mattlunn/karen-sub001/internal/providers/mqttbridge"
	"github.com/mattlunn/karen-sub001/internal/queue"
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

// capabilityDefinitions maps capability names to their property
// descriptors. The MQTT bridge handles commands for all of them; devices
// only implement the properties they actually have.
var capabilityDefinitions = map[string][]capability.PropertyDescriptor{
	"light": {
		{Name: "on", Kind: capability.KindBool, StorageKey: "on", Writeable: true},
		{Name: "brightness", Kind: capability.KindNumber, StorageKey: "brightness", Writeable: true},
	},
	"switch": {
		{Name: "on", Kind: capability.KindBool, StorageKey: "on", Writeable: true},
	},
	"thermostat": {
		{Name: "target", Kind: capability.KindNumber, StorageKey: "target", Writeable: true},
		{Name: "temperature", Kind: capability.KindNumber, StorageKey: "temperature", Writeable: false},
	},
	"sensor": {
		{Name: "value", Kind: capability.KindNumber, StorageKey: "value", Writeable: false},
	},
}

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Karen",
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
	db, err := database.Open(ctx, database.Config{
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
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Event store: the source of truth for property state
	store := event.NewStore(event.NewSQLiteRepository(db.DB))
	store.SetLogger(log)

	// Presence tracking, serialised through a single work queue
	presenceQueue := queue.New()
	presenceQueue.SetLogger(log)

	tracker := presence.NewTracker(
		presence.NewSQLiteRepository(db.DB),
		presenceQueue,
		store,
		time.Duration(cfg.Presence.ETASearchWindow)*time.Minute,
	)
	tracker.SetLogger(log)
	log.Info("presence tracker initialised",
		"eta_search_window_minutes", cfg.Presence.ETASearchWindow,
	)

	// Capability registry maps providers to command handlers
	registry := capability.NewRegistry()

	// Connect to MQTT broker and start the device bridge (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		names := make([]string, 0, len(capabilityDefinitions))
		for name := range capabilityDefinitions {
			names = append(names, name)
		}

		bridge := mqttbridge.New(mqttClient, store)
		bridge.SetLogger(log)
		bridge.Register(registry, names...)
		if startErr := bridge.Start(); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		log.Info("MQTT device bridge started", "capabilities", names)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB and mirror property changes (optional)
	var influxClient *tsdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = tsdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		mirror := tsdb.NewMirror(store, influxClient)
		mirror.SetLogger(log)
		store.OnPropertyChanged(mirror.Listener())
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the HTTP API and WebSocket server
	server, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Logger:       log,
		Store:        store,
		Tracker:      tracker,
		Registry:     registry,
		Capabilities: capabilityDefinitions,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("Karen stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses KAREN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("KAREN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when those components are
// disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *tsdb.Client, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}

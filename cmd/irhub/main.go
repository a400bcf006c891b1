// IRHub - smart-home IR bridge
//
// This is the main entry point for the IRHub application. IRHub bridges a
// cloud smart-home control plane (SYNC/QUERY/EXECUTE intents) and a fleet
// of IR-controlled appliances behind local UDP transceiver gateways:
//   - Device/remote graph registry backed by SQLite
//   - Retained-MQTT command queue between the intent handlers and the pipeline
//   - IR translation, gateway discovery and waveform dispatch
//   - OAuth account linking for the assistant platform
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/hiroag/irhub-core/migrations"

	"github.com/hiroag/irhub-core/internal/api"
	"github.com/hiroag/irhub-core/internal/auth"
	"github.com/hiroag/irhub-core/internal/bridges/ir"
	"github.com/hiroag/irhub-core/internal/homegraph"
	"github.com/hiroag/irhub-core/internal/infrastructure/config"
	"github.com/hiroag/irhub-core/internal/infrastructure/database"
	"github.com/hiroag/irhub-core/internal/infrastructure/influxdb"
	"github.com/hiroag/irhub-core/internal/infrastructure/logging"
	"github.com/hiroag/irhub-core/internal/infrastructure/mqtt"
	"github.com/hiroag/irhub-core/internal/pipeline"
	"github.com/hiroag/irhub-core/internal/queue"
	"github.com/hiroag/irhub-core/internal/registry"
	"github.com/hiroag/irhub-core/internal/state"
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

// tokenPurgeInterval is how often expired OAuth tokens are swept from SQLite.
const tokenPurgeInterval = time.Hour

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting IRHub",
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
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device/remote graph and state stores
	repo := registry.NewSQLiteRepository(db.DB)
	resolver := registry.NewResolver(repo)
	states := state.NewSQLiteStore(db.DB)

	// Token service
	tokens := auth.NewService(auth.NewTokenRepository(db.DB), cfg.OAuth)
	go purgeTokensLoop(ctx, tokens, log)

	// Connect to MQTT broker (carries the command-event queue)
	mqttClient, err := mqtt.Connect(cfg.MQTT)
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

	mqttClient.SetLogger(log.With("component", "mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	commandQueue := queue.New(mqttClient, byte(cfg.MQTT.QoS))

	// Connect to InfluxDB (optional execution metrics)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
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
	} else {
		log.Info("InfluxDB disabled")
	}

	// HomeGraph relay (optional)
	graph := homegraph.New(cfg.HomeGraph, log)
	if graph.Enabled() {
		log.Info("HomeGraph relay enabled", "base_url", cfg.HomeGraph.BaseURL)
	} else {
		log.Info("HomeGraph relay disabled")
	}

	// IR dispatcher over the UDP gateway driver
	dispatcher := ir.NewDispatcher(
		ir.NewUDPDriver(cfg.IR),
		cfg.IR.PollInterval,
		cfg.IR.DiscoveryTimeout,
		log.With("component", "ir"),
	)

	// API server (fulfillment, oauth, homegraph relay, websocket)
	apiDeps := api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log.With("component", "api"),
		Devices: resolver,
		States:  states,
		Queue:   commandQueue,
		Tokens:  tokens,
		Version: version,
	}
	if graph.Enabled() {
		apiDeps.Graph = graph
	}
	server, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Execution pipeline
	orchestratorCfg := pipeline.Config{
		Resolver:   resolver,
		Codes:      repo,
		States:     states,
		Dispatcher: dispatcher,
		Queue:      commandQueue,
		Logger:     log.With("component", "pipeline"),
		Notifier:   server.Hub(),
		Workers:    cfg.Pipeline.Workers,
		RunTimeout: cfg.Pipeline.RunTimeout,
	}
	if influxClient != nil {
		orchestratorCfg.Metrics = influxClient
	}
	orchestrator := pipeline.New(orchestratorCfg)
	orchestrator.Start(ctx)
	defer func() {
		log.Info("stopping pipeline")
		orchestrator.Stop()
	}()

	// Replay the retained command backlog and follow live events
	if err := commandQueue.Listen(orchestrator.Handle); err != nil {
		return fmt.Errorf("subscribing to command events: %w", err)
	}
	log.Info("command queue listener started")

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Pipeline
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("IRHub stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses IRHUB_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("IRHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// purgeTokensLoop sweeps expired OAuth tokens periodically until the
// context is cancelled.
func purgeTokensLoop(ctx context.Context, tokens *auth.Service, log *logging.Logger) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := tokens.PurgeExpired(ctx)
			if err != nil {
				log.Error("token purge failed", "error", err)
				continue
			}
			if removed > 0 {
				log.Info("expired tokens purged", "count", removed)
			}
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

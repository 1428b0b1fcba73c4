// Cuckoo Core - distributed chime scheduling
//
// This is the main entry point for the cuckoo core service: the single
// writer of the schedule database, the permission authority, and the driver
// of schedule evaluation for every registered playback device.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/automated-cuckoo/cuckoo-core/migrations"

	"github.com/automated-cuckoo/cuckoo-core/internal/api"
	"github.com/automated-cuckoo/cuckoo-core/internal/device"
	"github.com/automated-cuckoo/cuckoo-core/internal/identity"
	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/config"
	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/database"
	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/influxdb"
	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/logging"
	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/mqtt"
	"github.com/automated-cuckoo/cuckoo-core/internal/permission"
	"github.com/automated-cuckoo/cuckoo-core/internal/poller"
	"github.com/automated-cuckoo/cuckoo-core/internal/schedule"
	"github.com/automated-cuckoo/cuckoo-core/internal/sound"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded.
	log := logging.Default()
	log.Info("starting cuckoo core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

	// Open database and run migrations.
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories and the permission resolver.
	userRepo := identity.NewSQLiteRepository(db.DB)
	deviceRepo := device.NewSQLiteRepository(db.DB)
	grantRepo := permission.NewSQLiteRepository(db.DB)
	resolver := permission.NewResolver(grantRepo, deviceRepo, cfg.Permissions.RevokeDisablesSchedules)

	// Sound catalogue and payload resolver.
	soundStore, err := sound.NewStore(db.DB, cfg.Sounds.Dir, cfg.Sounds.MaxUploadBytes, log)
	if err != nil {
		return fmt.Errorf("initialising sound store: %w", err)
	}

	// Schedule store, service and evaluator.
	scheduleStore := schedule.NewSQLiteStore(db.DB)
	scheduleSvc := schedule.NewService(scheduleStore, userRepo, soundStore, resolver, log)
	evaluator := schedule.NewEvaluator(scheduleStore, cfg.Location(), log)
	payloadResolver := sound.NewResolver(scheduleSvc, soundStore, log)

	// MQTT push channel (optional).
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log)
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
	} else {
		log.Info("MQTT disabled; devices must poll the due endpoint")
	}

	// Firing history (optional).
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			// History is best-effort; the core runs without it.
			log.Warn("InfluxDB unavailable, firing history disabled", "error", err)
		} else {
			influxClient.SetOnError(func(err error) {
				log.Warn("InfluxDB write failed", "error", err)
			})
			defer func() {
				log.Info("closing InfluxDB")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	// API server.
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Logger:    log,
		DB:        db,
		Users:     userRepo,
		Devices:   deviceRepo,
		Resolver:  resolver,
		Schedules: scheduleSvc,
		Evaluator: evaluator,
		Sounds:    soundStore,
		Payloads:  payloadResolver,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Evaluation poller.
	if cfg.Poller.Enabled {
		// Interface conversions keep nil integrations truly nil inside the poller.
		var notifier poller.Notifier
		if mqttClient != nil {
			notifier = mqttClient
		}
		var history poller.HistoryWriter
		if influxClient != nil {
			history = influxClient
		}

		interval := time.Duration(cfg.Poller.Interval) * time.Second
		p := poller.New(deviceRepo, evaluator, notifier, history, interval, log)
		go func() {
			if runErr := p.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
				log.Error("poller stopped", "error", runErr)
			}
		}()
	} else {
		log.Info("poller disabled; evaluation only via the due endpoint")
	}

	log.Info("cuckoo core running",
		"api", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"timezone", cfg.Site.Timezone,
	)

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// getConfigPath returns the config file path from args or the default.
func getConfigPath() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	if env := os.Getenv("CUCKOO_CONFIG"); env != "" {
		return env
	}
	return defaultConfigPath
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-scenes/internal/api"
	"github.com/nerrad567/gray-logic-scenes/internal/automation"
	"github.com/nerrad567/gray-logic-scenes/internal/device"
	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-scenes/internal/state"
	"github.com/nerrad567/gray-logic-scenes/migrations"
)

// Shutdown budget for the metrics server.
const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scene engine until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

// serve starts all services and blocks until ctx is cancelled.
//
// Services are started in dependency order and shut down in reverse
// through deferred cleanup.
func serve(ctx context.Context, cfg *config.Config) error {
	log := newLogger(cfg)
	log.Info("starting Gray Logic scene engine",
		"version", version,
		"commit", commit,
		"site", cfg.Site.ID,
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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Scene registry: database first, then the optional YAML file on top
	sceneRepo := automation.NewSQLiteRepository(db.DB)
	registry := automation.NewRegistry(sceneRepo)
	registry.SetLogger(log)

	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading scene registry: %w", refreshErr)
	}
	if cfg.Engine.ScenesFile != "" {
		scenes, loadErr := automation.LoadScenesFile(cfg.Engine.ScenesFile)
		if loadErr != nil {
			return loadErr
		}
		for i := range scenes {
			registry.Put(&scenes[i])
		}
		log.Info("scenes file loaded", "path", cfg.Engine.ScenesFile, "scenes", len(scenes))
	}
	log.Info("scene registry initialised", "scenes", registry.Count())

	// Connect to MQTT broker
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
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Mirror device state from the protocol bridges
	store := state.NewStore()
	if subErr := state.NewSubscriber(store, log).Start(mqttClient, byte(cfg.MQTT.QoS)); subErr != nil {
		return subErr
	}

	// Connect to InfluxDB (optional)
	influxClient, err := connectInflux(cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	commanderOpts := []device.MQTTCommanderOption{device.WithLogger(log)}
	observers := []automation.ExecutionObserver{
		automation.NewExecutionLog(sceneRepo, log),
		automation.NewBroadcastObserver(mqttClient),
	}
	if influxClient != nil {
		commanderOpts = append(commanderOpts, device.WithRecorder(influxClient))
		observers = append(observers, automation.NewTelemetryObserver(influxClient))
	}

	// Metrics exporter (optional)
	var metrics *automation.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = automation.NewMetrics(reg)
		metricsServer := newMetricsServer(cfg.Metrics.Address, reg, func(ctx context.Context) error {
			return healthCheck(ctx, db, mqttClient, influxClient)
		})
		go func() {
			if serveErr := metricsServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				log.Error("metrics server failed", "error", serveErr)
			}
		}()
		defer func() {
			log.Info("stopping metrics server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
				log.Error("error stopping metrics server", "error", shutdownErr)
			}
		}()
		log.Info("metrics server listening", "address", cfg.Metrics.Address)
	}

	engine := automation.NewEngine(registry, automation.EngineOptions{
		States:           store,
		Commander:        device.NewMQTTCommander(mqttClient, store, commanderOpts...),
		StageConcurrency: cfg.Engine.StageConcurrency,
		CommandTimeout:   cfg.GetCommandTimeout(),
		Observers:        observers,
		Metrics:          metrics,
		Logger:           log,
	})
	defer func() {
		log.Info("stopping scene engine")
		if closeErr := engine.Close(); closeErr != nil {
			log.Error("error stopping scene engine", "error", closeErr)
		}
	}()

	// Scene HTTP API (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Address:      cfg.GetAPIAddress(),
			ReadTimeout:  cfg.GetReadTimeout(),
			WriteTimeout: cfg.GetWriteTimeout(),
			IdleTimeout:  cfg.GetIdleTimeout(),
			Logger:       log,
			Engine:       engine,
			Executions:   sceneRepo,
			Health: func(ctx context.Context) error {
				return healthCheck(ctx, db, mqttClient, influxClient)
			},
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	}

	requests := mqtt.Topics{}.AllSceneExecuteRequests()
	if subErr := mqttClient.Subscribe(requests, byte(cfg.MQTT.QoS), executeRequestHandler(ctx, engine, log)); subErr != nil {
		return fmt.Errorf("subscribing to scene requests: %w", subErr)
	}
	log.Info("listening for scene requests", "topic", requests)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("Gray Logic scene engine started")

	<-ctx.Done()
	log.Info("shutdown signal received")

	return nil
}

// connectInflux returns nil without error when InfluxDB is disabled.
func connectInflux(cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(cfg.InfluxDB)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil //nolint:nilnil // disabled is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}

// newMetricsServer serves /metrics from reg and /healthz from check.
func newMetricsServer(addr string, reg *prometheus.Registry, check func(ctx context.Context) error) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := check(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n")) //nolint:errcheck // client went away
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// sceneExecutor is the part of the engine the request handler needs.
type sceneExecutor interface {
	Execute(ctx context.Context, selector string, scope *automation.Scope) error
}

// executeRequestHandler turns messages on graylogic/core/scene/{selector}/execute
// into root executions. The payload is ignored.
func executeRequestHandler(ctx context.Context, engine sceneExecutor, log *logging.Logger) mqtt.MessageHandler {
	return func(topic string, _ []byte) error {
		selector, ok := mqtt.ParseSceneExecute(topic)
		if !ok {
			return fmt.Errorf("%w: %q", mqtt.ErrInvalidTopic, topic)
		}
		if err := engine.Execute(ctx, selector, nil); err != nil {
			return fmt.Errorf("executing scene %q: %w", selector, err)
		}
		log.Debug("scene requested over MQTT", "scene", selector)
		return nil
	}
}

// healthCheck verifies all connections are working.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// InfluxDB is optional
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

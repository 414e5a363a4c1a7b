package server

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/nicktill/thermonest/pkg/auth"
	"github.com/nicktill/thermonest/pkg/config"
	"github.com/nicktill/thermonest/pkg/export"
	"github.com/nicktill/thermonest/pkg/ingest"
	"github.com/nicktill/thermonest/pkg/presence"
	"github.com/nicktill/thermonest/pkg/query"
	"github.com/nicktill/thermonest/pkg/server/monitor"
	"github.com/nicktill/thermonest/pkg/storage"
	"github.com/nicktill/thermonest/pkg/storage/badger"
	"github.com/nicktill/thermonest/pkg/storage/influx"
	"github.com/nicktill/thermonest/pkg/storage/memory"
	"github.com/nicktill/thermonest/pkg/stream"
)

// Handlers groups the HTTP handlers mounted by SetupRoutes.
type Handlers struct {
	Query    *query.Handler
	Stream   *stream.Handler
	Presence *presence.Handler
	Ingest   *ingest.Handler
	Export   *export.Handler
}

// Monitors groups the state reported by the health and stats endpoints.
// StorageMonitor and RetentionMonitor are nil for the influx backend, which
// manages its own disk and retention.
type Monitors struct {
	Storage   *monitor.StorageMonitor
	Retention *monitor.RetentionMonitor
	Adapter   *query.Adapter
	Hub       *stream.Hub
	Presence  *presence.Registry
	Bridge    *ingest.Bridge
}

// InitializeStorage opens the configured backend.
func InitializeStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.Backend {
	case config.BackendInflux:
		log.Printf("Connecting to InfluxDB at %s (bucket %s)...", cfg.Influx.URL, cfg.Influx.Bucket)
		store := influx.New(influx.Config{
			URL:     cfg.Influx.URL,
			Token:   cfg.Influx.Token,
			Org:     cfg.Influx.Org,
			Bucket:  cfg.Influx.Bucket,
			Timeout: config.QueryTimeout,
		})
		// An unreachable store is not fatal: reads fail with 500 until it is back
		if err := store.Ping(ctx); err != nil {
			log.Printf("InfluxDB not reachable yet: %v", err)
		} else {
			log.Println("InfluxDB connection established")
		}
		return store, nil

	case config.BackendBadger:
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		log.Printf("Initializing BadgerDB storage in %s with Snappy compression...", cfg.DataDir)
		store, err := badger.New(badger.Config{
			Path:        cfg.DataDir,
			MaxMemoryMB: cfg.MaxMemoryMB,
		})
		if err != nil {
			return nil, err
		}
		log.Println("BadgerDB storage initialized successfully")
		return store, nil

	case config.BackendMemory:
		log.Println("Using in-memory storage (data is lost on restart)")
		return memory.New(), nil
	}

	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// InitializeVerifier builds the token verifier for the identity provider.
func InitializeVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	v, err := auth.NewJWKSVerifier(ctx, cfg.Auth.Domain, cfg.Auth.Audience)
	if err != nil {
		return nil, err
	}
	log.Printf("Token verification enabled (issuer https://%s/)", cfg.Auth.Domain)
	return v, nil
}

// InitializeMonitors creates the storage and retention monitors. Both stay
// nil for stores that manage their own disk and retention.
func InitializeMonitors(cfg *config.Config, store storage.Storage) Monitors {
	var m Monitors
	if _, ok := store.(*influx.Storage); ok {
		return m
	}

	m.Retention = monitor.NewRetentionMonitor(config.RetentionInterval)
	if _, ok := store.(*badger.Storage); ok {
		maxBytes := cfg.MaxStorageGB * 1024 * 1024 * 1024
		m.Storage = monitor.NewStorageMonitor(cfg.DataDir, maxBytes)
		log.Printf("Storage limit enforcement enabled: %.2f GB max", float64(maxBytes)/(1024*1024*1024))
	}
	return m
}

// InitializeHandlers creates and configures all request handlers.
func InitializeHandlers(
	cfg *config.Config,
	store storage.Storage,
	adapter *query.Adapter,
	hub *stream.Hub,
	registry *presence.Registry,
	storageMonitor *monitor.StorageMonitor,
) Handlers {
	queryHandler := query.NewHandler(adapter, cfg.Timezone)
	log.Println("Sensor query handler created")

	streamHandler := stream.NewHandler(hub, adapter, cfg.AllowedOrigins, stream.Options{Alerts: true})
	log.Println("Live stream handler created (pushes every 5s on the 1h window)")

	ingestHandler := ingest.NewHandler(store)
	if storageMonitor != nil {
		ingestHandler.SetStorageChecker(storageMonitor)
	}

	return Handlers{
		Query:    queryHandler,
		Stream:   streamHandler,
		Presence: presence.NewHandler(registry),
		Ingest:   ingestHandler,
		Export:   export.NewHandler(adapter, store),
	}
}

// InitializeBridge creates the MQTT ingest bridge, or returns nil when no
// broker is configured.
func InitializeBridge(cfg *config.Config, store storage.Storage, storageMonitor *monitor.StorageMonitor) *ingest.Bridge {
	if !cfg.MQTT.Enabled() {
		log.Println("MQTT_BROKER not set, sensor bridge disabled")
		return nil
	}
	bridge := ingest.NewBridge(store, cfg.MQTT)
	if storageMonitor != nil {
		bridge.SetStorageChecker(storageMonitor)
	}
	return bridge
}

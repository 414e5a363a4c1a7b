package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/thermonest/pkg/config"
	"github.com/nicktill/thermonest/pkg/presence"
	"github.com/nicktill/thermonest/pkg/query"
	"github.com/nicktill/thermonest/pkg/server"
	"github.com/nicktill/thermonest/pkg/stream"
)

func main() {
	log.Println("Starting Thermonest server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("Configuration: backend = %s, display zone = %s, origins = %v",
		cfg.Backend, cfg.Timezone, cfg.AllowedOrigins)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := server.InitializeStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	adapter := query.NewAdapter(store)

	var wg sync.WaitGroup

	// Live push hub
	stats := stream.NewStats()
	hub := stream.NewHub(stats)
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	log.Println("WebSocket hub started")

	// Presence registry and its sweeper
	registry := presence.NewRegistry(config.PresenceTTL, time.Now)
	sweeper := presence.NewSweeper(registry, config.PresenceSweepInterval)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Failed to start presence sweeper: %v", err)
	}

	verifier, err := server.InitializeVerifier(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize token verifier: %v", err)
	}

	monitors := server.InitializeMonitors(cfg, store)
	monitors.Adapter = adapter
	monitors.Hub = hub
	monitors.Presence = registry

	handlers := server.InitializeHandlers(cfg, store, adapter, hub, registry, monitors.Storage)

	// Sensor bridge
	if bridge := server.InitializeBridge(cfg, store, monitors.Storage); bridge != nil {
		monitors.Bridge = bridge
		wg.Add(1)
		go func() {
			defer wg.Done()
			bridge.Run(ctx)
		}()
		log.Printf("Sensor bridge started (broker %s, topic %s)", cfg.MQTT.Broker, cfg.MQTT.Topic)
	}

	maintenance := server.NewMaintenance(store, monitors.Retention)
	if err := maintenance.Start(); err != nil {
		log.Fatalf("Failed to start maintenance scheduler: %v", err)
	}

	router := mux.NewRouter()
	server.SetupRoutes(router, handlers, monitors, verifier, cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%s", cfg.Port)
		log.Println("API endpoints:")
		log.Println("   GET  /api/sensors?from=-1h       - Combined readings")
		log.Println("   GET  /api/sensors/chart          - Bucketed chart series")
		log.Println("   GET  /api/sensors/{measurement}  - Single series")
		log.Println("   GET  /api/sensors/export         - JSON/CSV export")
		log.Println("   POST /api/location               - Share location")
		log.Println("   GET  /api/active-users           - Active users")
		log.Println("   GET  /ws                         - Live push channel")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutdown signal received...")

	// Cancel before wg.Wait: the hub and bridge only return on ctx.Done.
	cancel()
	sweeper.Stop()
	maintenance.Stop()
	stats.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	log.Println("Gracefully shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown warning: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("All background tasks stopped cleanly")
	case <-time.After(5 * time.Second):
		log.Println("Some background tasks did not stop in time (forcing exit)")
	}

	log.Println("Thermonest server exited")
}

package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/thermonest/pkg/auth"
	"github.com/nicktill/thermonest/pkg/httpx"
	"github.com/nicktill/thermonest/pkg/ingest"
	"github.com/nicktill/thermonest/pkg/server/monitor"
	"github.com/nicktill/thermonest/pkg/stream"
)

var startTime = time.Now()

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Store     string                   `json:"store"`
	Retention *monitor.RetentionStatus `json:"retention,omitempty"`
	Stream    stream.StatsSnapshot     `json:"stream"`
}

// StatsResponse represents the /api/stats response.
type StatsResponse struct {
	Stream      stream.StatsSnapshot `json:"stream"`
	ActiveUsers int                  `json:"active_users"`
	Ingest      *ingest.BridgeStats  `json:"ingest,omitempty"`
}

// handleHealth returns service health status. The store breaker being open
// or retention falling behind degrades the service.
func handleHealth(m Monitors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status:  "healthy",
			Version: "1.0.0",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Store:   m.Adapter.State(),
			Stream:  m.Hub.Stats().Snapshot(),
		}
		statusCode := http.StatusOK

		if response.Store == "open" {
			response.Status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if m.Retention != nil {
			status := m.Retention.Status()
			response.Retention = &status
			if !status.Healthy && status.ConsecutiveErrors > 0 {
				response.Status = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}

		httpx.RespondJSON(w, statusCode, response)
	}
}

// handleStorageUsage returns current storage usage.
func handleStorageUsage(sm *monitor.StorageMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sm == nil {
			httpx.RespondErrorString(w, http.StatusNotFound, "storage usage is only tracked for the badger backend")
			return
		}

		usage, err := sm.Usage()
		if err != nil {
			httpx.RespondErr(w, err)
			return
		}
		httpx.RespondJSON(w, http.StatusOK, usage)
	}
}

// handleStats returns live stream and ingest counters.
func handleStats(m Monitors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := StatsResponse{
			Stream:      m.Hub.Stats().Snapshot(),
			ActiveUsers: len(m.Presence.ListActive(m.Presence.Now())),
		}
		if m.Bridge != nil {
			stats := m.Bridge.Stats()
			response.Ingest = &stats
		}
		httpx.RespondJSON(w, http.StatusOK, response)
	}
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(
	router *mux.Router,
	h Handlers,
	m Monitors,
	verifier auth.Verifier,
	allowedOrigins []string,
) {
	router.Use(httpx.RequestLog)
	router.Use(httpx.CORS(allowedOrigins))

	// Preflight requests match no GET/POST route, so give them one for the
	// CORS middleware to answer.
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	requireAuth := auth.Middleware(verifier)

	api := router.PathPrefix("/api").Subrouter()

	// Sensor reads. Fixed paths go before {measurement}.
	api.HandleFunc("/sensors", h.Query.HandleSensors).Methods("GET")
	api.HandleFunc("/sensors/chart", h.Query.HandleChart).Methods("GET")
	api.HandleFunc("/sensors/export", h.Export.HandleExport).Methods("GET")
	api.Handle("/sensors/import", requireAuth(http.HandlerFunc(h.Export.HandleImport))).Methods("POST")
	api.Handle("/sensors/readings", requireAuth(http.HandlerFunc(h.Ingest.HandleIngest))).Methods("POST")
	api.HandleFunc("/sensors/{measurement}", h.Query.HandleMeasurement).Methods("GET")

	// Presence
	api.Handle("/location", requireAuth(http.HandlerFunc(h.Presence.HandleShareLocation))).Methods("POST")
	api.Handle("/location", requireAuth(http.HandlerFunc(h.Presence.HandleActiveUsers))).Methods("GET")
	api.Handle("/active-users", requireAuth(http.HandlerFunc(h.Presence.HandleActiveUsers))).Methods("GET")
	api.Handle("/locations", requireAuth(http.HandlerFunc(h.Presence.HandleActiveUsers))).Methods("GET")

	// Operations
	api.HandleFunc("/health", handleHealth(m)).Methods("GET")
	api.HandleFunc("/storage", handleStorageUsage(m.Storage)).Methods("GET")
	api.HandleFunc("/stats", handleStats(m)).Methods("GET")

	// Live push channel
	router.Handle("/ws", h.Stream).Methods("GET")
}

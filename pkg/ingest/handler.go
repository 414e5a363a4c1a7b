package ingest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nicktill/thermonest/pkg/errdefs"
	"github.com/nicktill/thermonest/pkg/httpx"
	"github.com/nicktill/thermonest/pkg/sensor"
	"github.com/nicktill/thermonest/pkg/storage"
)

// StorageChecker reports whether the store has room for more writes.
type StorageChecker interface {
	CheckLimit() error
}

// Handler accepts readings over HTTP, for sensors that cannot speak MQTT.
type Handler struct {
	store   storage.Storage
	checker StorageChecker
	now     func() time.Time
}

// NewHandler creates a new ingest handler
func NewHandler(store storage.Storage) *Handler {
	return &Handler{store: store, now: time.Now}
}

// SetStorageChecker enables disk limit enforcement.
func (h *Handler) SetStorageChecker(c StorageChecker) {
	h.checker = c
}

// IngestRequest represents the request payload
type IngestRequest struct {
	Readings []Reading `json:"readings"`
}

// IngestResponse represents the response payload
type IngestResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// HandleIngest handles POST /api/sensors/readings. The batch is rejected
// whole if any reading is invalid.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(MaxReadingsPerRequest)*MaxPayloadBytes)

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondErr(w, fmt.Errorf("%w: invalid JSON: %v", errdefs.ErrValidation, err))
		return
	}

	if len(req.Readings) > MaxReadingsPerRequest {
		httpx.RespondErr(w, fmt.Errorf("%w: got %d", ErrTooManyReadings, len(req.Readings)))
		return
	}

	now := h.now()
	obs := make([]sensor.Observation, 0, 2*len(req.Readings))
	for i, reading := range req.Readings {
		if reading.Time.IsZero() {
			reading.Time = now
		}
		if err := ValidateReading(reading, now); err != nil {
			httpx.RespondErr(w, fmt.Errorf("invalid reading %d: %w", i, err))
			return
		}
		obs = append(obs, reading.Observations()...)
	}

	if h.checker != nil {
		if err := h.checker.CheckLimit(); err != nil {
			httpx.RespondErr(w, err)
			return
		}
	}

	if err := h.store.Write(r.Context(), obs); err != nil {
		httpx.RespondErr(w, fmt.Errorf("failed to store readings: %w", err))
		return
	}

	httpx.RespondJSON(w, http.StatusOK, IngestResponse{
		Status: "success",
		Count:  len(req.Readings),
	})
}

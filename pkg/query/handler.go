package query

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nicktill/thermonest/pkg/aggregate"
	"github.com/nicktill/thermonest/pkg/errdefs"
	"github.com/nicktill/thermonest/pkg/httpx"
	"github.com/nicktill/thermonest/pkg/sensor"
)

// DefaultWindow is used when a request carries no from parameter.
const DefaultWindow = sensor.Window24h

// Handler serves the sensor read endpoints
type Handler struct {
	fetcher Fetcher
	loc     *time.Location
}

// NewHandler creates a sensor handler. loc is the default display zone
// for chart labels.
func NewHandler(fetcher Fetcher, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{fetcher: fetcher, loc: loc}
}

// HandleSensors handles GET /api/sensors?from=-6h.
// Returns the pivoted rows of both measurements in ascending time order.
func (h *Handler) HandleSensors(w http.ResponseWriter, r *http.Request) {
	window, err := WindowParam(r)
	if err != nil {
		httpx.RespondErr(w, err)
		return
	}

	rows, err := h.fetcher.FetchCombinedRange(r.Context(), window)
	if err != nil {
		httpx.RespondErr(w, err)
		return
	}
	if rows == nil {
		rows = []sensor.Row{}
	}

	httpx.RespondJSON(w, http.StatusOK, rows)
}

// HandleChart handles GET /api/sensors/chart?from=-24h&tz=Europe/Rome.
// Returns both series bucketed for display in the viewer's zone.
func (h *Handler) HandleChart(w http.ResponseWriter, r *http.Request) {
	window, err := WindowParam(r)
	if err != nil {
		httpx.RespondErr(w, err)
		return
	}

	loc := h.loc
	if tz := r.URL.Query().Get("tz"); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			httpx.RespondErr(w, fmt.Errorf("%w: unknown time zone %q", errdefs.ErrValidation, tz))
			return
		}
	}

	rows, err := h.fetcher.FetchCombinedRange(r.Context(), window)
	if err != nil {
		httpx.RespondErr(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, aggregate.Aggregate(rows, window, loc))
}

// HandleMeasurement handles GET /api/sensors/{measurement}?from=-1h.
// Returns the same {_time, _value} points a live push carries.
func (h *Handler) HandleMeasurement(w http.ResponseWriter, r *http.Request) {
	m, err := sensor.ParseMeasurement(mux.Vars(r)["measurement"])
	if err != nil {
		httpx.RespondErr(w, err)
		return
	}

	window, err := WindowParam(r)
	if err != nil {
		httpx.RespondErr(w, err)
		return
	}

	obs, err := h.fetcher.FetchRange(r.Context(), m, window)
	if err != nil {
		httpx.RespondErr(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, sensor.Points(obs))
}

// WindowParam parses the from query parameter, defaulting to DefaultWindow
// when it is absent. Any value outside the enumerated set is rejected.
func WindowParam(r *http.Request) (sensor.Window, error) {
	values, ok := r.URL.Query()["from"]
	if !ok {
		return DefaultWindow, nil
	}
	return sensor.ParseWindow(values[0])
}

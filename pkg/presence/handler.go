package presence

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/nicktill/thermonest/pkg/auth"
	"github.com/nicktill/thermonest/pkg/errdefs"
	"github.com/nicktill/thermonest/pkg/httpx"
)

var validate = validator.New()

// maxBodyBytes bounds a location-share body
const maxBodyBytes = 16 << 10

// LocationRequest is the body of POST /api/location. Clients send either
// latitude/longitude or a [lat, lon] coords pair.
type LocationRequest struct {
	Latitude  *float64  `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64  `json:"longitude" validate:"required,gte=-180,lte=180"`
	Coords    []float64 `json:"coords,omitempty" validate:"omitempty,len=2"`
	Name      string    `json:"name" validate:"max=256"`
	Email     string    `json:"email" validate:"omitempty,email"`
	Picture   string    `json:"picture" validate:"omitempty,url"`
}

// normalize fills latitude/longitude from coords when only coords was sent.
func (req *LocationRequest) normalize() {
	if len(req.Coords) == 2 {
		if req.Latitude == nil {
			req.Latitude = &req.Coords[0]
		}
		if req.Longitude == nil {
			req.Longitude = &req.Coords[1]
		}
	}
}

// View is the listing shape of a Record.
type View struct {
	Record
	Coords [2]float64 `json:"coords"`
}

// Handler serves the location endpoints
type Handler struct {
	registry *Registry
}

// NewHandler creates a location handler backed by registry
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// HandleShareLocation handles POST /api/location.
// The user id comes from the verified identity, never from the body.
func (h *Handler) HandleShareLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.RespondErr(w, fmt.Errorf("%w: no verified identity", errdefs.ErrAuth))
		return
	}

	var req LocationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		httpx.RespondErr(w, fmt.Errorf("%w: invalid JSON: %v", errdefs.ErrValidation, err))
		return
	}
	req.normalize()

	if err := validate.Struct(req); err != nil {
		httpx.RespondErr(w, fmt.Errorf("%w: %v", errdefs.ErrValidation, err))
		return
	}

	rec := Record{
		DisplayName: firstNonEmpty(req.Name, id.Name),
		Email:       firstNonEmpty(id.Email, req.Email),
		AvatarURL:   firstNonEmpty(req.Picture, id.Picture),
		Latitude:    *req.Latitude,
		Longitude:   *req.Longitude,
	}
	h.registry.Upsert(id.Subject, rec)

	w.WriteHeader(http.StatusOK)
}

// HandleActiveUsers handles GET /api/active-users and GET /api/locations.
// Optional lat, lon and radius_km narrow the list to nearby users.
func (h *Handler) HandleActiveUsers(w http.ResponseWriter, r *http.Request) {
	records := h.registry.ListActive(h.registry.Now())

	q := r.URL.Query()
	if q.Get("radius_km") != "" {
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
		radius, errRadius := strconv.ParseFloat(q.Get("radius_km"), 64)
		if errLat != nil || errLon != nil || errRadius != nil || radius < 0 {
			httpx.RespondErr(w, fmt.Errorf("%w: lat, lon and radius_km must be numbers", errdefs.ErrValidation))
			return
		}
		records = Near(records, lat, lon, radius)
	}

	views := make([]View, len(records))
	for i, rec := range records {
		views[i] = View{Record: rec, Coords: rec.Coords()}
	}

	httpx.RespondJSON(w, http.StatusOK, views)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

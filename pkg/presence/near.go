package presence

import (
	"github.com/umahmood/haversine"
)

// DistanceKm returns the great-circle distance between two points.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: lat1, Lon: lon1},
		haversine.Coord{Lat: lat2, Lon: lon2},
	)
	return km
}

// Near returns the records within radiusKm of (lat, lon).
func Near(records []Record, lat, lon, radiusKm float64) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if DistanceKm(lat, lon, r.Latitude, r.Longitude) <= radiusKm {
			out = append(out, r)
		}
	}
	return out
}

package main

import (
	"math"
	"math/rand"
	"time"

	"github.com/nicktill/thermonest/pkg/ingest"
)

// room produces plausible readings: a daily temperature swing around base,
// humidity moving against it, plus a small random walk so consecutive
// readings differ.
type room struct {
	name     string
	baseTemp float64
	baseHum  float64
	drift    float64
	rng      *rand.Rand
}

func newRoom(name string, seed int64) *room {
	rng := rand.New(rand.NewSource(seed))
	return &room{
		name:     name,
		baseTemp: 19 + rng.Float64()*4,
		baseHum:  40 + rng.Float64()*15,
		rng:      rng,
	}
}

// sample returns the reading at ts, always inside the accepted ranges.
func (r *room) sample(ts time.Time) (temperature, humidity float64) {
	hour := float64(ts.Hour()) + float64(ts.Minute())/60
	// warmest mid-afternoon
	swing := math.Sin((hour - 9) / 24 * 2 * math.Pi)

	r.drift += (r.rng.Float64() - 0.5) * 0.2
	r.drift = clamp(r.drift, -1.5, 1.5)

	temperature = r.baseTemp + 2.5*swing + r.drift
	humidity = r.baseHum - 6*swing - 2*r.drift

	temperature = clamp(round1(temperature), ingest.MinTemperature, ingest.MaxTemperature)
	humidity = clamp(round1(humidity), ingest.MinHumidity, ingest.MaxHumidity)
	return temperature, humidity
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

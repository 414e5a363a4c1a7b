package ingest

import (
	"fmt"
	"time"

	"github.com/nicktill/thermonest/pkg/errdefs"
)

// Validation limits for incoming readings
const (
	// DHT22 operating range
	MinTemperature = -40.0
	MaxTemperature = 80.0
	MinHumidity    = 0.0
	MaxHumidity    = 100.0

	MaxSourceLength       = 64   // Maximum sensor name length
	MaxPayloadBytes       = 1024 // Maximum MQTT payload size
	MaxReadingsPerRequest = 500  // Maximum readings in single HTTP ingest request
	MaxClockSkew          = 5 * time.Minute
)

var (
	// ErrTemperatureRange is returned when a temperature is outside the sensor range
	ErrTemperatureRange = fmt.Errorf("%w: temperature out of range (%.0f..%.0f)", errdefs.ErrValidation, MinTemperature, MaxTemperature)

	// ErrHumidityRange is returned when a humidity is outside 0..100
	ErrHumidityRange = fmt.Errorf("%w: humidity out of range (%.0f..%.0f)", errdefs.ErrValidation, MinHumidity, MaxHumidity)

	// ErrMissingValue is returned when a reading lacks one of its two values
	ErrMissingValue = fmt.Errorf("%w: reading needs both temperature and humidity", errdefs.ErrValidation)

	// ErrSourceEmpty is returned when no sensor name could be determined
	ErrSourceEmpty = fmt.Errorf("%w: source cannot be empty", errdefs.ErrValidation)

	// ErrSourceTooLong is returned when a sensor name is too long
	ErrSourceTooLong = fmt.Errorf("%w: source too long (max %d chars)", errdefs.ErrValidation, MaxSourceLength)

	// ErrPayloadTooLarge is returned for oversized MQTT payloads
	ErrPayloadTooLarge = fmt.Errorf("%w: payload too large (max %d bytes)", errdefs.ErrValidation, MaxPayloadBytes)

	// ErrFutureReading is returned when a reading is stamped too far ahead of the server clock
	ErrFutureReading = fmt.Errorf("%w: reading time is in the future", errdefs.ErrValidation)

	// ErrTooManyReadings is returned when an ingest request contains too many readings
	ErrTooManyReadings = fmt.Errorf("%w: too many readings in request (max %d)", errdefs.ErrValidation, MaxReadingsPerRequest)
)

// ValidateReading checks a reading against the sensor limits
func ValidateReading(r Reading, now time.Time) error {
	if r.Source == "" {
		return ErrSourceEmpty
	}
	if len(r.Source) > MaxSourceLength {
		return fmt.Errorf("%w: %q has %d chars", ErrSourceTooLong, r.Source, len(r.Source))
	}

	if r.Temperature == nil || r.Humidity == nil {
		return ErrMissingValue
	}
	if t := *r.Temperature; t < MinTemperature || t > MaxTemperature {
		return fmt.Errorf("%w: got %.2f from %q", ErrTemperatureRange, t, r.Source)
	}
	if h := *r.Humidity; h < MinHumidity || h > MaxHumidity {
		return fmt.Errorf("%w: got %.2f from %q", ErrHumidityRange, h, r.Source)
	}

	if r.Time.After(now.Add(MaxClockSkew)) {
		return fmt.Errorf("%w: %s from %q", ErrFutureReading, r.Time.Format(time.RFC3339), r.Source)
	}
	return nil
}

package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nicktill/thermonest/pkg/errdefs"
	"github.com/nicktill/thermonest/pkg/sensor"
	"github.com/nicktill/thermonest/pkg/storage"
)

const (
	// MaxImportBatchSize is the maximum number of observations to write at once
	MaxImportBatchSize = 5000

	// DefaultImportSource tags restored observations when the caller names none
	DefaultImportSource = "restore"
)

// Importer handles restoring observations from JSON export files
type Importer struct {
	storage storage.Storage
	now     func() time.Time
}

// NewImporter creates a new importer
func NewImporter(store storage.Storage) *Importer {
	return &Importer{storage: store, now: time.Now}
}

// ImportResult contains stats about the import operation
type ImportResult struct {
	ObservationsImported int       `json:"observations_imported"`
	BatchesWritten       int       `json:"batches_written"`
	TimeRange            string    `json:"time_range"`
	ImportedAt           time.Time `json:"imported_at"`
	Errors               []string  `json:"errors,omitempty"`
}

// ImportFromJSON splits each row of an export document back into
// observations tagged with source. Invalid rows are skipped and reported.
func (im *Importer) ImportFromJSON(ctx context.Context, r io.Reader, source string) (*ImportResult, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: failed to decode JSON: %v", errdefs.ErrValidation, err)
	}
	if doc.Metadata.Version != "" && doc.Metadata.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported export version %q", errdefs.ErrValidation, doc.Metadata.Version)
	}
	if source == "" {
		source = DefaultImportSource
	}

	now := im.now()
	if len(doc.Rows) == 0 {
		return &ImportResult{TimeRange: "empty", ImportedAt: now}, nil
	}

	var validationErrors []string
	obs := make([]sensor.Observation, 0, 2*len(doc.Rows))

	for i, row := range doc.Rows {
		if err := validateImportedRow(row, now); err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("row %d: %v", i, err))
			continue
		}
		for _, m := range sensor.Measurements {
			if v := row.Field(m); v != nil {
				obs = append(obs, sensor.Observation{Time: row.Time, Value: *v, Measurement: m, Source: source})
			}
		}
	}

	// Write in batches to avoid overwhelming storage
	batchCount := 0
	for i := 0; i < len(obs); i += MaxImportBatchSize {
		end := min(i+MaxImportBatchSize, len(obs))
		if err := im.storage.Write(ctx, obs[i:end]); err != nil {
			return nil, fmt.Errorf("failed to write batch %d: %w", batchCount, err)
		}
		batchCount++
	}

	var minTime, maxTime time.Time
	for _, o := range obs {
		if minTime.IsZero() || o.Time.Before(minTime) {
			minTime = o.Time
		}
		if o.Time.After(maxTime) {
			maxTime = o.Time
		}
	}

	return &ImportResult{
		ObservationsImported: len(obs),
		BatchesWritten:       batchCount,
		TimeRange:            fmt.Sprintf("%s to %s", minTime.Format(time.RFC3339), maxTime.Format(time.RFC3339)),
		ImportedAt:           now,
		Errors:               validationErrors,
	}, nil
}

// validateImportedRow validates a row before import
func validateImportedRow(r sensor.Row, now time.Time) error {
	if r.Time.IsZero() {
		return fmt.Errorf("row timestamp cannot be zero")
	}
	if r.Temperature == nil && r.Humidity == nil {
		return fmt.Errorf("row has neither temperature nor humidity")
	}

	// Check for reasonable timestamp (not too far in past/future)
	if r.Time.Before(now.Add(-10 * 365 * 24 * time.Hour)) {
		return fmt.Errorf("timestamp too far in past: %s", r.Time)
	}
	if r.Time.After(now.Add(24 * time.Hour)) {
		return fmt.Errorf("timestamp too far in future: %s", r.Time)
	}

	return nil
}

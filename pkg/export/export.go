package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nicktill/thermonest/pkg/query"
	"github.com/nicktill/thermonest/pkg/sensor"
)

// FormatVersion is written into every JSON export and checked on import
const FormatVersion = "1.0"

// Exporter handles exporting combined sensor rows to various formats
type Exporter struct {
	fetcher query.Fetcher
	now     func() time.Time
}

// NewExporter creates a new exporter
func NewExporter(fetcher query.Fetcher) *Exporter {
	return &Exporter{fetcher: fetcher, now: time.Now}
}

// ExportOptions configures the export operation
type ExportOptions struct {
	Window sensor.Window

	// Format: "json" or "csv"
	Format string
}

// ExportResult contains stats about the export
type ExportResult struct {
	RowsExported int       `json:"rows_exported"`
	Window       string    `json:"window"`
	Format       string    `json:"format"`
	ExportedAt   time.Time `json:"exported_at"`
}

// Metadata describes a JSON export file
type Metadata struct {
	ExportedAt time.Time `json:"exported_at"`
	Window     string    `json:"window"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	RowCount   int       `json:"row_count"`
	Format     string    `json:"format"`
	Version    string    `json:"version"`
}

// Document is the JSON export file, also accepted by the importer
type Document struct {
	Metadata Metadata     `json:"metadata"`
	Rows     []sensor.Row `json:"rows"`
}

// ExportToJSON exports the window's rows as JSON to the given writer
func (e *Exporter) ExportToJSON(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	rows, err := e.fetcher.FetchCombinedRange(ctx, opts.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}

	now := e.now()
	doc := Document{
		Metadata: Metadata{
			ExportedAt: now,
			Window:     opts.Window.String(),
			StartTime:  opts.Window.Start(now),
			EndTime:    now,
			RowCount:   len(rows),
			Format:     "json",
			Version:    FormatVersion,
		},
		Rows: rows,
	}
	if doc.Rows == nil {
		doc.Rows = []sensor.Row{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return &ExportResult{
		RowsExported: len(rows),
		Window:       opts.Window.String(),
		Format:       "json",
		ExportedAt:   now,
	}, nil
}

// ExportToCSV exports the window's rows as CSV to the given writer.
// Columns are time, temperature, humidity; a missing reading is an empty cell.
func (e *Exporter) ExportToCSV(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	rows, err := e.fetcher.FetchCombinedRange(ctx, opts.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}

	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"time", "temperature", "humidity"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.Time.UTC().Format(time.RFC3339),
			formatCell(r.Temperature),
			formatCell(r.Humidity),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return &ExportResult{
		RowsExported: len(rows),
		Window:       opts.Window.String(),
		Format:       "csv",
		ExportedAt:   e.now(),
	}, nil
}

func formatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

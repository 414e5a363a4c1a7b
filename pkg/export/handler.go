package export

import (
	"bytes"
	"fmt"
	"log"
	"mime"
	"net/http"
	"time"

	"github.com/nicktill/thermonest/pkg/errdefs"
	"github.com/nicktill/thermonest/pkg/httpx"
	"github.com/nicktill/thermonest/pkg/query"
	"github.com/nicktill/thermonest/pkg/storage"
)

// maxImportBytes bounds an import upload
const maxImportBytes = 64 << 20

// Handler handles export/import HTTP endpoints
type Handler struct {
	exporter *Exporter
	importer *Importer
}

// NewHandler creates a new export/import handler. Exports read through
// fetcher; imports write straight to store.
func NewHandler(fetcher query.Fetcher, store storage.Storage) *Handler {
	return &Handler{
		exporter: NewExporter(fetcher),
		importer: NewImporter(store),
	}
}

// HandleExport handles GET /api/sensors/export
// Query params:
//   - format: "json" or "csv" (default: json)
//   - from: window token, as for the other sensor endpoints (default: 24h)
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		httpx.RespondErr(w, fmt.Errorf("%w: format must be 'json' or 'csv'", errdefs.ErrValidation))
		return
	}

	window, err := query.WindowParam(r)
	if err != nil {
		httpx.RespondErr(w, err)
		return
	}

	opts := ExportOptions{Window: window, Format: format}

	// Buffer so a failed query still gets a proper error status
	var buf bytes.Buffer
	var result *ExportResult
	if format == "json" {
		result, err = h.exporter.ExportToJSON(r.Context(), &buf, opts)
	} else {
		result, err = h.exporter.ExportToCSV(r.Context(), &buf, opts)
	}
	if err != nil {
		httpx.RespondErr(w, err)
		return
	}

	timestamp := time.Now().Format("20060102-150405")
	contentType := "application/json"
	if format == "csv" {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=thermonest-%s-%s.%s", window, timestamp, format))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("Failed to write export: %v", err)
		return
	}

	log.Printf("Exported %d rows (%s) for window %s", result.RowsExported, format, result.Window)
}

// HandleImport handles POST /api/sensors/import.
// Accepts a JSON export document; ?source= tags the restored observations.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		httpx.RespondErr(w, fmt.Errorf("%w: Content-Type must be application/json", errdefs.ErrValidation))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	result, err := h.importer.ImportFromJSON(r.Context(), r.Body, r.URL.Query().Get("source"))
	if err != nil {
		httpx.RespondErr(w, err)
		return
	}

	if len(result.Errors) > 0 {
		log.Printf("Import completed with %d validation errors", len(result.Errors))
		for i, e := range result.Errors {
			if i >= 10 {
				log.Printf("   ... and %d more errors", len(result.Errors)-10)
				break
			}
			log.Printf("   - %s", e)
		}
	}

	log.Printf("Imported %d observations in %d batches from %s", result.ObservationsImported, result.BatchesWritten, result.TimeRange)
	httpx.RespondJSON(w, http.StatusOK, result)
}

// Package export provides backup and restore of sensor readings.
//
// # Formats
//
// JSON exports carry metadata (window, time range, row count, version) and
// the combined rows of the window, one row per timestamp with temperature
// and humidity side by side. A JSON export can be imported again.
//
// CSV exports have the columns time, temperature, humidity. A missing
// reading is an empty cell, never 0. CSV is export-only.
//
// # HTTP API
//
// Export endpoint: GET /api/sensors/export
// Query parameters:
//   - format: "json" or "csv" (default: json)
//   - from: window token such as -6h or 7d (default: 24h)
//
// Example:
//
//	curl "http://localhost:5000/api/sensors/export?from=-7d&format=csv" -o week.csv
//
// Import endpoint: POST /api/sensors/import (requires a bearer token)
// Content-Type: application/json
//
//	curl -X POST "http://localhost:5000/api/sensors/import?source=backup" \
//	  -H "Authorization: Bearer $TOKEN" \
//	  -H "Content-Type: application/json" \
//	  -d @backup.json
//
// Rows older than 10 years or more than a day in the future are skipped and
// listed in the result's errors; the rest of the import proceeds. Writes go
// to the store in batches of 5,000 observations.
package export

package influx

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/nicktill/thermonest/pkg/sensor"
)

// valueField is the field every sensor point carries its reading in.
const valueField = "value"

var fluxTemplates = template.Must(template.New("flux").Parse(`
{{- define "source" -}}
from(bucket: {{ printf "%q" .Bucket }})
  |> range(start: {{ .Start }})
  |> filter(fn: (r) => {{ range $i, $m := .Measurements }}{{ if $i }} or {{ end }}r._measurement == {{ printf "%q" $m }}{{ end }})
  |> filter(fn: (r) => r._field == {{ printf "%q" .Field }})
{{- end -}}

{{- define "range" -}}
{{ template "source" . }}
  |> group()
  |> sort(columns: ["_time"])
{{- if .Limit }}
  |> limit(n: {{ .Limit }})
{{- end }}
{{- end -}}

{{- define "pivot" -}}
{{ template "source" . }}
  |> group()
  |> pivot(rowKey: ["_time"], columnKey: ["_measurement"], valueColumn: "_value")
  |> sort(columns: ["_time"])
{{- end -}}

{{- define "count" -}}
{{ template "source" . }}
  |> group()
  |> count()
{{- end -}}
`))

// fluxParams only ever holds enumerated values: the window token, the
// measurement constants, and the configured bucket.
type fluxParams struct {
	Bucket       string
	Start        string
	Measurements []sensor.Measurement
	Field        string
	Limit        int
}

func newFluxParams(bucket string, w sensor.Window, ms []sensor.Measurement, limit int) (fluxParams, error) {
	if !w.Valid() {
		return fluxParams{}, fmt.Errorf("window %d is not enumerated", int(w))
	}
	if len(ms) == 0 {
		ms = sensor.Measurements
	}
	for _, m := range ms {
		if _, err := sensor.ParseMeasurement(string(m)); err != nil {
			return fluxParams{}, err
		}
	}
	return fluxParams{
		Bucket:       bucket,
		Start:        w.Token(),
		Measurements: ms,
		Field:        valueField,
		Limit:        limit,
	}, nil
}

func renderFlux(name string, p fluxParams) (string, error) {
	var buf bytes.Buffer
	if err := fluxTemplates.ExecuteTemplate(&buf, name, p); err != nil {
		return "", fmt.Errorf("failed to render %s query: %w", name, err)
	}
	return buf.String(), nil
}

package sensor

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nicktill/thermonest/pkg/errdefs"
	"github.com/stretchr/testify/require"
)

func TestParseWindow_Enumerated(t *testing.T) {
	tests := []struct {
		token string
		want  Window
		dur   time.Duration
	}{
		{"-1h", Window1h, time.Hour},
		{"1h", Window1h, time.Hour},
		{"-6h", Window6h, 6 * time.Hour},
		{"-12h", Window12h, 12 * time.Hour},
		{"-24h", Window24h, 24 * time.Hour},
		{"-168h", Window7d, 168 * time.Hour},
		{"7d", Window7d, 168 * time.Hour},
		{"-336h", Window14d, 336 * time.Hour},
		{"-720h", Window30d, 720 * time.Hour},
		{"30d", Window30d, 720 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			w, err := ParseWindow(tt.token)
			require.NoError(t, err)
			require.Equal(t, tt.want, w)
			require.Equal(t, tt.dur, w.Duration())
		})
	}
}

func TestParseWindow_Rejects(t *testing.T) {
	for _, token := range []string{
		"", "-", "-2h", "-1h30m", "1H", "-1h ", "--1h",
		`-1h) |> drop(columns: ["_value"]`,
		"-8760h", "-5m",
	} {
		_, err := ParseWindow(token)
		require.Error(t, err, "token %q", token)
		require.True(t, errors.Is(err, errdefs.ErrInvalidRange), "token %q", token)
	}
}

func TestWindow_TokenAndClass(t *testing.T) {
	require.Equal(t, "-1h", Window1h.Token())
	require.Equal(t, "-168h", Window7d.Token())

	require.True(t, Window1h.Live())
	require.False(t, Window6h.Live())

	require.Equal(t, ClassShort, Window1h.Class())
	require.Equal(t, ClassMid, Window6h.Class())
	require.Equal(t, ClassMid, Window24h.Class())
	require.Equal(t, ClassLong, Window14d.Class())

	for _, w := range Windows() {
		require.True(t, w.Valid())
		parsed, err := ParseWindow(w.Token())
		require.NoError(t, err)
		require.Equal(t, w, parsed)
	}
	require.False(t, Window(0).Valid())
}

func TestWindow_JSON(t *testing.T) {
	var payload struct {
		Window Window `json:"window"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"window":"-24h"}`), &payload))
	require.Equal(t, Window24h, payload.Window)

	err := json.Unmarshal([]byte(`{"window":"-3h"}`), &payload)
	require.Error(t, err)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	require.JSONEq(t, `{"window":"24h"}`, string(out))
}

func TestRow_FieldOrValue(t *testing.T) {
	r := Row{Value: Float(42)}
	require.Nil(t, r.Field(Temperature))
	require.Equal(t, 42.0, *r.FieldOrValue(Temperature))

	r.Set(Temperature, 21.5)
	require.Equal(t, 21.5, *r.FieldOrValue(Temperature))
	require.Equal(t, 42.0, *r.FieldOrValue(Humidity))
}

func TestParseMeasurement(t *testing.T) {
	m, err := ParseMeasurement("humidity")
	require.NoError(t, err)
	require.Equal(t, Humidity, m)

	_, err = ParseMeasurement("pressure")
	require.ErrorIs(t, err, errdefs.ErrValidation)
}

package aggregate

import (
	"testing"
	"time"

	"github.com/nicktill/thermonest/pkg/sensor"
	"github.com/stretchr/testify/require"
)

func row(t time.Time, temp, hum *float64) sensor.Row {
	return sensor.Row{Time: t, Temperature: temp, Humidity: hum}
}

func TestAggregate_MidWindowAverage(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := []sensor.Row{
		row(t0, nil, sensor.Float(10)),
		row(t0.Add(time.Minute), nil, sensor.Float(20)),
	}

	chart := Aggregate(rows, sensor.Window6h, time.UTC)

	require.Equal(t, []string{"10:00"}, chart.Labels)
	require.Len(t, chart.Humidity, 1)
	require.NotNil(t, chart.Humidity[0])
	require.Equal(t, 15.0, *chart.Humidity[0])
	require.Equal(t, "5m", chart.Resolution)
}

func TestAggregate_EmptySeriesIsNullNotZero(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := []sensor.Row{
		row(t0, sensor.Float(21), nil),
		row(t0.Add(16*time.Minute), sensor.Float(22), sensor.Float(40)),
	}

	chart := Aggregate(rows, sensor.Window24h, time.UTC)

	require.Equal(t, []string{"10:00", "10:15"}, chart.Labels)
	require.Nil(t, chart.Humidity[0])
	require.NotNil(t, chart.Humidity[1])
	require.Equal(t, 40.0, *chart.Humidity[1])
	require.Equal(t, "15m", chart.Resolution)
}

func TestAggregate_BucketBoundaries(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := []sensor.Row{
		row(t0, sensor.Float(10), nil),
		row(t0.Add(3*time.Minute), sensor.Float(20), nil),
		row(t0.Add(6*time.Minute), sensor.Float(30), nil),
		row(t0.Add(8*time.Minute), sensor.Float(40), nil),
	}

	chart := Aggregate(rows, sensor.Window6h, time.UTC)

	require.Equal(t, []string{"12:00", "12:05"}, chart.Labels)
	require.Equal(t, 15.0, *chart.Temperature[0])
	require.Equal(t, 35.0, *chart.Temperature[1])

	chart = Aggregate(rows, sensor.Window12h, time.UTC)
	require.Equal(t, []string{"12:00"}, chart.Labels)
	require.Equal(t, 25.0, *chart.Temperature[0])
}

func TestAggregate_SameLabelOnDifferentDaysStaysApart(t *testing.T) {
	yesterday := time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC)
	today := yesterday.Add(24 * time.Hour)
	rows := []sensor.Row{
		row(yesterday, sensor.Float(18), nil),
		row(yesterday.Add(14*time.Hour), sensor.Float(20), nil),
		row(today, sensor.Float(24), nil),
	}

	chart := Aggregate(rows, sensor.Window24h, time.UTC)

	require.Equal(t, []string{"10:00", "00:00", "10:00"}, chart.Labels)
	require.Equal(t, 18.0, *chart.Temperature[0])
	require.Equal(t, 20.0, *chart.Temperature[1])
	require.Equal(t, 24.0, *chart.Temperature[2])
}

func TestAggregate_ShortWindowPassThrough(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 8, 30, 15, 0, time.UTC)
	rows := []sensor.Row{
		row(t0, sensor.Float(20), sensor.Float(45)),
		row(t0.Add(5*time.Second), sensor.Float(20.5), nil),
		{Time: t0.Add(10 * time.Second), Value: sensor.Float(46)},
	}

	chart := Aggregate(rows, sensor.Window1h, time.UTC)

	require.Equal(t, []string{"08:30:15", "08:30:20", "08:30:25"}, chart.Labels)
	require.Equal(t, 20.5, *chart.Temperature[1])
	require.Nil(t, chart.Humidity[1])
	require.Equal(t, 46.0, *chart.Humidity[2])
	require.Equal(t, "raw", chart.Resolution)
}

func TestAggregate_RawValueFallback(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 1, 0, 0, time.UTC)
	rows := []sensor.Row{
		{Time: t0, Value: sensor.Float(42)},
		row(t0.Add(time.Minute), sensor.Float(20), sensor.Float(44)),
	}

	chart := Aggregate(rows, sensor.Window6h, time.UTC)
	require.Equal(t, 43.0, *chart.Humidity[0])
}

func TestAggregate_LongWindowCalendarDayInViewerZone(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)

	// 23:30 UTC on 1 March is already 2 March in Rome
	rows := []sensor.Row{
		row(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), sensor.Float(18), nil),
		row(time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC), sensor.Float(20), nil),
		row(time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC), sensor.Float(22), nil),
	}

	utc := Aggregate(rows, sensor.Window7d, time.UTC)
	require.Equal(t, []string{"01-03", "02-03"}, utc.Labels)
	require.Equal(t, 19.0, *utc.Temperature[0])

	local := Aggregate(rows, sensor.Window7d, rome)
	require.Equal(t, []string{"01-03", "02-03"}, local.Labels)
	require.Equal(t, 18.0, *local.Temperature[0])
	require.Equal(t, 21.0, *local.Temperature[1])
	require.Equal(t, "1d", local.Resolution)
}

func TestAggregate_LongWindowIgnoresRawValue(t *testing.T) {
	rows := []sensor.Row{
		{Time: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), Value: sensor.Float(99)},
	}

	chart := Aggregate(rows, sensor.Window30d, time.UTC)
	require.Equal(t, []string{"01-03"}, chart.Labels)
	require.Nil(t, chart.Temperature[0])
	require.Nil(t, chart.Humidity[0])
}

func TestAggregate_Deterministic(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	var rows []sensor.Row
	for i := 0; i < 500; i++ {
		rows = append(rows, row(t0.Add(time.Duration(i)*time.Minute), sensor.Float(float64(i%7)), sensor.Float(float64(i%11))))
	}

	for _, w := range sensor.Windows() {
		require.Equal(t, Aggregate(rows, w, time.UTC), Aggregate(rows, w, time.UTC), w.String())
	}
}

func TestAggregate_Empty(t *testing.T) {
	chart := Aggregate(nil, sensor.Window24h, time.UTC)
	require.Empty(t, chart.Labels)
	require.NotNil(t, chart.Labels)
}

func TestSummarize(t *testing.T) {
	t0 := time.Now()
	s, ok := Summarize([]sensor.Point{
		{Time: t0, Value: 21},
		{Time: t0.Add(time.Second), Value: 27},
		{Time: t0.Add(2 * time.Second), Value: 24},
	})
	require.True(t, ok)
	require.Equal(t, 24.0, s.Latest)
	require.Equal(t, 27.0, s.Max)
	require.Equal(t, 3, s.Count)

	_, ok = Summarize(nil)
	require.False(t, ok)
}

package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rsumon/internal/modules/coverage"
)

var runStart = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func sampleRecord() coverage.MetricRecord {
	return coverage.MetricRecord{
		Timestamp:  runStart.Add(time.Second),
		FileSize:   i64(1196),
		DeltaBytes: 196,
		Rate:       2,
		Active:     true,
		Lat:        f64(36.14096492),
		Lng:        f64(-97.06743318),
		SpeedMph:   f64(12.346),
	}
}

func sampleEvent(t coverage.EventType, located bool) coverage.CoverageEvent {
	e := coverage.CoverageEvent{
		Timestamp: runStart.Add(3 * time.Second),
		Type:      t,
		Reason:    "pps=2.00 above 0.00 for 3 consecutive ticks (3s, smoothed)",
	}
	if located {
		e.Lat, e.Lng = f64(36.14), f64(-97.06)
	}
	return e
}

type recordingEmitter struct {
	metrics int
	events  int
	err     error
	closed  bool
}

func (r *recordingEmitter) EmitMetric(context.Context, coverage.MetricRecord) error {
	r.metrics++
	return r.err
}

func (r *recordingEmitter) EmitEvent(context.Context, coverage.CoverageEvent) error {
	r.events++
	return r.err
}

func (r *recordingEmitter) Close() error {
	r.closed = true
	return r.err
}

func TestMulti_FansOutDespiteErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := &recordingEmitter{err: boom}
	ok := &recordingEmitter{}
	m := Multi{failing, ok}

	err := m.EmitMetric(context.Background(), sampleRecord())
	require.ErrorIs(t, err, boom)
	require.NoError(t, Multi{ok}.EmitMetric(context.Background(), sampleRecord()))

	require.ErrorIs(t, m.EmitEvent(context.Background(), sampleEvent(coverage.EventEntry, true)), boom)
	require.Equal(t, 2, ok.metrics)
	require.Equal(t, 1, ok.events)
	require.Equal(t, 1, failing.metrics)

	require.ErrorIs(t, m.Close(), boom)
	require.True(t, ok.closed)
	require.True(t, failing.closed)
}

func TestMetricRow(t *testing.T) {
	require.Equal(t,
		[]string{"2026-03-14 10:00:01", "1196", "196", "2.00", "1", "36.14096492", "-97.06743318", "12.35"},
		MetricRow(sampleRecord()))

	empty := coverage.MetricRecord{Timestamp: runStart}
	require.Equal(t,
		[]string{"2026-03-14 10:00:00", "", "0", "0.00", "0", "", "", ""},
		MetricRow(empty))
}

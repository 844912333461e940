package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeTimeline(t *testing.T) {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	t.Run("clean timestamps kept", func(t *testing.T) {
		times, valid := NormalizeTimeline([]string{"2026-03-14 10:00:00", "2026-03-14 10:00:01", "2026-03-14 10:00:03"})
		require.Equal(t, []bool{true, true, true}, valid)
		require.Equal(t, base.Add(3*time.Second), times[2])
	})

	t.Run("coarse timestamps rebuilt at 1 Hz", func(t *testing.T) {
		raw := []string{"2026-03-14 10:00:00", "2026-03-14 10:00:00", "2026-03-14 10:00:00", "2026-03-14 10:00:01"}
		times, _ := NormalizeTimeline(raw)
		for i, ts := range times {
			require.Equal(t, base.Add(time.Duration(i)*time.Second), ts)
		}
	})

	t.Run("unparseable falls back to epoch", func(t *testing.T) {
		times, valid := NormalizeTimeline([]string{"x", "y", "2026-03-14 10:00:00"})
		require.Equal(t, time.Unix(0, 0).UTC(), times[0])
		require.Equal(t, time.Unix(2, 0).UTC(), times[2])
		require.Equal(t, []bool{true, true, true}, valid)
	})

	t.Run("isolated bad value stays unknown", func(t *testing.T) {
		_, valid := NormalizeTimeline([]string{"2026-03-14 10:00:00", "bad", "2026-03-14 10:00:02", "2026-03-14 10:00:03"})
		require.Equal(t, []bool{true, false, true, true}, valid)
	})

	t.Run("rfc3339 accepted", func(t *testing.T) {
		_, valid := NormalizeTimeline([]string{"2026-03-14T10:00:00Z", "2026-03-14T10:00:01Z"})
		require.Equal(t, []bool{true, true}, valid)
	})
}

func TestMedian(t *testing.T) {
	require.Equal(t, 0.0, median(nil))
	require.Equal(t, 2.0, median([]float64{3, 1, 2}))
	require.Equal(t, 2.5, median([]float64{4, 1, 2, 3}))
}

package analysis

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const eventsCSV = `timestamp,event_type,reason,latitude,longitude
2026-03-14 10:00:02,ENTRY,pps=1.00 above 0.00 for 3 consecutive ticks (3s; smoothed),36.00010000,-97.00000000
2026-03-14 10:00:09,EXIT,no reception for 4 consecutive ticks (4s; smoothed),,
`

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRun_WritesOutputs(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "processed")
	metrics := writeFile(t, in, "metrics.csv", metricsCSV)
	events := writeFile(t, in, "events.csv", eventsCSV)

	rep, err := Run(context.Background(), Options{
		MetricsPath:  metrics,
		EventsPath:   events,
		OutDir:       out,
		RSUs:         []RSU{{ID: "A", Lat: 36, Lon: -97}, {ID: "B", Lat: 36.002, Lon: -97}},
		UnionProfile: true,
	})
	require.NoError(t, err)
	require.Equal(t, 5, rep.Metrics)
	require.Equal(t, 2, rep.Events)
	require.Len(t, rep.Written, 5)

	enhanced := readAll(t, filepath.Join(out, "metrics_enhanced.csv"))
	require.Len(t, enhanced, 6)
	header := enhanced[0]
	require.Equal(t, []string{"t_sec", "dt_sec", "has_pkts", "time_since_last_pkt", "dist_A_m", "dist_B_m", "nearest_rsu", "dist_from_rsu_m", "dist_union_m"}, header[8:])
	require.Equal(t, "A", enhanced[1][14])
	require.Equal(t, "", enhanced[3][14], "row without a fix has empty distance cells")

	ev := readAll(t, filepath.Join(out, "events_with_distance.csv"))
	require.Len(t, ev, 3)
	require.Equal(t, "A", ev[1][7])

	union := readAll(t, filepath.Join(out, "range_profile_union.csv"))
	require.Equal(t, "dist_bin_m", union[0][0])

	nearest := readAll(t, filepath.Join(out, "range_profile_nearest.csv"))
	require.Equal(t, "nearest_rsu", nearest[0][0])

	got, err := LoadRSUs(filepath.Join(out, "rsus_used.json"))
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestRun_MissingEventsIsFine(t *testing.T) {
	in := t.TempDir()
	rep, err := Run(context.Background(), Options{
		MetricsPath:  writeFile(t, in, "metrics.csv", metricsCSV),
		EventsPath:   filepath.Join(in, "events.csv"),
		OutDir:       t.TempDir(),
		RSUs:         []RSU{{ID: "A", Lat: 36, Lon: -97}},
		UnionProfile: true,
	})
	require.NoError(t, err)
	require.Zero(t, rep.Events)
	require.Len(t, rep.Written, 3, "no events table and no union profile with one rsu")
}

func TestRun_RequiresRSUs(t *testing.T) {
	_, err := Run(context.Background(), Options{OutDir: t.TempDir()})
	require.ErrorIs(t, err, ErrNoRSUs)
}

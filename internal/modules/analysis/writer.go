// README: Output writers for enhanced metrics, events and range profiles.
package analysis

import (
	"strconv"

	"rsumon/internal/sink"
)

func distanceHeader(rsus []RSU) []string {
	h := make([]string, 0, len(rsus)+3)
	for _, r := range rsus {
		h = append(h, "dist_"+r.ID+"_m")
	}
	h = append(h, "nearest_rsu", "dist_from_rsu_m")
	if len(rsus) > 1 {
		h = append(h, "dist_union_m")
	}
	return h
}

func distanceCells(d Distances, rsus []RSU) []string {
	cells := make([]string, 0, len(rsus)+3)
	if !d.Located() {
		for range distanceHeader(rsus) {
			cells = append(cells, "")
		}
		return cells
	}
	for _, v := range d.PerRSU {
		cells = append(cells, fmtFloat(v))
	}
	cells = append(cells, d.Nearest, fmtFloat(d.NearestDist))
	if len(rsus) > 1 {
		cells = append(cells, fmtFloat(d.Union))
	}
	return cells
}

// padded copies raw, extended with empty cells up to width.
func padded(raw []string, width int) []string {
	out := make([]string, width)
	copy(out, raw)
	return out
}

// WriteEnhancedMetrics writes the input columns, with timestamps normalized,
// followed by the time, distance and optional elevation features.
func WriteEnhancedMetrics(path string, t *Table, rows []MetricRow, rsus []RSU, withElevation bool) error {
	header := append([]string{}, t.Header...)
	header = append(header, "t_sec", "dt_sec", "has_pkts", "time_since_last_pkt")
	header = append(header, distanceHeader(rsus)...)
	if withElevation {
		header = append(header, "elevation_m")
	}

	tsCol := t.index["timestamp"]
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		rec := padded(r.Raw, len(t.Header))
		if r.TimeValid {
			rec[tsCol] = r.Time.Format(sink.TimeLayout)
		}
		hasPkts := "0"
		if r.HasPkts {
			hasPkts = "1"
		}
		rec = append(rec, fmtFloat(r.TSec), fmtFloat(r.DtSec), hasPkts, fmtFloat(r.TimeSinceLastPkt))
		rec = append(rec, distanceCells(r.Distances, rsus)...)
		if withElevation {
			rec = append(rec, formatElevation(r.Elevation))
		}
		out = append(out, rec)
	}
	return writeCSV(path, header, out)
}

func WriteEvents(path string, t *Table, rows []EventRow, rsus []RSU) error {
	header := append(append([]string{}, t.Header...), distanceHeader(rsus)...)
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		rec := padded(r.Raw, len(t.Header))
		out = append(out, append(rec, distanceCells(r.Distances, rsus)...))
	}
	return writeCSV(path, header, out)
}

// WriteProfile writes one row per bin. The nearest_rsu column is present
// only when the profile is split per RSU.
func WriteProfile(path string, bins []ProfileBin) error {
	perRSU := false
	for _, b := range bins {
		if b.RSU != "" {
			perRSU = true
			break
		}
	}
	header := []string{"dist_bin_m", "n_samples", "coverage_fraction", "mean_delta_bytes", "mean_time_since_last_pkt", "dist_bin_center_m"}
	if perRSU {
		header = append([]string{"nearest_rsu"}, header...)
	}
	out := make([][]string, 0, len(bins))
	for _, b := range bins {
		rec := []string{
			fmtFloat(b.BinM),
			strconv.Itoa(b.Samples),
			fmtFloat(b.CoverageFraction),
			fmtFloat(b.MeanDeltaBytes),
			fmtFloat(b.MeanTimeSinceLastPkt),
			fmtFloat(b.CenterM),
		}
		if perRSU {
			rec = append([]string{b.RSU}, rec...)
		}
		out = append(out, rec)
	}
	return writeCSV(path, header, out)
}

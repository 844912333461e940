// README: Time and distance features for metrics and events rows.
package analysis

import (
	"math"

	"rsumon/internal/modules/coverage"
	"rsumon/internal/types"
)

// BuildMetricRows parses a metrics table and derives the time features:
// seconds since the first row, gap to the previous row, packet presence and
// time since the last packet. Rows with an unknown time contribute a zero gap.
func BuildMetricRows(t *Table) []MetricRow {
	raw := make([]string, len(t.Rows))
	for i := range t.Rows {
		raw[i] = t.Value(i, "timestamp")
	}
	times, valid := NormalizeTimeline(raw)

	rows := make([]MetricRow, len(t.Rows))
	var sinceLast float64
	for i := range t.Rows {
		r := &rows[i]
		r.Raw = t.Rows[i]
		r.Time, r.TimeValid = times[i], valid[i]
		r.DeltaBytes, _ = t.Float(i, "delta_bytes")
		r.HasPkts = r.DeltaBytes > 0
		r.Pos = position(t, i)

		if r.TimeValid && rows[0].TimeValid {
			r.TSec = r.Time.Sub(rows[0].Time).Seconds()
		}
		if i > 0 && r.TimeValid && rows[i-1].TimeValid {
			r.DtSec = r.Time.Sub(rows[i-1].Time).Seconds()
		}

		switch {
		case i == 0, r.HasPkts:
			sinceLast = 0
		default:
			sinceLast += r.DtSec
		}
		r.TimeSinceLastPkt = sinceLast
	}
	return rows
}

func BuildEventRows(t *Table) []EventRow {
	rows := make([]EventRow, len(t.Rows))
	for i := range t.Rows {
		rows[i].Raw = t.Rows[i]
		rows[i].Time, _ = parseTime(t.Value(i, "timestamp"))
		rows[i].Pos = position(t, i)
	}
	return rows
}

// ComputeDistances measures p against every RSU. The union distance is the
// minimum across RSUs and equals the nearest distance.
func ComputeDistances(p *types.Point, rsus []RSU) Distances {
	if p == nil || len(rsus) == 0 {
		return Distances{}
	}
	d := Distances{PerRSU: make([]float64, len(rsus)), NearestDist: math.Inf(1)}
	for i, r := range rsus {
		dist := coverage.HaversineMeters(p.Lat, p.Lng, r.Lat, r.Lon)
		d.PerRSU[i] = dist
		if dist < d.NearestDist {
			d.NearestDist = dist
			d.Nearest = r.ID
		}
	}
	d.Union = d.NearestDist
	return d
}

func AddMetricDistances(rows []MetricRow, rsus []RSU) {
	for i := range rows {
		rows[i].Distances = ComputeDistances(rows[i].Pos, rsus)
	}
}

func AddEventDistances(rows []EventRow, rsus []RSU) {
	for i := range rows {
		rows[i].Distances = ComputeDistances(rows[i].Pos, rsus)
	}
}

func position(t *Table, row int) *types.Point {
	lat, okLat := t.Float(row, "latitude")
	lng, okLng := t.Float(row, "longitude")
	if !okLat || !okLng {
		return nil
	}
	p := types.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return nil
	}
	return &p
}

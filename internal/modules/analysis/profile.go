// README: Range profiles: coverage statistics per distance bin.
package analysis

import (
	"math"
	"sort"
)

type binKey struct {
	rsu string
	bin float64
}

type binAcc struct {
	n, pkts          int
	deltaSum, gapSum float64
}

// NearestProfile bins located rows by distance to their nearest RSU. Bins
// are split per RSU when rows are nearest to more than one site.
func NearestProfile(rows []MetricRow, binM float64) []ProfileBin {
	seen := map[string]struct{}{}
	for _, r := range rows {
		if r.Located() {
			seen[r.Nearest] = struct{}{}
		}
	}
	perRSU := len(seen) > 1
	return profile(rows, binM, func(r MetricRow) (binKey, bool) {
		if !r.Located() {
			return binKey{}, false
		}
		k := binKey{bin: binStart(r.NearestDist, binM)}
		if perRSU {
			k.rsu = r.Nearest
		}
		return k, true
	})
}

// UnionProfile bins located rows by their minimum distance across all RSUs.
func UnionProfile(rows []MetricRow, binM float64) []ProfileBin {
	return profile(rows, binM, func(r MetricRow) (binKey, bool) {
		if !r.Located() {
			return binKey{}, false
		}
		return binKey{bin: binStart(r.Union, binM)}, true
	})
}

func profile(rows []MetricRow, binM float64, key func(MetricRow) (binKey, bool)) []ProfileBin {
	acc := map[binKey]*binAcc{}
	for _, r := range rows {
		k, ok := key(r)
		if !ok {
			continue
		}
		a := acc[k]
		if a == nil {
			a = &binAcc{}
			acc[k] = a
		}
		a.n++
		if r.HasPkts {
			a.pkts++
		}
		a.deltaSum += r.DeltaBytes
		a.gapSum += r.TimeSinceLastPkt
	}

	out := make([]ProfileBin, 0, len(acc))
	for k, a := range acc {
		n := float64(a.n)
		out = append(out, ProfileBin{
			RSU:                  k.rsu,
			BinM:                 k.bin,
			Samples:              a.n,
			CoverageFraction:     float64(a.pkts) / n,
			MeanDeltaBytes:       a.deltaSum / n,
			MeanTimeSinceLastPkt: a.gapSum / n,
			CenterM:              k.bin + binM/2,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RSU != out[j].RSU {
			return out[i].RSU < out[j].RSU
		}
		return out[i].BinM < out[j].BinM
	})
	return out
}

func binStart(d, binM float64) float64 {
	return math.Floor(d/binM) * binM
}

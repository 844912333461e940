// README: Timestamp normalization for logged runs with coarse or broken clocks.
package analysis

import (
	"slices"
	"strings"
	"time"
)

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
}

const (
	// Above this share of unparseable values the column is ignored entirely.
	maxUnparseableFrac = 0.5
	// Above this share of zero gaps the timeline is considered too coarse.
	maxZeroGapFrac = 0.2
)

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeTimeline parses raw timestamps. When most values are unparseable
// it returns a 1 Hz timeline from the Unix epoch; when the parsed values are
// too coarse (many duplicates or a zero median gap) it returns a 1 Hz
// timeline from the first parsed value. valid marks rows whose time is known.
func NormalizeTimeline(raw []string) (times []time.Time, valid []bool) {
	n := len(raw)
	times = make([]time.Time, n)
	valid = make([]bool, n)
	var parsed []time.Time
	var first time.Time
	for i, s := range raw {
		if t, ok := parseTime(s); ok {
			times[i], valid[i] = t, true
			if len(parsed) == 0 {
				first = t
			}
			parsed = append(parsed, t)
		}
	}
	if n == 0 {
		return times, valid
	}

	if float64(n-len(parsed))/float64(n) > maxUnparseableFrac {
		return synthetic(time.Unix(0, 0).UTC(), n)
	}

	sorted := slices.Clone(parsed)
	slices.SortFunc(sorted, func(a, b time.Time) int { return a.Compare(b) })
	if len(sorted) > 1 {
		gaps := make([]float64, 0, len(sorted)-1)
		zero := 0
		for i := 1; i < len(sorted); i++ {
			g := sorted[i].Sub(sorted[i-1]).Seconds()
			if g == 0 {
				zero++
			}
			gaps = append(gaps, g)
		}
		if float64(zero)/float64(len(gaps)) > maxZeroGapFrac || median(gaps) == 0 {
			return synthetic(first, n)
		}
	}
	return times, valid
}

func synthetic(base time.Time, n int) ([]time.Time, []bool) {
	times := make([]time.Time, n)
	valid := make([]bool, n)
	for i := range times {
		times[i] = base.Add(time.Duration(i) * time.Second)
		valid[i] = true
	}
	return times, valid
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := slices.Clone(v)
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

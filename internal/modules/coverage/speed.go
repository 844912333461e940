// README: Speed estimator: geodesic distance between consecutive fixes over elapsed wall-clock time.
package coverage

import (
	"time"

	"rsumon/internal/types"
)

// EstimateSpeed returns the speed in mph between prev and cur along with the
// fix to remember for the next tick. A missing cur keeps prev so isolated gaps
// do not break the chain; speed is nil without a prior fix or when elapsed
// time is not positive.
func EstimateSpeed(prev *TimedFix, cur *types.Point, at time.Time) (*float64, *TimedFix) {
	if cur == nil {
		return nil, prev
	}
	next := &TimedFix{Point: *cur, At: at}
	if prev == nil {
		return nil, next
	}
	elapsed := at.Sub(prev.At).Seconds()
	if elapsed <= 0 {
		return nil, next
	}
	dist := HaversineMeters(prev.Point.Lat, prev.Point.Lng, cur.Lat, cur.Lng)
	mph := dist / elapsed * mpsToMph
	return &mph, next
}

// README: Coverage engine data model: per-tick samples, metric records, boundary events.
package coverage

import (
	"time"

	"rsumon/internal/types"
)

type State string

const (
	StateOutside State = "OUTSIDE"
	StateInside  State = "INSIDE"
)

type EventType string

const (
	EventEntry EventType = "ENTRY"
	EventExit  EventType = "EXIT"
)

// Sample is the raw input of one tick. Size and Fix are nil when the
// corresponding remote read failed or timed out.
type Sample struct {
	Time time.Time
	Size *int64
	Fix  *types.Point
}

// MetricRecord is produced for every tick, including ticks with failed reads.
type MetricRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	FileSize   *int64    `json:"file_size"`
	DeltaBytes int64     `json:"delta_bytes"`
	Rate       float64   `json:"smoothed_rate"`
	Active     bool      `json:"activity"`
	Lat        *float64  `json:"latitude"`
	Lng        *float64  `json:"longitude"`
	SpeedMph   *float64  `json:"speed_mph"`
}

// ActivityValue returns the activity indicator as 0 or 1.
func (r MetricRecord) ActivityValue() float64 {
	if r.Active {
		return 1
	}
	return 0
}

type CoverageEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"event_type"`
	Reason    string    `json:"reason"`
	Lat       *float64  `json:"latitude"`
	Lng       *float64  `json:"longitude"`
}

// Position returns the event location, if one was known at trigger time.
func (e CoverageEvent) Position() (types.Point, bool) {
	if e.Lat == nil || e.Lng == nil {
		return types.Point{}, false
	}
	return types.Point{Lat: *e.Lat, Lng: *e.Lng}, true
}

// TimedFix is a position fix with the wall-clock time it was observed.
type TimedFix struct {
	Point types.Point
	At    time.Time
}

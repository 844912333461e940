// README: Offline range analysis data model: RSU sites, loaded tables, per-row features.
package analysis

import (
	"errors"
	"time"

	"rsumon/internal/types"
)

var (
	ErrBadRSU        = errors.New("bad rsu definition")
	ErrNoRSUs        = errors.New("no rsus provided")
	ErrMissingColumn = errors.New("missing required column")
	ErrNoRows        = errors.New("table has no rows")
)

type RSU struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Distances holds the per-row distance features. Nearest is empty when the
// row has no position.
type Distances struct {
	PerRSU      []float64
	Nearest     string
	NearestDist float64
	Union       float64
}

func (d Distances) Located() bool { return d.Nearest != "" }

// MetricRow is one metrics table row with its derived features.
type MetricRow struct {
	Raw              []string
	Time             time.Time
	TimeValid        bool
	TSec             float64
	DtSec            float64
	DeltaBytes       float64
	HasPkts          bool
	TimeSinceLastPkt float64
	Pos              *types.Point
	Distances
	Elevation *float64
}

type EventRow struct {
	Raw  []string
	Time time.Time
	Pos  *types.Point
	Distances
}

// ProfileBin aggregates the samples that fall into one distance bin.
type ProfileBin struct {
	RSU                  string
	BinM                 float64
	Samples              int
	CoverageFraction     float64
	MeanDeltaBytes       float64
	MeanTimeSinceLastPkt float64
	CenterM              float64
}

// README: Engine owns EngineState and turns one Sample into one MetricRecord and at most one event.
package coverage

import (
	"fmt"
	"time"

	"rsumon/internal/types"
)

type Config struct {
	Interval        time.Duration
	EntryTicks      int
	ExitTicks       int
	WindowTicks     int
	RateThreshold   float64
	PacketSizeBytes int
	// Resolution is the timestamp granularity of emitted records.
	Resolution time.Duration
}

// EngineState is everything the engine carries from one tick to the next.
type EngineState struct {
	MachineState
	PrevSize *int64     `json:"prev_size"`
	PrevFix  *TimedFix  `json:"prev_fix"`
	Window   RateWindow `json:"-"`
	LastTick time.Time  `json:"last_tick"`
	Ticks    int64      `json:"ticks"`
}

type Engine struct {
	cfg     Config
	machine Machine
	state   EngineState
}

func NewEngine(cfg Config) *Engine {
	if cfg.Resolution <= 0 {
		cfg.Resolution = time.Second
	}
	return &Engine{
		cfg:     cfg,
		machine: Machine{EntryTicks: cfg.EntryTicks, ExitTicks: cfg.ExitTicks},
		state: EngineState{
			MachineState: MachineState{Coverage: StateOutside},
			Window:       NewRateWindow(cfg.WindowTicks),
		},
	}
}

// Prime sets the delta baseline before the first tick.
func (e *Engine) Prime(size *int64) {
	if size == nil {
		return
	}
	v := *size
	e.state.PrevSize = &v
}

// State returns a copy of the current engine state.
func (e *Engine) State() EngineState {
	st := e.state
	st.Window = e.state.Window.clone()
	return st
}

// Step advances the engine by one tick.
func (e *Engine) Step(s Sample) (MetricRecord, *CoverageEvent) {
	st := &e.state
	ts := e.timestamp(s.Time)

	delta, nextSize := ComputeDelta(st.PrevSize, s.Size)
	st.PrevSize = nextSize
	st.Window.Push(delta)
	rate := st.Window.PacketsPerSecond(e.cfg.PacketSizeBytes, e.cfg.Interval.Seconds())
	active := rate > e.cfg.RateThreshold

	fix := s.Fix
	if fix != nil && !fix.Valid() {
		fix = nil
	}
	speed, nextFix := EstimateSpeed(st.PrevFix, fix, s.Time)
	st.PrevFix = nextFix

	rec := MetricRecord{
		Timestamp:  ts,
		FileSize:   copyInt(s.Size),
		DeltaBytes: delta,
		Rate:       rate,
		Active:     active,
		SpeedMph:   speed,
	}
	rec.Lat, rec.Lng = coords(fix)

	var evtType EventType
	st.MachineState, evtType = e.machine.Advance(st.MachineState, active)
	st.LastTick = ts
	st.Ticks++

	if evtType == "" {
		return rec, nil
	}
	evt := &CoverageEvent{
		Timestamp: ts,
		Type:      evtType,
		Reason:    e.reason(evtType, rate),
	}
	evt.Lat, evt.Lng = coords(fix)
	return rec, evt
}

// timestamp truncates t to the configured resolution and keeps record
// timestamps strictly increasing.
func (e *Engine) timestamp(t time.Time) time.Time {
	ts := t.Truncate(e.cfg.Resolution)
	if !e.state.LastTick.IsZero() && !ts.After(e.state.LastTick) {
		ts = e.state.LastTick.Add(e.cfg.Resolution)
	}
	return ts
}

func (e *Engine) reason(t EventType, rate float64) string {
	switch t {
	case EventEntry:
		return fmt.Sprintf("pps=%.2f above %.2f for %d consecutive ticks (%s, smoothed)",
			rate, e.cfg.RateThreshold, e.cfg.EntryTicks, time.Duration(e.cfg.EntryTicks)*e.cfg.Interval)
	case EventExit:
		return fmt.Sprintf("no reception for %d consecutive ticks (%s, smoothed)",
			e.cfg.ExitTicks, time.Duration(e.cfg.ExitTicks)*e.cfg.Interval)
	}
	return ""
}

func coords(p *types.Point) (*float64, *float64) {
	if p == nil {
		return nil, nil
	}
	lat, lng := p.Lat, p.Lng
	return &lat, &lng
}

func copyInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

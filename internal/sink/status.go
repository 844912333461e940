// README: In-memory run status for the HTTP API.
package sink

import (
	"context"
	"sync"
	"time"

	"rsumon/internal/modules/coverage"
	"rsumon/internal/types"
)

type StatusSnapshot struct {
	RunID     types.ID                 `json:"run_id"`
	StartedAt time.Time                `json:"started_at"`
	Coverage  coverage.State           `json:"coverage"`
	Ticks     int64                    `json:"ticks"`
	Latest    *coverage.MetricRecord   `json:"latest"`
	Events    []coverage.CoverageEvent `json:"-"`
}

type Status struct {
	mu        sync.RWMutex
	runID     types.ID
	startedAt time.Time
	coverage  coverage.State
	ticks     int64
	latest    *coverage.MetricRecord
	events    []coverage.CoverageEvent
}

func NewStatus(runID types.ID, startedAt time.Time) *Status {
	return &Status{runID: runID, startedAt: startedAt, coverage: coverage.StateOutside}
}

func (s *Status) EmitMetric(_ context.Context, rec coverage.MetricRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &rec
	s.ticks++
	return nil
}

func (s *Status) EmitEvent(_ context.Context, evt coverage.CoverageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	switch evt.Type {
	case coverage.EventEntry:
		s.coverage = coverage.StateInside
	case coverage.EventExit:
		s.coverage = coverage.StateOutside
	}
	return nil
}

// Snapshot returns a copy safe to use after the lock is released.
func (s *Status) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := StatusSnapshot{
		RunID:     s.runID,
		StartedAt: s.startedAt,
		Coverage:  s.coverage,
		Ticks:     s.ticks,
		Events:    append([]coverage.CoverageEvent(nil), s.events...),
	}
	if s.latest != nil {
		latest := *s.latest
		snap.Latest = &latest
	}
	return snap
}

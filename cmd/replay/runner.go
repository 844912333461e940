// README: Replay runner: loads recorded samples and evaluates every setting in the grid.
package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"rsumon/internal/modules/analysis"
	"rsumon/internal/modules/coverage"
	"rsumon/internal/types"
)

type Setting struct {
	EntryTicks    int
	ExitTicks     int
	WindowTicks   int
	RateThreshold float64
}

type Result struct {
	Setting        Setting
	Entries        int
	Exits          int
	InsideFraction float64
}

type Runner struct {
	cfg     Config
	samples []coverage.Sample
}

func NewRunner(cfg Config, samples []coverage.Sample) *Runner {
	return &Runner{cfg: cfg, samples: samples}
}

// LoadSamples rebuilds per-tick samples from a metrics table. Empty size or
// position cells become absent readings.
func LoadSamples(path string) ([]coverage.Sample, error) {
	t, err := analysis.ReadTable(path, "timestamp", "rx_size", "latitude", "longitude")
	if err != nil {
		return nil, err
	}
	raw := make([]string, len(t.Rows))
	for i := range t.Rows {
		raw[i] = t.Value(i, "timestamp")
	}
	times, _ := analysis.NormalizeTimeline(raw)

	samples := make([]coverage.Sample, len(t.Rows))
	for i := range t.Rows {
		samples[i].Time = times[i]
		if v, err := strconv.ParseInt(t.Value(i, "rx_size"), 10, 64); err == nil {
			samples[i].Size = &v
		}
		lat, okLat := t.Float(i, "latitude")
		lng, okLng := t.Float(i, "longitude")
		if okLat && okLng {
			samples[i].Fix = &types.Point{Lat: lat, Lng: lng}
		}
	}
	return samples, nil
}

func (r *Runner) settings() []Setting {
	var out []Setting
	for _, n := range r.cfg.EntryTicks {
		for _, m := range r.cfg.ExitTicks {
			for _, w := range r.cfg.WindowTicks {
				for _, th := range r.cfg.Thresholds {
					out = append(out, Setting{EntryTicks: n, ExitTicks: m, WindowTicks: w, RateThreshold: th})
				}
			}
		}
	}
	return out
}

func (r *Runner) RunAll(ctx context.Context) ([]Result, error) {
	settings := r.settings()
	for _, s := range settings {
		if s.EntryTicks < 1 || s.ExitTicks < 1 || s.WindowTicks < 1 {
			return nil, fmt.Errorf("invalid setting %+v: counts must be at least 1", s)
		}
	}
	results := make([]Result, len(settings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.cfg.Concurrency, 1))
	for i, s := range settings {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.replay(s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Entries+results[i].Exits < results[j].Entries+results[j].Exits
	})
	return results, nil
}

// replay runs the samples through a fresh engine. The first sample primes
// the delta baseline, as the live loop does.
func (r *Runner) replay(s Setting) Result {
	res := Result{Setting: s}
	if len(r.samples) == 0 {
		return res
	}
	e := coverage.NewEngine(coverage.Config{
		Interval:        r.cfg.Interval,
		EntryTicks:      s.EntryTicks,
		ExitTicks:       s.ExitTicks,
		WindowTicks:     s.WindowTicks,
		RateThreshold:   s.RateThreshold,
		PacketSizeBytes: r.cfg.PacketSizeBytes,
	})
	e.Prime(r.samples[0].Size)

	inside := 0
	ticks := r.samples[1:]
	for _, sample := range ticks {
		_, evt := e.Step(sample)
		if evt != nil {
			switch evt.Type {
			case coverage.EventEntry:
				res.Entries++
			case coverage.EventExit:
				res.Exits++
			}
		}
		if e.State().Coverage == coverage.StateInside {
			inside++
		}
	}
	if len(ticks) > 0 {
		res.InsideFraction = float64(inside) / float64(len(ticks))
	}
	return res
}

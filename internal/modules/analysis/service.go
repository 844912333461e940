// README: Analysis run: load a logged run, derive features and profiles, write the processed outputs.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const DefaultBinM = 50.0

type Options struct {
	MetricsPath  string
	EventsPath   string
	OutDir       string
	BinM         float64
	RSUs         []RSU
	UnionProfile bool

	// Elevator enables the elevation_m column when set.
	Elevator           Elevator
	ElevationCachePath string
	ElevationRound     int
}

type Report struct {
	Metrics int
	Events  int
	Written []string
}

func Run(ctx context.Context, opts Options) (Report, error) {
	var rep Report
	if len(opts.RSUs) == 0 {
		return rep, ErrNoRSUs
	}
	if opts.BinM <= 0 {
		opts.BinM = DefaultBinM
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return rep, fmt.Errorf("create out dir: %w", err)
	}

	slog.Info("loading metrics", "path", opts.MetricsPath)
	mt, err := ReadTable(opts.MetricsPath, "timestamp", "latitude", "longitude", "delta_bytes")
	if err != nil {
		return rep, err
	}
	metrics := BuildMetricRows(mt)
	AddMetricDistances(metrics, opts.RSUs)
	rep.Metrics = len(metrics)

	if opts.Elevator != nil {
		cache, err := LoadElevationCache(opts.ElevationCachePath, opts.ElevationRound)
		if err != nil {
			return rep, err
		}
		if err := AddElevation(ctx, metrics, opts.Elevator, cache); err != nil {
			return rep, fmt.Errorf("elevation: %w", err)
		}
	}

	write := func(name string, fn func(path string) error) error {
		path := filepath.Join(opts.OutDir, name)
		slog.Info("writing", "path", path)
		if err := fn(path); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		rep.Written = append(rep.Written, path)
		return nil
	}

	if err := write("metrics_enhanced.csv", func(p string) error {
		return WriteEnhancedMetrics(p, mt, metrics, opts.RSUs, opts.Elevator != nil)
	}); err != nil {
		return rep, err
	}
	if err := write("range_profile_nearest.csv", func(p string) error {
		return WriteProfile(p, NearestProfile(metrics, opts.BinM))
	}); err != nil {
		return rep, err
	}

	if opts.EventsPath != "" {
		et, err := ReadTable(opts.EventsPath, "timestamp", "latitude", "longitude")
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Info("no events table for this run", "path", opts.EventsPath)
		case err != nil:
			return rep, err
		default:
			events := BuildEventRows(et)
			AddEventDistances(events, opts.RSUs)
			rep.Events = len(events)
			if err := write("events_with_distance.csv", func(p string) error {
				return WriteEvents(p, et, events, opts.RSUs)
			}); err != nil {
				return rep, err
			}
		}
	}

	if opts.UnionProfile {
		if len(opts.RSUs) < 2 {
			slog.Warn("union profile needs at least two rsus; skipped")
		} else if err := write("range_profile_union.csv", func(p string) error {
			return WriteProfile(p, UnionProfile(metrics, opts.BinM))
		}); err != nil {
			return rep, err
		}
	}

	if err := write("rsus_used.json", func(p string) error {
		return WriteRSUs(p, opts.RSUs)
	}); err != nil {
		return rep, err
	}
	return rep, nil
}

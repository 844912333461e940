// README: Collaborator contracts for the sampling loop: remote reader, output sink, map renderer.
package monitor

import (
	"context"
	"errors"

	"rsumon/internal/config"
	"rsumon/internal/modules/coverage"
	"rsumon/internal/types"
)

var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// Reader is the remote proxy the loop polls once per tick.
type Reader interface {
	FileSize(ctx context.Context, path string) (int64, error)
	PositionFix(ctx context.Context) (types.Point, error)
	Reconnect(ctx context.Context) error
}

type Sink interface {
	EmitMetric(ctx context.Context, rec coverage.MetricRecord) error
	EmitEvent(ctx context.Context, evt coverage.CoverageEvent) error
}

// MapRenderer rewrites the map artifact from the full list of located events.
type MapRenderer interface {
	Render(events []coverage.CoverageEvent) error
}

type Config struct {
	RxFile   string
	Sampling config.SamplingConfig
}

func (c Config) engineConfig() coverage.Config {
	return coverage.Config{
		Interval:        c.Sampling.Interval,
		EntryTicks:      c.Sampling.EntryTicks,
		ExitTicks:       c.Sampling.ExitTicks,
		WindowTicks:     c.Sampling.WindowTicks,
		RateThreshold:   c.Sampling.RateThreshold,
		PacketSizeBytes: c.Sampling.PacketSizeBytes,
	}
}

// README: Output sinks receive every metric record and every boundary event of a run.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"rsumon/internal/modules/coverage"
)

// TimeLayout is the timestamp format of every tabular output.
const TimeLayout = "2006-01-02 15:04:05"

// FileStamp names per-run artifacts.
const FileStamp = "20060102_150405"

type Emitter interface {
	EmitMetric(ctx context.Context, rec coverage.MetricRecord) error
	EmitEvent(ctx context.Context, evt coverage.CoverageEvent) error
}

// Multi fans every call out to all emitters. One failing emitter does not
// keep the others from receiving the record.
type Multi []Emitter

func (m Multi) EmitMetric(ctx context.Context, rec coverage.MetricRecord) error {
	var errs []error
	for _, e := range m {
		if err := e.EmitMetric(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", e, err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) EmitEvent(ctx context.Context, evt coverage.CoverageEvent) error {
	var errs []error
	for _, e := range m {
		if err := e.EmitEvent(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", e, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every emitter that holds resources.
func (m Multi) Close() error {
	var errs []error
	for _, e := range m {
		if c, ok := e.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%T: %w", e, err))
			}
		}
	}
	return errors.Join(errs...)
}

func formatFloat(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

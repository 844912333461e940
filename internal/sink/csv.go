// README: Per-run CSV tables for metrics and events, flushed on every row.
package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"rsumon/internal/modules/coverage"
)

var (
	// Column names follow the field tool's logs so cmd/analyze reads old and
	// new runs alike: rx_size is the file size, pps the smoothed rate, pdr the
	// activity indicator and speed_mph the speed.
	MetricsHeader = []string{"timestamp", "rx_size", "delta_bytes", "pps", "pdr", "latitude", "longitude", "speed_mph"}
	EventsHeader  = []string{"timestamp", "event_type", "reason", "latitude", "longitude"}
)

type CSV struct {
	mu          sync.Mutex
	metricsFile *os.File
	eventsFile  *os.File
	metrics     *csv.Writer
	events      *csv.Writer

	MetricsPath string
	EventsPath  string
}

// NewCSV creates metrics_<stamp>.csv and events_<stamp>.csv in dir and
// writes their headers.
func NewCSV(dir string, runStart time.Time) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	stamp := runStart.Format(FileStamp)
	c := &CSV{
		MetricsPath: filepath.Join(dir, "metrics_"+stamp+".csv"),
		EventsPath:  filepath.Join(dir, "events_"+stamp+".csv"),
	}

	var err error
	if c.metricsFile, err = os.Create(c.MetricsPath); err != nil {
		return nil, fmt.Errorf("create metrics table: %w", err)
	}
	if c.eventsFile, err = os.Create(c.EventsPath); err != nil {
		_ = c.metricsFile.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}
	c.metrics = csv.NewWriter(c.metricsFile)
	c.events = csv.NewWriter(c.eventsFile)

	if err := writeRow(c.metrics, MetricsHeader); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := writeRow(c.events, EventsHeader); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *CSV) EmitMetric(_ context.Context, rec coverage.MetricRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeRow(c.metrics, MetricRow(rec))
}

func (c *CSV) EmitEvent(_ context.Context, evt coverage.CoverageEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeRow(c.events, EventRow(evt))
}

func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for _, w := range []*csv.Writer{c.metrics, c.events} {
		if w != nil {
			w.Flush()
			errs = append(errs, w.Error())
		}
	}
	for _, f := range []*os.File{c.metricsFile, c.eventsFile} {
		if f != nil {
			errs = append(errs, f.Close())
		}
	}
	return errors.Join(errs...)
}

// MetricRow renders a record in the metrics table column order.
func MetricRow(rec coverage.MetricRecord) []string {
	return []string{
		formatTime(rec.Timestamp),
		formatInt(rec.FileSize),
		strconv.FormatInt(rec.DeltaBytes, 10),
		strconv.FormatFloat(rec.Rate, 'f', 2, 64),
		strconv.Itoa(int(rec.ActivityValue())),
		formatFloat(rec.Lat, 8),
		formatFloat(rec.Lng, 8),
		formatFloat(rec.SpeedMph, 2),
	}
}

func EventRow(evt coverage.CoverageEvent) []string {
	return []string{
		formatTime(evt.Timestamp),
		string(evt.Type),
		evt.Reason,
		formatFloat(evt.Lat, 8),
		formatFloat(evt.Lng, 8),
	}
}

func writeRow(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	w.Flush()
	return w.Error()
}

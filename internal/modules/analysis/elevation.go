// README: Elevation enrichment with an on-disk cache keyed by rounded coordinates.
package analysis

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/natefinch/atomic"

	"rsumon/internal/types"
)

const elevationAttempts = 3

// Elevator is satisfied by maps.ElevationService.
type Elevator interface {
	Elevations(ctx context.Context, points []types.Point) ([]float64, error)
}

type coordKey struct{ lat, lon float64 }

type ElevationCache struct {
	path   string
	round  int
	values map[coordKey]float64
}

// LoadElevationCache reads lat_r,lon_r,elevation_m rows. A missing file
// yields an empty cache.
func LoadElevationCache(path string, round int) (*ElevationCache, error) {
	c := &ElevationCache{path: path, round: round, values: make(map[coordKey]float64)}
	if path == "" {
		return c, nil
	}
	t, err := ReadTable(path, "lat_r", "lon_r", "elevation_m")
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load elevation cache: %w", err)
	}
	for i := range t.Rows {
		lat, ok1 := t.Float(i, "lat_r")
		lon, ok2 := t.Float(i, "lon_r")
		elev, ok3 := t.Float(i, "elevation_m")
		if ok1 && ok2 && ok3 && !math.IsNaN(elev) {
			c.values[coordKey{lat, lon}] = elev
		}
	}
	return c, nil
}

func (c *ElevationCache) key(p types.Point) coordKey {
	scale := math.Pow10(c.round)
	return coordKey{math.Round(p.Lat*scale) / scale, math.Round(p.Lng*scale) / scale}
}

func (c *ElevationCache) Len() int { return len(c.values) }

// Save rewrites the cache file atomically.
func (c *ElevationCache) Save() error {
	if c.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	keys := make([]coordKey, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].lat != keys[j].lat {
			return keys[i].lat < keys[j].lat
		}
		return keys[i].lon < keys[j].lon
	})

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"lat_r", "lon_r", "elevation_m"})
	for _, k := range keys {
		_ = w.Write([]string{fmtFloat(k.lat), fmtFloat(k.lon), fmtFloat(c.values[k])})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return atomic.WriteFile(c.path, &buf)
}

// AddElevation fills Elevation on located rows. Coordinates missing from the
// cache are fetched in one lookup with retries; if that still fails those
// rows keep an empty elevation and the run continues.
func AddElevation(ctx context.Context, rows []MetricRow, el Elevator, cache *ElevationCache) error {
	var missing []coordKey
	pending := map[coordKey]struct{}{}
	unique := map[coordKey]struct{}{}
	for _, r := range rows {
		if r.Pos == nil {
			continue
		}
		k := cache.key(*r.Pos)
		unique[k] = struct{}{}
		if _, ok := cache.values[k]; ok {
			continue
		}
		if _, ok := pending[k]; !ok {
			pending[k] = struct{}{}
			missing = append(missing, k)
		}
	}
	slog.Info("elevation lookup", "unique_coords", len(unique), "missing", len(missing))

	if len(missing) > 0 {
		points := make([]types.Point, len(missing))
		for i, k := range missing {
			points[i] = types.Point{Lat: k.lat, Lng: k.lon}
		}

		var elevations []float64
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 400 * time.Millisecond
		err := backoff.Retry(func() error {
			var err error
			elevations, err = el.Elevations(ctx, points)
			return err
		}, backoff.WithContext(backoff.WithMaxRetries(b, elevationAttempts-1), ctx))
		if err != nil {
			slog.Warn("elevation lookup failed; leaving elevation empty", "attempts", elevationAttempts, "error", err)
		} else {
			for i, k := range missing {
				cache.values[k] = elevations[i]
			}
		}
	}

	for i := range rows {
		if rows[i].Pos == nil {
			continue
		}
		if v, ok := cache.values[cache.key(*rows[i].Pos)]; ok {
			v := v
			rows[i].Elevation = &v
		}
	}
	return cache.Save()
}

func formatElevation(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

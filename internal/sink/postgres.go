// README: Postgres sink: metrics batched through COPY, events inserted as they fire.
package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"rsumon/internal/modules/coverage"
	"rsumon/internal/types"
)

const (
	defaultBatchSize = 30
	// maxPendingBatches bounds the buffer while the database is unreachable.
	maxPendingBatches = 10
)

var metricColumns = []string{"run_id", "ts", "file_size", "delta_bytes", "smoothed_rate", "activity", "lat", "lon", "speed_mph"}

const createMetricsTable = `CREATE TABLE IF NOT EXISTS coverage_metrics (
    run_id        TEXT NOT NULL,
    ts            TIMESTAMPTZ NOT NULL,
    file_size     BIGINT,
    delta_bytes   BIGINT NOT NULL,
    smoothed_rate DOUBLE PRECISION NOT NULL,
    activity      SMALLINT NOT NULL,
    lat           DOUBLE PRECISION,
    lon           DOUBLE PRECISION,
    speed_mph     DOUBLE PRECISION,
    PRIMARY KEY (run_id, ts)
)`

const createEventsTable = `CREATE TABLE IF NOT EXISTS coverage_events (
    run_id     TEXT NOT NULL,
    ts         TIMESTAMPTZ NOT NULL,
    event_type TEXT NOT NULL,
    reason     TEXT NOT NULL,
    lat        DOUBLE PRECISION,
    lon        DOUBLE PRECISION,
    PRIMARY KEY (run_id, ts)
)`

const insertEvent = `INSERT INTO coverage_events (run_id, ts, event_type, reason, lat, lon)
VALUES ($1, $2, $3, $4, $5, $6)`

// DB is the subset of pgxpool.Pool the sink uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type Postgres struct {
	db        DB
	runID     types.ID
	batchSize int

	mu      sync.Mutex
	pending []coverage.MetricRecord
}

func NewPostgres(db DB, runID types.ID, batchSize int) *Postgres {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Postgres{db: db, runID: runID, batchSize: batchSize}
}

func EnsureSchema(ctx context.Context, db DB) error {
	for _, stmt := range []string{createMetricsTable, createEventsTable} {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) EmitMetric(ctx context.Context, rec coverage.MetricRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, rec)
	if over := len(p.pending) - maxPendingBatches*p.batchSize; over > 0 {
		p.pending = p.pending[over:]
	}
	if len(p.pending) < p.batchSize {
		return nil
	}
	return p.flushLocked(ctx)
}

func (p *Postgres) EmitEvent(ctx context.Context, evt coverage.CoverageEvent) error {
	_, err := p.db.Exec(ctx, insertEvent,
		string(p.runID), evt.Timestamp, string(evt.Type), evt.Reason, evt.Lat, evt.Lng)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Flush writes any buffered metric rows.
func (p *Postgres) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked(ctx)
}

func (p *Postgres) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return p.Flush(ctx)
}

// flushLocked keeps the batch on failure so the next flush retries it.
func (p *Postgres) flushLocked(ctx context.Context) error {
	if len(p.pending) == 0 {
		return nil
	}
	rows := p.pending
	_, err := p.db.CopyFrom(ctx,
		pgx.Identifier{"coverage_metrics"},
		metricColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{string(p.runID), r.Timestamp, r.FileSize, r.DeltaBytes, r.Rate, int16(r.ActivityValue()), r.Lat, r.Lng, r.SpeedMph}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy metrics: %w", err)
	}
	p.pending = p.pending[:0]
	return nil
}

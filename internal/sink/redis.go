// README: Redis sink: latest record as a hash, events on a stream and a pub/sub channel.
package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"rsumon/internal/modules/coverage"
	"rsumon/internal/types"
)

const (
	redisLatestKey     = "rsumon:latest"
	redisEventsStream  = "rsumon:events"
	redisEventsChannel = "rsumon:events"
	redisStreamMaxLen  = 10000
)

type Redis struct {
	rdb   *redis.Client
	runID types.ID
}

func NewRedis(rdb *redis.Client, runID types.ID) *Redis {
	return &Redis{rdb: rdb, runID: runID}
}

func (r *Redis) EmitMetric(ctx context.Context, rec coverage.MetricRecord) error {
	fields := map[string]any{
		"run_id":        string(r.runID),
		"timestamp":     formatTime(rec.Timestamp),
		"file_size":     formatInt(rec.FileSize),
		"delta_bytes":   rec.DeltaBytes,
		"smoothed_rate": rec.Rate,
		"activity":      int(rec.ActivityValue()),
		"latitude":      formatFloat(rec.Lat, 8),
		"longitude":     formatFloat(rec.Lng, 8),
		"speed_mph":     formatFloat(rec.SpeedMph, 2),
	}
	if err := r.rdb.HSet(ctx, redisLatestKey, fields).Err(); err != nil {
		return fmt.Errorf("hset latest: %w", err)
	}
	return nil
}

func (r *Redis) EmitEvent(ctx context.Context, evt coverage.CoverageEvent) error {
	payload, err := json.Marshal(eventMessage{RunID: r.runID, CoverageEvent: evt})
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: redisEventsStream,
		MaxLen: redisStreamMaxLen,
		Approx: true,
		Values: map[string]any{"run_id": string(r.runID), "event": payload},
	})
	pipe.Publish(ctx, redisEventsChannel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// eventMessage is the JSON shape of an event on the wire.
type eventMessage struct {
	RunID types.ID `json:"run_id"`
	coverage.CoverageEvent
}

// README: Kafka sink publishing boundary events keyed by run id.
package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"rsumon/internal/modules/coverage"
	"rsumon/internal/types"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka only publishes events; per-tick metrics stay local.
type Kafka struct {
	w     MessageWriter
	runID types.ID
}

func NewKafka(w MessageWriter, runID types.ID) *Kafka {
	return &Kafka{w: w, runID: runID}
}

func (k *Kafka) EmitMetric(context.Context, coverage.MetricRecord) error { return nil }

func (k *Kafka) EmitEvent(ctx context.Context, evt coverage.CoverageEvent) error {
	data, err := json.Marshal(eventMessage{RunID: k.runID, CoverageEvent: evt})
	if err != nil {
		return err
	}
	if err := k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(k.runID),
		Value: data,
		Time:  evt.Timestamp,
	}); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (k *Kafka) Close() error {
	return k.w.Close()
}

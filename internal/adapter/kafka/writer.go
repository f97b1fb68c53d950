package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/covid-timeseries-etl/internal/config"
	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
)

// EntityMessage is the payload published for one entity of one result.
type EntityMessage struct {
	RunID       string               `json:"run_id"`
	Universe    domain.Universe      `json:"universe"`
	DailyPolicy string               `json:"daily_policy"`
	Dates       []time.Time          `json:"dates"`
	Series      *domain.EntitySeries `json:"series"`
	GeneratedAt time.Time            `json:"generated_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes aggregation results to a Kafka topic, one message per entity.
// It implements pipeline.Publisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes every entity of the result and writes them in a single
// WriteMessages call. Entities keep their key so a compacted topic retains
// the latest series per entity.
func (w *Writer) Publish(ctx context.Context, result *domain.Result) error {
	if len(result.Cases) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, 0, len(result.Cases))
	for _, key := range result.Keys() {
		msg, err := serializeToMessage(result, result.Cases[key])
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages: %w", len(msgs), err)
	}
	w.logger.Debug("published result", "universe", result.Universe, "run_id", result.RunID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// MessageKey is the Kafka key of an entity message.
func MessageKey(u domain.Universe, entity string) string {
	return string(u) + "/" + entity
}

// serializeToMessage marshals one entity of a result into a Kafka message.
func serializeToMessage(result *domain.Result, e *domain.EntitySeries) (kafkago.Message, error) {
	data, err := json.Marshal(EntityMessage{
		RunID:       result.RunID,
		Universe:    result.Universe,
		DailyPolicy: result.Daily,
		Dates:       result.Dates,
		Series:      e,
		GeneratedAt: result.GeneratedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s series: %w", e.Key, err)
	}
	return kafkago.Message{
		Key:   []byte(MessageKey(result.Universe, e.Key)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "universe", Value: []byte(result.Universe)},
			{Key: "run_id", Value: []byte(result.RunID)},
			{Key: "generated_at", Value: []byte(result.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}

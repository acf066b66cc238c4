package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/hydro-monitor-service/internal/config"
	"github.com/couchcryptid/hydro-monitor-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes station readings to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// readingMessage is the wire form of one reading. Station travels in the
// payload so consumers need not parse the key.
type readingMessage struct {
	Station string `json:"station"`
	domain.Reading
}

// NewWriter creates a Kafka producer for the configured readings topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// Publish serializes and writes every reading of a station in a single
// WriteMessages call. Messages are keyed by station and timestamp so a
// compacted topic keeps the latest version of each row.
func (w *Writer) Publish(ctx context.Context, station string, readings []domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(readings))
	for i := range readings {
		msg, err := serializeToMessage(station, readings[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d readings: %w", len(msgs), err)
	}
	w.logger.Debug("readings published", "station", station, "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func messageKey(station string, r domain.Reading) string {
	return station + "|" + r.Timestamp.Format(time.RFC3339)
}

// serializeToMessage marshals a reading into a Kafka message.
func serializeToMessage(station string, r domain.Reading) (kafkago.Message, error) {
	data, err := json.Marshal(readingMessage{Station: station, Reading: r})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize reading: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(messageKey(station, r)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "station", Value: []byte(station)},
			{Key: "operator", Value: []byte(r.Operator)},
		},
	}, nil
}

package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"odds-value-alerts/internal/signals"
)

// Event types carried in the "type" header.
const (
	EventCycle        = "cycle_report"
	EventSharpMove    = "sharp_move"
	EventDisagreement = "disagreement"
	EventValue        = "value_signal"
)

// Publisher fans cycle results out to downstream consumers.
type Publisher interface {
	PublishReport(ctx context.Context, report signals.CycleReport) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per cycle plus one per alertable record.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
	now    func() time.Time
}

// NewKafkaPublisher builds a writer for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not provided")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic not provided")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}
	return newKafkaPublisher(writer, topic, logger), nil
}

func newKafkaPublisher(writer messageWriter, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logger.With().Str("component", "kafka_publisher").Str("topic", topic).Logger(),
		now:    time.Now,
	}
}

// PublishReport serialises the report and its records. The cycle message is keyed by
// cycle id; record messages are keyed by match id so one match stays on one partition.
func (p *KafkaPublisher) PublishReport(ctx context.Context, report signals.CycleReport) error {
	ts := p.now().UTC()
	msgs := make([]kafka.Message, 0, 1+len(report.SharpMoves)+len(report.Disagreements))

	add := func(kind, key string, v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", kind, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(key),
			Value: payload,
			Time:  ts,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(kind)},
				{Key: "cycle_id", Value: []byte(report.CycleID)},
			},
		})
		return nil
	}

	if err := add(EventCycle, report.CycleID, report); err != nil {
		return err
	}
	for _, mv := range report.SharpMoves {
		if err := add(EventSharpMove, mv.MatchID, mv); err != nil {
			return err
		}
	}
	for _, rec := range report.Disagreements {
		if err := add(EventDisagreement, rec.MatchID, rec); err != nil {
			return err
		}
	}
	for _, fv := range report.ValueSignals() {
		if err := add(EventValue, fv.MatchID, fv); err != nil {
			return err
		}
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish cycle %s: %w", report.CycleID, err)
	}
	p.logger.Debug().Str("cycle_id", report.CycleID).Int("messages", len(msgs)).Msg("published cycle report")
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ Publisher = (*KafkaPublisher)(nil)

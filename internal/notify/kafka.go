package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"hostelmon/internal/complaint"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the part of *kafka.Writer the notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes every lifecycle event to a topic, keyed by complaint id
// so all events of one complaint land on one partition.
type Kafka struct {
	writer MessageWriter
	topic  string
	log    *zap.Logger
}

// NewKafkaWriter returns a writer hashing keys to partitions.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// NewKafka wraps w.
func NewKafka(w MessageWriter, topic string, log *zap.Logger) *Kafka {
	return &Kafka{writer: w, topic: topic, log: log}
}

func (k *Kafka) Name() string { return "kafka" }

// Notify encodes ev as JSON. The resolve token never appears in it.
func (k *Kafka) Notify(ctx context.Context, ev complaint.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.Complaint.ID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", k.topic, err)
	}

	k.log.Debug("Sent event to Kafka",
		zap.String("topic", k.topic),
		zap.String("type", string(ev.Type)),
		zap.String("id", ev.Complaint.ID))
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

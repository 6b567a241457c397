package outbox

import (
	"context"
	"time"

	"github.com/richardliu001/location-service/internal/config"
	"github.com/richardliu001/location-service/internal/event"
	"github.com/segmentio/kafka-go"
)

// Publisher delivers one routed message and returns once the broker acknowledged it.
type Publisher interface {
	Publish(ctx context.Context, msg event.Message) error
}

// NewKafkaWriter builds a synchronous writer. The topic is chosen per message
// and messages with the same key land on the same partition.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.PublishTimeout,
	}
}

// KafkaPublisher publishes routed messages with kafka-go.
type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(w *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg event.Message) error {
	km, err := buildMessage(msg)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, km)
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

func buildMessage(msg event.Message) (kafka.Message, error) {
	value, err := msg.Value()
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Topic: msg.Topic,
		Key:   []byte(msg.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "eventId", Value: []byte(msg.Envelope.EventID)},
			{Key: "eventType", Value: []byte(msg.Envelope.EventType)},
		},
	}, nil
}

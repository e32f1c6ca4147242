package events

import (
	"context"

	"credhub/internal/platform/kafka/producer"
)

// Publisher is the subset of the kafka producer the sink needs.
type Publisher interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaSink publishes lifecycle events to a single topic, keyed by entity id.
type KafkaSink struct {
	publisher Publisher
	topic     string
}

// NewKafkaSink wires a sink to the given topic.
func NewKafkaSink(publisher Publisher, topic string) *KafkaSink {
	return &KafkaSink{publisher: publisher, topic: topic}
}

func (s *KafkaSink) Publish(ctx context.Context, event Event) error {
	value, err := marshalEvent(event)
	if err != nil {
		return err
	}
	return s.publisher.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(event.Key),
		Value: value,
		Headers: map[string]string{
			"event-type": event.Type,
		},
	})
}

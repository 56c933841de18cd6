package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// MessageBroker is the transport used by Relay.
type MessageBroker interface {
	SendMessage(ctx context.Context, key, value []byte) error
	ReadMessage(ctx context.Context) (key, value []byte, err error)
	Close() error
}

// KafkaBroker implements MessageBroker on segmentio/kafka-go.
type KafkaBroker struct {
	producer *kafka.Writer
	consumer *kafka.Reader
}

// NewKafkaBroker connects a writer and a reader to topic. Every instance
// reads the whole topic, so groupID should be unique per process.
func NewKafkaBroker(brokers []string, topic, groupID string) *KafkaBroker {
	producer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}

	consumer := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &KafkaBroker{producer: producer, consumer: consumer}
}

func (k *KafkaBroker) SendMessage(ctx context.Context, key, value []byte) error {
	err := k.producer.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("failed to send message to kafka: %w", err)
	}
	return nil
}

func (k *KafkaBroker) ReadMessage(ctx context.Context) (key, value []byte, err error) {
	msg, err := k.consumer.ReadMessage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read message from kafka: %w", err)
	}
	return msg.Key, msg.Value, nil
}

func (k *KafkaBroker) Close() error {
	if err := k.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	if err := k.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	return nil
}

// Relay forwards local bus events to the broker and republishes remote ones.
type Relay struct {
	bus    *Bus
	broker MessageBroker
	log    logrus.FieldLogger
}

// NewRelay creates a relay between bus and broker.
func NewRelay(bus *Bus, broker MessageBroker, log logrus.FieldLogger) *Relay {
	return &Relay{bus: bus, broker: broker, log: log.WithField("component", "relay")}
}

// Run blocks until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	local, cancel := r.bus.Subscribe(64)
	defer cancel()

	go r.consume(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-local:
			if !ok {
				return
			}
			if e.Origin != r.bus.Origin() {
				continue
			}
			payload, err := json.Marshal(e)
			if err != nil {
				r.log.WithError(err).Error("failed to encode event")
				continue
			}
			if err := r.broker.SendMessage(ctx, []byte(e.Namespace), payload); err != nil {
				r.log.WithError(err).WithField("type", e.Type).Warn("failed to relay event")
			}
		}
	}
}

func (r *Relay) consume(ctx context.Context) {
	for {
		_, value, err := r.broker.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			r.log.WithError(err).Warn("failed to read relayed event")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var e Event
		if err := json.Unmarshal(value, &e); err != nil {
			r.log.WithError(err).Warn("dropping malformed relayed event")
			continue
		}
		if e.Origin == r.bus.Origin() || e.Origin == "" {
			continue
		}
		r.bus.Publish(e)
	}
}

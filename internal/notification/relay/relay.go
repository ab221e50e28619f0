// Package relay forwards notification center events to a Kafka topic so
// processes other than the one that emitted them can react.
//
// The relay is an ordinary bus subscriber: it drains its mailbox on its own
// goroutine and never blocks the emitter. A failed send is logged and
// counted, and the relay moves on to the next event.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"sphincs.io/sphincs/internal/config"
	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/metrics"
	"sphincs.io/sphincs/internal/notification"
	"sphincs.io/sphincs/internal/pkg/logger"
)

// SubscriberName is the bus subscriber name the relay registers under.
const SubscriberName = "kafka-relay"

// NewProducer creates a synchronous producer for the configured brokers.
func NewProducer(cfg config.KafkaConfig) (sarama.SyncProducer, error) {
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5
	sc.Producer.Return.Successes = true
	sc.ClientID = cfg.ClientID

	p, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return p, nil
}

// Relay publishes every event of one subscription to topic.
type Relay struct {
	producer sarama.SyncProducer
	topic    string
	sub      *notification.Subscription
}

// New creates a relay reading from sub.
func New(producer sarama.SyncProducer, topic string, sub *notification.Subscription) *Relay {
	return &Relay{producer: producer, topic: topic, sub: sub}
}

// Run forwards events until ctx is cancelled or the subscription is closed.
func (r *Relay) Run(ctx context.Context) {
	logger.Info("kafka relay started", zap.String("topic", r.topic))
	defer logger.Info("kafka relay stopped", zap.String("topic", r.topic))

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.sub.Done():
			return
		case <-r.sub.Ready():
			for _, ev := range r.sub.Drain() {
				r.publish(ev)
			}
		}
	}
}

// Close unsubscribes from the bus and closes the producer.
func (r *Relay) Close() error {
	r.sub.Close()
	return r.producer.Close()
}

func (r *Relay) publish(ev domain.Event) {
	msg, err := Message(r.topic, ev)
	if err != nil {
		metrics.RelayPublished.WithLabelValues("error").Inc()
		logger.Error("kafka relay encode failed", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	partition, offset, err := r.producer.SendMessage(msg)
	if err != nil {
		metrics.RelayPublished.WithLabelValues("error").Inc()
		logger.Error("kafka relay send failed",
			zap.String("topic", r.topic),
			zap.String("type", string(ev.Type)),
			zap.Error(err),
		)
		return
	}
	metrics.RelayPublished.WithLabelValues("ok").Inc()
	logger.Debug("kafka relay delivered",
		zap.String("topic", r.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
}

// Message encodes ev for topic. Alert events are keyed by module so one
// channel's events stay on one partition; refresh events are keyed by type.
func Message(topic string, ev domain.Event) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	key := string(ev.Type)
	if ev.Alert != nil && ev.Alert.Module != "" {
		key = string(ev.Alert.Module)
	}
	return &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(data),
		Timestamp: ev.At,
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(ev.Type)},
		},
	}, nil
}

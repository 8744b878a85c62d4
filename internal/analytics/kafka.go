package analytics

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

var _ Sink = (*KafkaSink)(nil)

// KafkaSink publishes analytics events to a Kafka topic, keyed by session id
// so one session's activity stays ordered within a partition.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	lg       *zap.Logger
}

// NewKafkaSink creates a sync producer with idempotent, acks-all delivery.
func NewKafkaSink(brokers []string, topic string, lg *zap.Logger) (*KafkaSink, error) {
	if lg == nil {
		lg = zap.NewNop()
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}

	return &KafkaSink{producer: producer, topic: topic, lg: lg}, nil
}

// Publish implements Sink.
func (k *KafkaSink) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	partition, offset, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     k.topic,
		Key:       sarama.StringEncoder(ev.SessionID),
		Value:     sarama.ByteEncoder(data),
		Timestamp: ev.At,
	})
	if err != nil {
		return errors.Wrap(err, "send message")
	}

	k.lg.Debug("analytics event published",
		zap.String("type", ev.Type),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// Close implements Sink.
func (k *KafkaSink) Close() error {
	if err := k.producer.Close(); err != nil {
		return errors.Wrap(err, "close kafka producer")
	}
	return nil
}

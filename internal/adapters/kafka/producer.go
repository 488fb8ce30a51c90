// Package kafka publishes workflow events to a Kafka topic, keyed by user so
// one rider's events stay ordered within a partition.
package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/errors"

	"github.com/robertarktes/bus-booking-gateway/internal/events"
)

type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Timeout = 10 * time.Second
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	p, err := sarama.NewSyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	return &Producer{producer: p, topic: topic}, nil
}

// NewProducerWith wraps an existing SyncProducer.
func NewProducerWith(p sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: p, topic: topic}
}

func (p *Producer) Publish(_ context.Context, e events.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(e.UserID, 10)),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(e.Type)},
			{Key: []byte("event_id"), Value: []byte(e.ID.String())},
		},
		Timestamp: e.OccurredAt,
	})
	return errors.Wrapf(err, "send %s", e.Type)
}

func (p *Producer) Close() error {
	return p.producer.Close()
}

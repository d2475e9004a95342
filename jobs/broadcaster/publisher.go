package broadcaster

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/errors"
)

// Publisher delivers one outbox record downstream. A nil value means the
// cell was cleared.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

// SaramaPublisher sends records through a sarama sync producer.
type SaramaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewSaramaConfig is the producer configuration used by NewSaramaPublisher.
func NewSaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

func NewSaramaPublisher(brokers []string, topic string) (*SaramaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewSaramaConfig())
	if err != nil {
		return nil, errors.Wrap(err, "broadcaster: sarama producer")
	}
	return NewSaramaPublisherFromProducer(producer, topic), nil
}

func NewSaramaPublisherFromProducer(p sarama.SyncProducer, topic string) *SaramaPublisher {
	return &SaramaPublisher{producer: p, topic: topic}
}

func (p *SaramaPublisher) Publish(_ context.Context, key, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
	}
	if value != nil {
		msg.Value = sarama.ByteEncoder(value)
	}

	_, _, err := p.producer.SendMessage(msg)
	return errors.Wrapf(err, "broadcaster: send key=%s", key)
}

func (p *SaramaPublisher) Close() error {
	return p.producer.Close()
}

// Discard drops every record. It backs the "none" driver so the outbox
// still drains when no broker is configured.
type Discard struct{}

func (Discard) Publish(context.Context, []byte, []byte) error { return nil }
func (Discard) Close() error                                  { return nil }

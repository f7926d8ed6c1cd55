package notify

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/codeAPmind/tradingsystem/internal/signal"
)

// KafkaPublisher forwards every signal it receives to a Kafka topic, keyed
// by ticker so one ticker's signals stay ordered within a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      zerolog.Logger
}

// NewKafkaPublisher connects a synchronous producer to the brokers.
func NewKafkaPublisher(brokers []string, topic string, log zerolog.Logger) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}
	return &KafkaPublisher{producer: producer, topic: topic, log: log}, nil
}

// Handle publishes one signal. Publish failures are logged, not propagated;
// the bus has no retry channel to hand them back on.
func (k *KafkaPublisher) Handle(sig *signal.Signal) {
	payload, err := json.Marshal(sig)
	if err != nil {
		k.log.Error().Err(err).Str("signal_id", sig.ID).Msg("marshal signal")
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(sig.Ticker),
		Value: sarama.ByteEncoder(payload),
	}
	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		k.log.Error().Err(err).Str("signal_id", sig.ID).Msg("publish signal to kafka")
		return
	}
	k.log.Debug().
		Str("signal_id", sig.ID).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("signal published")
}

// Close shuts the underlying producer down.
func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}

package broker

import (
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/jonoton/mcmot/envelope"
	"github.com/jonoton/mcmot/gzip"
)

// contentEncodingHeader flags a gzip-compressed message body so a
// consumer reading the same topic knows to decompress before decoding the
// envelope JSON.
const contentEncodingHeader = "content-encoding"

// Producer publishes envelope.Frame messages to Kafka, keyed by camera_id
// so all frames from one camera land on the same partition and therefore
// preserve per-camera ordering.
type Producer struct {
	sync sarama.SyncProducer
	cfg  *Config
}

// NewProducer dials brokers and returns a ready Producer.
func NewProducer(cfg *Config) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 5
	saramaCfg.Producer.Return.Successes = true
	if cfg.Version != "" {
		if v, err := sarama.ParseKafkaVersion(cfg.Version); err == nil {
			saramaCfg.Version = v
		}
	}
	sp, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("broker: new producer: %w", err)
	}
	return &Producer{sync: sp, cfg: cfg}, nil
}

// Publish marshals frame and sends it to topic, keyed by frame.CameraID.
func (p *Producer) Publish(topic string, frame *envelope.Frame) error {
	data, err := envelope.Marshal(frame)
	if err != nil {
		return fmt.Errorf("broker: marshal: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(frame.CameraID),
		Value: sarama.ByteEncoder(data),
	}
	if p.cfg.Compress {
		msg.Value = sarama.ByteEncoder(gzip.Encode(data, nil))
		msg.Headers = []sarama.RecordHeader{{Key: []byte(contentEncodingHeader), Value: []byte("gzip")}}
	}
	partition, offset, err := p.sync.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("broker: send: %w", err)
	}
	log.Debugf("broker: published topic=%s camera=%s partition=%d offset=%d", topic, frame.CameraID, partition, offset)
	return nil
}

// PublishRaw sends a pre-encoded payload, used by the DLQ path where the
// original poison bytes must be preserved verbatim rather than re-encoded.
func (p *Producer) PublishRaw(topic, key string, payload []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}
	_, _, err := p.sync.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("broker: send raw: %w", err)
	}
	return nil
}

// Close shuts down the underlying sarama producer.
func (p *Producer) Close() error {
	return p.sync.Close()
}

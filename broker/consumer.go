package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/jonoton/mcmot/envelope"
	"github.com/jonoton/mcmot/gzip"
)

// Handler processes one decoded frame off a topic. Returning an error marks
// the message as poison; after Config.MaxRetries attempts it is routed to
// the DLQ instead of being retried again.
type Handler func(ctx context.Context, frame *envelope.Frame) error

// ConsumerGroup wraps a sarama.ConsumerGroup, applying at-least-once
// delivery with a bounded-retry-then-DLQ poison message policy (spec.md
// §4.A/§5).
type ConsumerGroup struct {
	group    sarama.ConsumerGroup
	cfg      *Config
	topics   []string
	handler  Handler
	producer *Producer // used only to publish to the DLQ

	mu       sync.Mutex
	attempts map[string]int // key: topic/partition/offset
}

// NewConsumerGroup joins cfg.ConsumerGroup and subscribes to topics.
// dlqProducer is used to forward poison messages; it may be the same
// Producer the stage already uses to publish its own output.
func NewConsumerGroup(cfg *Config, topics []string, dlqProducer *Producer, handler Handler) (*ConsumerGroup, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaCfg.Consumer.Return.Errors = true
	if cfg.Version != "" {
		if v, err := sarama.ParseKafkaVersion(cfg.Version); err == nil {
			saramaCfg.Version = v
		}
	}
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("broker: new consumer group: %w", err)
	}
	return &ConsumerGroup{
		group:    group,
		cfg:      cfg,
		topics:   topics,
		handler:  handler,
		producer: dlqProducer,
		attempts: make(map[string]int),
	}, nil
}

// Run joins the group and consumes until ctx is cancelled. It should be
// called in a loop per sarama's documented re-balance protocol: each call
// to Consume returns when the group rebalances, at which point Run must be
// invoked again with the same session.
func (cg *ConsumerGroup) Run(ctx context.Context) error {
	go func() {
		for err := range cg.group.Errors() {
			log.Errorln("broker: consumer group error:", err)
		}
	}()
	for {
		if err := cg.group.Consume(ctx, cg.topics, cg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("broker: consume: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the consumer group.
func (cg *ConsumerGroup) Close() error {
	return cg.group.Close()
}

// Setup implements sarama.ConsumerGroupHandler.
func (cg *ConsumerGroup) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (cg *ConsumerGroup) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler, delivering each
// message to Handler with retry-then-DLQ semantics.
func (cg *ConsumerGroup) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			cg.process(session, msg)
		case <-session.Context().Done():
			return nil
		}
	}
}

func (cg *ConsumerGroup) process(session sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage) {
	key := fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)

	value := msg.Value
	for _, h := range msg.Headers {
		if string(h.Key) == contentEncodingHeader && string(h.Value) == "gzip" {
			value, _ = gzip.Decode(value)
			break
		}
	}

	frame, err := envelope.Unmarshal(value)
	if err != nil {
		log.Errorf("broker: undecodable message %s: %v, routing to DLQ", key, err)
		cg.toDLQ(msg)
		session.MarkMessage(msg, "")
		return
	}

	if err := cg.handler(session.Context(), frame); err != nil {
		cg.mu.Lock()
		cg.attempts[key]++
		attempts := cg.attempts[key]
		cg.mu.Unlock()

		if attempts >= cg.cfg.maxRetries() {
			log.Errorf("broker: message %s failed %d times, routing to DLQ: %v", key, attempts, err)
			cg.toDLQ(msg)
			cg.mu.Lock()
			delete(cg.attempts, key)
			cg.mu.Unlock()
			session.MarkMessage(msg, "")
			return
		}
		log.Warnf("broker: message %s handler error (attempt %d/%d): %v", key, attempts, cg.cfg.maxRetries(), err)
		// leave unmarked: sarama redelivers on the next rebalance/restart.
		return
	}

	cg.mu.Lock()
	delete(cg.attempts, key)
	cg.mu.Unlock()
	session.MarkMessage(msg, "")
}

func (cg *ConsumerGroup) toDLQ(msg *sarama.ConsumerMessage) {
	if cg.producer == nil {
		return
	}
	dlqTopic := cg.cfg.DLQTopic(msg.Topic)
	if err := cg.producer.PublishRaw(dlqTopic, string(msg.Key), msg.Value); err != nil {
		log.Errorln("broker: failed to publish to DLQ:", err)
	}
}

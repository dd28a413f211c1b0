package control

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/jonoton/mcmot/broker"
)

// Listener subscribes to the control topic and dispatches decoded Signals
// to a callback. It is deliberately separate from broker.ConsumerGroup:
// control signals are small, order-insensitive admin messages, not
// envelope.Frame payloads, so they skip the DLQ/retry machinery entirely.
type Listener struct {
	group sarama.ConsumerGroup
	topic string
	on    func(Signal)
}

// NewListener joins cfg.ConsumerGroup against topic.
func NewListener(cfg *broker.Config, topic string, on func(Signal)) (*Listener, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup+"-control", saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("control: new listener: %w", err)
	}
	return &Listener{group: group, topic: topic, on: on}, nil
}

// Run consumes until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := l.group.Consume(ctx, []string{l.topic}, l); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the consumer group.
func (l *Listener) Close() error {
	return l.group.Close()
}

// Setup implements sarama.ConsumerGroupHandler.
func (l *Listener) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (l *Listener) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler.
func (l *Listener) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			sig, err := Decode(msg.Value)
			if err != nil {
				log.Warnln("control: undecodable signal:", err)
			} else if l.on != nil {
				l.on(sig)
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// Publisher publishes Signals to the control topic.
type Publisher struct {
	producer *broker.Producer
	topic    string
}

// NewPublisher wires a Publisher against an existing Producer, so stages
// can reuse their data-plane connection for control-plane signalling.
func NewPublisher(producer *broker.Producer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// Send publishes sig, keyed by pipeline so every control message for a
// given pipeline lands on the same partition and is seen in order.
func (p *Publisher) Send(sig Signal) error {
	data, err := Encode(sig)
	if err != nil {
		return fmt.Errorf("control: encode signal: %w", err)
	}
	return p.producer.PublishRaw(p.topic, sig.Pipeline, data)
}

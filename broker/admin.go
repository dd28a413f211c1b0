package broker

import (
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Admin wraps sarama.ClusterAdmin for the control plane's topic setup
// operation (spec.md §4.J).
type Admin struct {
	client sarama.ClusterAdmin
}

// NewAdmin dials brokers for cluster administration.
func NewAdmin(cfg *Config) (*Admin, error) {
	saramaCfg := sarama.NewConfig()
	if cfg.Version != "" {
		if v, err := sarama.ParseKafkaVersion(cfg.Version); err == nil {
			saramaCfg.Version = v
		}
	}
	client, err := sarama.NewClusterAdmin(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("broker: new admin: %w", err)
	}
	return &Admin{client: client}, nil
}

// EnsureTopic creates topic with partitions/replicationFactor if it does
// not already exist, and is a no-op (not an error) if it does. It also
// ensures topic's DLQ counterpart exists.
func (a *Admin) EnsureTopic(topic string, partitions int32, replicationFactor int16) error {
	detail := &sarama.TopicDetail{
		NumPartitions:     partitions,
		ReplicationFactor: replicationFactor,
	}
	if err := a.client.CreateTopic(topic, detail, false); err != nil {
		if isTopicExists(err) {
			log.Debugf("broker: topic %s already exists", topic)
		} else {
			return fmt.Errorf("broker: create topic %s: %w", topic, err)
		}
	}
	dlq := (&Config{}).DLQTopic(topic)
	if err := a.client.CreateTopic(dlq, detail, false); err != nil {
		if !isTopicExists(err) {
			return fmt.Errorf("broker: create dlq topic %s: %w", dlq, err)
		}
	}
	return nil
}

// DeleteTopic removes topic, ignoring an unknown-topic error.
func (a *Admin) DeleteTopic(topic string) error {
	if err := a.client.DeleteTopic(topic); err != nil {
		if errors.Is(err, sarama.ErrUnknownTopicOrPartition) {
			return nil
		}
		return fmt.Errorf("broker: delete topic %s: %w", topic, err)
	}
	return nil
}

// Close closes the admin connection.
func (a *Admin) Close() error {
	return a.client.Close()
}

func isTopicExists(err error) bool {
	var topicErr *sarama.TopicError
	if errors.As(err, &topicErr) {
		return errors.Is(topicErr.Err, sarama.ErrTopicAlreadyExists)
	}
	return errors.Is(err, sarama.ErrTopicAlreadyExists)
}

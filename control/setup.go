package control

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/mcmot/broker"
)

// Setup recreates every topic in cfg.Topics (as <stage>-<pipeline>-topic,
// plus its DLQ counterpart) and the pipeline's capture control topic,
// per spec.md §4.J's Setup operation.
func Setup(cfg *SetupConfig) error {
	admin, err := broker.NewAdmin(&broker.Config{Brokers: cfg.BootstrapServers})
	if err != nil {
		return fmt.Errorf("control: setup admin: %w", err)
	}
	defer admin.Close()

	for stage, partitions := range cfg.Topics {
		topic := cfg.Topic(stage)
		if err := admin.EnsureTopic(topic, partitions, cfg.replicationFactor()); err != nil {
			return fmt.Errorf("control: ensure topic %s: %w", topic, err)
		}
		log.Infof("control: topic %s ready (%d partitions)", topic, partitions)
	}

	controlTopic := cfg.ControlTopic()
	if err := admin.EnsureTopic(controlTopic, 1, cfg.replicationFactor()); err != nil {
		return fmt.Errorf("control: ensure control topic %s: %w", controlTopic, err)
	}
	log.Infof("control: control topic %s ready", controlTopic)

	return nil
}

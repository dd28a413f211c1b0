// Package broker wraps github.com/IBM/sarama for the message layer
// (spec.md §4.A): producing and consuming envelope.Frame messages keyed by
// camera_id for partition affinity, with a dead-letter queue for poison
// messages.
package broker

import (
	"io/ioutil"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Config is the broker connection and topic configuration, loaded the same
// way the rest of this repo's packages load their per-component YAML.
type Config struct {
	Brokers       []string `yaml:"brokers"`
	ConsumerGroup string   `yaml:"consumer-group,omitempty"`
	DLQSuffix     string   `yaml:"dlq-suffix,omitempty"`
	MaxRetries    int      `yaml:"max-retries,omitempty"`
	Version       string   `yaml:"version,omitempty"`
	// Compress gzips the marshaled envelope before it is sent, worthwhile
	// on topics carrying large annotated-JPEG payloads (Unification,
	// Analytics). Transparent to consumers: content-encoding is carried as
	// a message header, not baked into the envelope's wire JSON.
	Compress bool `yaml:"compress,omitempty"`
}

// DLQSuffixDefault is appended to a topic name to derive its DLQ topic
// when Config.DLQSuffix is unset.
const DLQSuffixDefault = ".dlq"

// MaxRetriesDefault is how many redelivery attempts a poison message gets
// before being routed to the DLQ, per spec.md §5's "3 retries -> DLQ" rule.
const MaxRetriesDefault = 3

// DLQTopic derives topic's dead-letter topic name.
func (c *Config) DLQTopic(topic string) string {
	suffix := c.DLQSuffix
	if suffix == "" {
		suffix = DLQSuffixDefault
	}
	return topic + suffix
}

func (c *Config) maxRetries() int {
	if c.MaxRetries <= 0 {
		return MaxRetriesDefault
	}
	return c.MaxRetries
}

// NewConfig loads a Config from a YAML file, returning nil on failure.
func NewConfig(configPath string) *Config {
	c := &Config{}
	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		log.Warnln("broker config read failed", err)
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		log.Warnln("broker config unmarshal failed", err)
		return nil
	}
	return c
}

package control

import (
	"fmt"
	"io/ioutil"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// SetupConfig is the Setup operation's config document, matching
// spec.md §6's {pipeline, bootstrap-servers, topics:{<stage>:partitions}}.
type SetupConfig struct {
	Pipeline         string         `yaml:"pipeline"`
	BootstrapServers []string       `yaml:"bootstrap-servers"`
	Topics           map[string]int32 `yaml:"topics"`
	ReplicationFactor int16         `yaml:"replication-factor,omitempty"`
}

func (c *SetupConfig) replicationFactor() int16 {
	if c.ReplicationFactor <= 0 {
		return 1
	}
	return c.ReplicationFactor
}

// Topic returns the fully-qualified topic name for stage under this
// pipeline, per spec.md §6's `<stage>-<pipeline>-topic` naming.
func (c *SetupConfig) Topic(stage string) string {
	return fmt.Sprintf("%s-%s-topic", stage, c.Pipeline)
}

// ControlTopic returns the Capture stage's inbound control topic,
// `camera-<pipeline>-topic`.
func (c *SetupConfig) ControlTopic() string {
	return fmt.Sprintf("camera-%s-topic", c.Pipeline)
}

// NewSetupConfig loads a SetupConfig from configPath.
func NewSetupConfig(configPath string) *SetupConfig {
	c := &SetupConfig{}
	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		log.Warnln("control setup config read failed", err)
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		log.Warnln("control setup config unmarshal failed", err)
		return nil
	}
	return c
}

// StageEntry is one stage's entry in a PipelineConfig's worker list,
// matching spec.md §6's pipeline config: list of
// {name, config:inline|path, replication-factor, observability}.
type StageEntry struct {
	Name              string `yaml:"name"`
	ConfigPath        string `yaml:"config"`
	ReplicationFactor int    `yaml:"replication-factor,omitempty"`
	Observability     bool   `yaml:"observability,omitempty"`
}

func (s *StageEntry) replicationFactor() int {
	if s.ReplicationFactor <= 0 {
		return 1
	}
	// Unification and Analytics are single-instance per spec.md §4.H/§4.I;
	// clamp regardless of what the pipeline config declares.
	if s.Name == "unification" || s.Name == "analytics" {
		return 1
	}
	return s.ReplicationFactor
}

// PipelineConfig is the full set of stage workers one pipeline starts.
type PipelineConfig struct {
	Pipeline string       `yaml:"pipeline"`
	Stages   []StageEntry `yaml:"stages"`
}

// NewPipelineConfig loads a PipelineConfig from configPath.
func NewPipelineConfig(configPath string) *PipelineConfig {
	c := &PipelineConfig{}
	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		log.Warnln("control pipeline config read failed", err)
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		log.Warnln("control pipeline config unmarshal failed", err)
		return nil
	}
	return c
}

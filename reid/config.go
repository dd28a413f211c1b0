// Package reid implements the ReID stage (spec.md §4.F): extracting an
// appearance embedding per track and matching it against an
// insertion-ordered, soft-capped embedding store by cosine similarity.
// Adapted from jonoton-scout/face (the embedder) and
// other_examples/adverant-.../person_reid.go (the matching/averaging
// logic).
package reid

import (
	"io/ioutil"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/jonoton/mcmot/broker"
	"github.com/jonoton/mcmot/sync"
)

// Config configures one ReID stage instance.
type Config struct {
	ModelFile               string  `yaml:"model-file,omitempty"`
	ConfigFile              string  `yaml:"config-file,omitempty"`
	MinConfidencePercentage int     `yaml:"min-confidence-percentage,omitempty"`
	SimilarityThreshold     float64 `yaml:"similarity-threshold,omitempty"`
	MaxIdentities           int     `yaml:"max-identities,omitempty"`

	InputTopic  string         `yaml:"input-topic"`
	OutputTopic string         `yaml:"output-topic"`
	Broker      *broker.Config `yaml:"broker"`
	Sync        *sync.Config   `yaml:"frame-sync,omitempty"`
}

// SimilarityThresholdDefault matches spec.md §4.F's default ReID
// acceptance threshold.
const SimilarityThresholdDefault = 0.7

// MaxIdentitiesDefault bounds the embedding store before soft-cap
// eviction kicks in.
const MaxIdentitiesDefault = 1000

func (c *Config) similarityThreshold() float64 {
	if c.SimilarityThreshold <= 0 {
		return SimilarityThresholdDefault
	}
	return c.SimilarityThreshold
}

func (c *Config) maxIdentities() int {
	if c.MaxIdentities <= 0 {
		return MaxIdentitiesDefault
	}
	return c.MaxIdentities
}

// NewConfig loads a Config from configPath.
func NewConfig(configPath string) *Config {
	c := &Config{}
	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		log.Warnln("reid config read failed", err)
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		log.Warnln("reid config unmarshal failed", err)
		return nil
	}
	return c
}

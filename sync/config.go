package sync

import (
	"io/ioutil"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Mode selects the Frame-Sync Engine's key function.
type Mode string

// Mode constants per spec.md §4.B.
const (
	ModeNumber    Mode = "number"
	ModeTimestamp Mode = "timestamp"
	ModeNone      Mode = "none"
)

// Config holds the frame-sync parameters carried in a stage's per-stage
// config document (spec.md §6, `frame-sync` block).
type Config struct {
	Type                Mode          `yaml:"type,omitempty"`
	BacklogThreshold    int           `yaml:"backlog-threshold,omitempty"`
	BacklogCheckSeconds float64       `yaml:"backlog-check-interval,omitempty"`
	Fps                 int           `yaml:"fps,omitempty"`
	RetentionSeconds    float64       `yaml:"retention-time,omitempty"`
	LatencySeconds      float64       `yaml:"latency-threshold,omitempty"`
	IgnoreInitialDelay  bool          `yaml:"ignore-initial-delay,omitempty"`
	EnableSequencing    bool          `yaml:"enable-sequencing,omitempty"`
	SeekToEnd           bool          `yaml:"seek-to-end,omitempty"`
	Unify               bool          `yaml:"unify,omitempty"`
}

// BacklogCheckInterval returns the configured interval, defaulting to one
// second when unset.
func (c *Config) BacklogCheckInterval() time.Duration {
	if c.BacklogCheckSeconds <= 0 {
		return time.Second
	}
	return time.Duration(c.BacklogCheckSeconds * float64(time.Second))
}

// RetentionTime returns the configured retention window, defaulting to 30s.
func (c *Config) RetentionTime() time.Duration {
	if c.RetentionSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RetentionSeconds * float64(time.Second))
}

// LatencyThreshold returns the configured max staleness, defaulting to 5s.
func (c *Config) LatencyThreshold() time.Duration {
	if c.LatencySeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.LatencySeconds * float64(time.Second))
}

// NewConfig loads a Config from a YAML file, returning nil on failure, in
// the same idiom as the rest of this repo's per-package Config loaders.
func NewConfig(configPath string) *Config {
	c := &Config{}
	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		log.Warnln("frame-sync config read failed", err)
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		log.Warnln("frame-sync config unmarshal failed", err)
		return nil
	}
	return c
}

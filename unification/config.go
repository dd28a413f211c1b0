// Package unification implements the Unification stage (spec.md §4.H): a
// single-instance consumer that groups per-camera frames via the
// Frame-Sync Engine's inter-camera Collect/Synchronize, composes them
// into a grid, and writes a combined video with an inactivity timeout.
// Adapted from jonoton-scout/videosource/videowriter.go's
// timeoutTick-driven record lifecycle.
package unification

import (
	"io/ioutil"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/jonoton/mcmot/broker"
	"github.com/jonoton/mcmot/sync"
)

// Config configures the single Unification stage instance.
type Config struct {
	InputTopic      string         `yaml:"input-topic"`
	OutputTopic     string         `yaml:"output-topic,omitempty"`
	SaveDirectory   string         `yaml:"save-directory,omitempty"`
	InactivitySeconds float64      `yaml:"inactivity-timeout,omitempty"`
	GridColumns     int            `yaml:"grid-columns,omitempty"`
	CellWidth       int            `yaml:"cell-width,omitempty"`
	CellHeight      int            `yaml:"cell-height,omitempty"`
	Broker          *broker.Config `yaml:"broker"`
	Sync            sync.Config    `yaml:"frame-sync"`
}

// InactivityTimeoutDefault matches spec.md §4.H's 60s combined-writer
// inactivity timeout.
const InactivityTimeoutDefault = 60.0

func (c *Config) inactivityTimeout() float64 {
	if c.InactivitySeconds <= 0 {
		return InactivityTimeoutDefault
	}
	return c.InactivitySeconds
}

func (c *Config) gridColumns() int {
	if c.GridColumns <= 0 {
		return 2
	}
	return c.GridColumns
}

func (c *Config) cellSize() (int, int) {
	w, h := c.CellWidth, c.CellHeight
	if w <= 0 {
		w = 640
	}
	if h <= 0 {
		h = 480
	}
	return w, h
}

// NewConfig loads a Config from configPath.
func NewConfig(configPath string) *Config {
	c := &Config{}
	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		log.Warnln("unification config read failed", err)
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		log.Warnln("unification config unmarshal failed", err)
		return nil
	}
	return c
}

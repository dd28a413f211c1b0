// Package tracker implements the Tracker stage (spec.md §4.G): dual
// capture+detection consumption sharing per-camera state, IoU+NMS
// association via Hungarian assignment, a Kalman filter for motion
// prediction, and the TENTATIVE -> CONFIRMED -> DELETED track lifecycle.
// Grounded on original_source/mcmot/tracker/tracker_service.py's dual-
// consumer shape and other_examples' multi_object_tracker.go/bytetrack.go
// for the matching and state-machine idioms.
package tracker

import (
	"io/ioutil"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/jonoton/mcmot/broker"
	"github.com/jonoton/mcmot/sync"
)

// Config configures one Tracker stage instance.
type Config struct {
	CaptureTopic   string  `yaml:"capture-topic"`
	DetectionTopic string  `yaml:"detection-topic"`
	OutputTopic    string  `yaml:"output-topic"`
	IgnoreCapture  bool    `yaml:"ignore-capture,omitempty"`
	IoUThreshold   float64 `yaml:"iou-threshold,omitempty"`
	MaxLostFrames  int     `yaml:"max-lost-frames,omitempty"`
	MinHits        int     `yaml:"min-hits,omitempty"`
	// PredictionFactor scales how many frames a Kalman-only prediction is
	// trusted for once a track's detections stop arriving, before it is
	// marked lost rather than predicted forward again.
	PredictionFactor float64 `yaml:"prediction-factor,omitempty"`
	FrameCacheSize   int     `yaml:"frame-cache-size,omitempty"`
	// OnlyConfirmedTracks restricts published output to CONFIRMED tracks,
	// dropping TENTATIVE ones from the wire representation.
	OnlyConfirmedTracks bool `yaml:"only-confirmed-tracks,omitempty"`

	Broker *broker.Config `yaml:"broker"`
	Sync   *sync.Config   `yaml:"frame-sync,omitempty"`
}

func (c *Config) iouThreshold() float64 {
	if c.IoUThreshold <= 0 {
		return 0.3
	}
	return c.IoUThreshold
}

func (c *Config) maxLostFrames() int {
	if c.MaxLostFrames <= 0 {
		return 30
	}
	return c.MaxLostFrames
}

func (c *Config) minHits() int {
	if c.MinHits <= 0 {
		return 3
	}
	return c.MinHits
}

func (c *Config) predictionFactor() float64 {
	if c.PredictionFactor <= 0 {
		return 1.0
	}
	return c.PredictionFactor
}

func (c *Config) frameCacheSize() int {
	if c.FrameCacheSize <= 0 {
		return 1000
	}
	return c.FrameCacheSize
}

// NewConfig loads a Config from configPath.
func NewConfig(configPath string) *Config {
	c := &Config{}
	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		log.Warnln("tracker config read failed", err)
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		log.Warnln("tracker config unmarshal failed", err)
		return nil
	}
	return c
}

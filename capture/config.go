// Package capture implements the Capture stage (spec.md §4.D): reading
// frames from a per-camera video source, applying intra-camera skip/wait
// admission via the Frame-Sync Engine, and publishing accepted frames to
// the capture topic. Grounded on jonoton-scout/videosource.
package capture

import (
	"io/ioutil"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/jonoton/mcmot/broker"
	"github.com/jonoton/mcmot/envelope"
	"github.com/jonoton/mcmot/sync"
)

// CameraConfig is one camera's source and sync settings, the per-monitor
// analogue of jonoton-scout's per-monitor YAML document.
type CameraConfig struct {
	CameraID string `yaml:"camera-id"`
	URL      string `yaml:"url"`
	Fps      int    `yaml:"fps"`
	Quality  int    `yaml:"quality,omitempty"`
	Location string `yaml:"location,omitempty"`
}

// Config is the Capture stage's full configuration document.
type Config struct {
	Pipeline     string         `yaml:"pipeline"`
	Cameras      []CameraConfig `yaml:"cameras"`
	Topic        string         `yaml:"topic"`
	ControlTopic string         `yaml:"control-topic,omitempty"`
	Broker       *broker.Config `yaml:"broker"`
	Sync         *sync.Config   `yaml:"frame-sync,omitempty"`
}

// NewConfig loads a Config from configPath.
func NewConfig(configPath string) *Config {
	c := &Config{}
	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		log.Warnln("capture config read failed", err)
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		log.Warnln("capture config unmarshal failed", err)
		return nil
	}
	return c
}

// envelopeFrom builds the wire envelope for one captured image.
func envelopeFrom(cam CameraConfig, frameNumber int64, frameTimestamp float64, img []byte) *envelope.Frame {
	return &envelope.Frame{
		CameraID:       cam.CameraID,
		FrameNumber:    frameNumber,
		FrameTimestamp: frameTimestamp,
		FpsDeclared:    cam.Fps,
		ImageBytes:     img,
		CameraMetadata: envelope.CameraMetadata{
			Location: cam.Location,
			Format:   "jpeg",
		},
	}
}

// Package detection implements the Detection stage (spec.md §4.E): running
// a gocv DNN object detector over accepted capture frames, with
// NMS/confidence/area filtering and optional motion gating. Adapted from
// jonoton-scout/tensor and jonoton-scout/motion.
package detection

import (
	"io/ioutil"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"gopkg.in/yaml.v2"

	"github.com/jonoton/mcmot/broker"
	"github.com/jonoton/mcmot/cuda"
	"github.com/jonoton/mcmot/sync"
)

// Config configures one Detection stage instance, merged over the
// defaults in NewDetector the same way jonoton-scout/tensor's
// Tensor.SetConfig merges a *tensor.Config over its constructor defaults.
type Config struct {
	ModelFile               string   `yaml:"model-file,omitempty"`
	ConfigFile              string   `yaml:"config-file,omitempty"`
	DescFile                string   `yaml:"desc-file,omitempty"`
	ForceCPU                bool     `yaml:"force-cpu,omitempty"`
	ScaleWidth              int      `yaml:"scale-width,omitempty"`
	MinConfidencePercentage int      `yaml:"min-confidence-percentage,omitempty"`
	MinPercentage           int      `yaml:"min-percentage,omitempty"`
	MaxPercentage           int      `yaml:"max-percentage,omitempty"`
	NMSThreshold            float32  `yaml:"nms-threshold,omitempty"`
	AllowedList             []string `yaml:"allowed-list,omitempty"`
	MotionGating            bool     `yaml:"motion-gating,omitempty"`

	InputTopic  string         `yaml:"input-topic"`
	OutputTopic string         `yaml:"output-topic"`
	Broker      *broker.Config `yaml:"broker"`
	Sync        *sync.Config   `yaml:"frame-sync,omitempty"`
}

// NewConfig loads a Config from configPath.
func NewConfig(configPath string) *Config {
	c := &Config{}
	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		log.Warnln("detection config read failed", err)
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		log.Warnln("detection config unmarshal failed", err)
		return nil
	}
	return c
}

func backendTarget(forceCPU bool) (gocv.NetBackendType, gocv.NetTargetType) {
	if forceCPU || !cuda.HasCudaInstalled() {
		return gocv.NetBackendDefault, gocv.NetTargetCPU
	}
	return gocv.NetBackendCUDA, gocv.NetTargetCUDA
}

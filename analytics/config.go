// Package analytics implements the Analytics stage (spec.md §4.I): a
// single-instance consumer that batches unified groups, asks an LLM to
// describe them, and appends the result to a structured log and an xlsx
// report, optionally alerting by email when the LLM flags a priority
// event.
package analytics

import (
	"io/ioutil"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/jonoton/mcmot/broker"
	"github.com/jonoton/mcmot/notify"
)

// Config configures the single Analytics stage instance.
type Config struct {
	InputTopic   string         `yaml:"input-topic"`
	LogWaitSeconds float64      `yaml:"log-wait-time,omitempty"`
	LogFile      string         `yaml:"log-file,omitempty"`
	ReportFile   string         `yaml:"report-file,omitempty"`
	Prompt       string         `yaml:"prompt,omitempty"`
	Broker       *broker.Config `yaml:"broker"`

	// AlertSender/AlertRx are optional; when both are set, a priority
	// Analysis result triggers an email via the notify package.
	AlertSender *notify.SenderConfig `yaml:"alert-sender,omitempty"`
	AlertRx     *notify.RxConfig     `yaml:"alert-rx,omitempty"`
}

// LogWaitDefault matches spec.md §4.I's default batching interval.
const LogWaitDefault = 10.0

func (c *Config) logWait() float64 {
	if c.LogWaitSeconds <= 0 {
		return LogWaitDefault
	}
	return c.LogWaitSeconds
}

func (c *Config) logFile() string {
	if c.LogFile == "" {
		return "output/unified.log"
	}
	return c.LogFile
}

func (c *Config) reportFile() string {
	if c.ReportFile == "" {
		return "output/unified.xlsx"
	}
	return c.ReportFile
}

func (c *Config) prompt() string {
	if c.Prompt == "" {
		return "Describe any notable activity in this combined camera frame."
	}
	return c.Prompt
}

// NewConfig loads a Config from configPath.
func NewConfig(configPath string) *Config {
	c := &Config{}
	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		log.Warnln("analytics config read failed", err)
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		log.Warnln("analytics config unmarshal failed", err)
		return nil
	}
	return c
}

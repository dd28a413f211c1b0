// Package control implements the Control Plane (spec.md §4.J): topic
// setup, stage process lifecycle (spawn/PID-file/stop), and START/STOP/
// HOLD/RESUME signalling over each pipeline's inbound control topic.
package control

import "encoding/json"

// SignalType is one control-plane command broadcast on
// camera-<pipeline>-topic.
type SignalType string

// SignalType values per spec.md §6's control message JSON.
const (
	SignalStart  SignalType = "START"
	SignalStop   SignalType = "STOP"
	SignalHold   SignalType = "HOLD"
	SignalResume SignalType = "RESUME"
)

// Signal is the control message published to a pipeline's inbound
// control topic, matching spec.md §6's literal wire shape:
// {pipeline, signal, loop_count?}. There is no per-camera target field --
// a pipeline's control topic addresses every Capture worker (and every
// camera it owns) subscribed to it.
type Signal struct {
	Pipeline  string     `json:"pipeline"`
	Type      SignalType `json:"signal"`
	LoopCount int        `json:"loop_count,omitempty"`
}

// Encode marshals a Signal for publishing.
func Encode(s Signal) ([]byte, error) {
	return json.Marshal(s)
}

// Decode parses a Signal off the control topic.
func Decode(data []byte) (Signal, error) {
	var s Signal
	err := json.Unmarshal(data, &s)
	return s, err
}

package detection

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/jonoton/mcmot/envelope"
	"github.com/jonoton/mcmot/stage"
)

// Stage wires a Detector (and optional MotionGate) into a stage.Callback.
type Stage struct {
	cfg     *Config
	det     Detector
	motion  *MotionGate
}

// NewStage builds the Detection stage's detector and optional motion gate
// from cfg.
func NewStage(cfg *Config) (*Stage, error) {
	det, err := NewGocvDetector(cfg)
	if err != nil {
		return nil, err
	}
	s := &Stage{cfg: cfg, det: det}
	if cfg.MotionGating {
		s.motion = NewMotionGate()
	}
	return s, nil
}

// Runtime builds the stage.Runtime this Stage drives.
func (s *Stage) Runtime() (*stage.Runtime, error) {
	return stage.NewRuntime(stage.Config{
		InputTopics:  []string{s.cfg.InputTopic},
		OutputTopics: []string{s.cfg.OutputTopic},
		Broker:       s.cfg.Broker,
		Sync:         s.cfg.Sync,
	}, s.Callback)
}

// Callback implements stage.Callback: decode the frame's JPEG, optionally
// gate on motion, run the detector, and attach detections to the
// outgoing envelope's metadata.
func (s *Stage) Callback(ctx context.Context, frame *envelope.Frame) ([]*envelope.Frame, error) {
	mat, err := gocv.IMDecode(frame.ImageBytes, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("detection: decode frame camera=%s frame=%d: %w", frame.CameraID, frame.FrameNumber, err)
	}
	defer mat.Close()

	if s.motion != nil && !s.motion.HasMotion(mat) {
		log.Debugf("detection: camera %s frame %d has no motion, skipping detector", frame.CameraID, frame.FrameNumber)
		out := frame.Clone()
		out.Metadata.Detections = nil
		return []*envelope.Frame{out}, nil
	}

	detections, err := s.det.Detect(mat)
	if err != nil {
		return nil, fmt.Errorf("detection: detect camera=%s frame=%d: %w", frame.CameraID, frame.FrameNumber, err)
	}

	out := frame.Clone()
	out.Metadata.Detections = detections
	return []*envelope.Frame{out}, nil
}

// Close releases the detector and motion gate.
func (s *Stage) Close() {
	s.det.Close()
	if s.motion != nil {
		s.motion.Close()
	}
}

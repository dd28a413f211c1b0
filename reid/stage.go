package reid

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/jonoton/mcmot/envelope"
	"github.com/jonoton/mcmot/stage"
)

// Stage wires an Embedder and Store into a stage.Callback, running over
// Tracker-confirmed tracks (spec.md §4.F consumes the tracker's output
// topic, not raw detections).
type Stage struct {
	cfg      *Config
	embedder Embedder
	store    *Store
}

// NewStage builds the ReID stage's embedder and store from cfg.
func NewStage(cfg *Config) (*Stage, error) {
	embedder, err := NewGocvEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return &Stage{
		cfg:      cfg,
		embedder: embedder,
		store:    NewStore(cfg.similarityThreshold(), cfg.maxIdentities()),
	}, nil
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

// Callback implements stage.Callback: crop the image to each track's
// bounding box, embed it, match against the store, and attach the
// resulting ReIDAssignments to the outgoing envelope.
func (s *Stage) Callback(ctx context.Context, frame *envelope.Frame) ([]*envelope.Frame, error) {
	if len(frame.Metadata.Tracks) == 0 {
		return []*envelope.Frame{frame.Clone()}, nil
	}

	mat, err := gocv.IMDecode(frame.ImageBytes, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("reid: decode frame camera=%s frame=%d: %w", frame.CameraID, frame.FrameNumber, err)
	}
	defer mat.Close()

	out := frame.Clone()
	out.Metadata.ReID = out.Metadata.ReID[:0]

	for i, track := range frame.Metadata.Tracks {
		rect := denormalize(track.BBox, mat.Cols(), mat.Rows())
		if rect.Dx() <= 0 || rect.Dy() <= 0 {
			continue
		}
		crop := mat.Region(rect)
		vector, err := s.embedder.Embed(crop)
		crop.Close()
		if err != nil {
			continue
		}
		id := s.store.Match(vector)
		out.Metadata.ReID = append(out.Metadata.ReID, envelope.ReIDAssignment{
			DetectionIndex: i,
			ReIDID:         id,
		})
	}

	return []*envelope.Frame{out}, nil
}

func denormalize(b envelope.BBox, width, height int) image.Rectangle {
	x1 := int(b.X * float64(width))
	y1 := int(b.Y * float64(height))
	x2 := int((b.X + b.W) * float64(width))
	y2 := int((b.Y + b.H) * float64(height))
	if x1 < 0 {
		x1 = 0
	}
	if y1 < 0 {
		y1 = 0
	}
	if x2 > width {
		x2 = width
	}
	if y2 > height {
		y2 = height
	}
	return image.Rect(x1, y1, x2, y2)
}

// Close releases the embedder.
func (s *Stage) Close() {
	s.embedder.Close()
}

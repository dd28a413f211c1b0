package tracker

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/mcmot/broker"
	"github.com/jonoton/mcmot/envelope"
)

// Stage runs the Tracker's dual consumers against shared per-camera
// state, structured after original_source/mcmot/tracker/
// tracker_service.py's process(): a detection consumer (always on) and,
// unless Config.IgnoreCapture is set, a capture consumer sharing the same
// Manager so raw-frame arrivals advance tracks via Kalman prediction
// between detections.
type Stage struct {
	cfg      *Config
	manager  *Manager
	producer *broker.Producer

	captureConsumer   *broker.ConsumerGroup
	detectionConsumer *broker.ConsumerGroup
}

// NewStage wires a Stage from cfg.
func NewStage(cfg *Config) (*Stage, error) {
	producer, err := broker.NewProducer(cfg.Broker)
	if err != nil {
		return nil, err
	}

	s := &Stage{cfg: cfg, manager: NewManager(cfg.frameCacheSize()), producer: producer}

	detectionConsumer, err := broker.NewConsumerGroup(cfg.Broker, []string{cfg.DetectionTopic}, producer, s.handleDetection)
	if err != nil {
		producer.Close()
		return nil, err
	}
	s.detectionConsumer = detectionConsumer

	if !cfg.IgnoreCapture {
		captureConsumer, err := broker.NewConsumerGroup(cfg.Broker, []string{cfg.CaptureTopic}, producer, s.handleCapture)
		if err != nil {
			detectionConsumer.Close()
			producer.Close()
			return nil, err
		}
		s.captureConsumer = captureConsumer
	}

	return s, nil
}

// Run drives both consumers concurrently until ctx is cancelled.
func (s *Stage) Run(ctx context.Context) {
	done := make(chan struct{}, 2)

	go func() {
		if err := s.detectionConsumer.Run(ctx); err != nil {
			log.Errorln("tracker: detection consumer exited with error:", err)
		}
		done <- struct{}{}
	}()

	if s.captureConsumer != nil {
		go func() {
			if err := s.captureConsumer.Run(ctx); err != nil {
				log.Errorln("tracker: capture consumer exited with error:", err)
			}
			done <- struct{}{}
		}()
	} else {
		done <- struct{}{}
	}

	<-done
	<-done
}

// Close releases both consumer groups and the shared producer.
func (s *Stage) Close() {
	if err := s.detectionConsumer.Close(); err != nil {
		log.Warnln("tracker: detection consumer close:", err)
	}
	if s.captureConsumer != nil {
		if err := s.captureConsumer.Close(); err != nil {
			log.Warnln("tracker: capture consumer close:", err)
		}
	}
	if err := s.producer.Close(); err != nil {
		log.Warnln("tracker: producer close:", err)
	}
}

// handleDetection implements broker.Handler for the detection topic: run
// assignment, update matched tracks, create tracks for unmatched
// detections, mark missed for unmatched tracks, and publish the current
// CONFIRMED+TENTATIVE set.
func (s *Stage) handleDetection(ctx context.Context, frame *envelope.Frame) error {
	var out *envelope.Frame

	s.manager.WithCamera(frame.CameraID, func(cs *cameraState) {
		result := assign(cs.tracks, frame.Metadata.Detections, s.cfg.iouThreshold())

		for ti, di := range result.trackToDetection {
			cs.tracks[ti].Update(frame.Metadata.Detections[di], s.cfg.minHits())
		}
		for _, ti := range result.unmatchedTracks {
			cs.tracks[ti].Predict()
			cs.tracks[ti].MarkMissed(s.cfg.maxLostFrames())
		}
		for _, di := range result.unmatchedDets {
			cs.tracks = append(cs.tracks, NewTrack(frame.Metadata.Detections[di]))
		}

		cs.tracks = pruneDeleted(cs.tracks)
		cs.seen.Add(frame.SyncKey())

		out = frame.Clone()
		out.Metadata.Tracks = tracksToEnvelope(cs.tracks, s.cfg.OnlyConfirmedTracks)
	})

	return s.publish(out)
}

// handleCapture implements broker.Handler for the capture topic. It is
// only ever wired up when Config.IgnoreCapture is false (see NewStage).
// Per spec.md §4.G, a capture frame only advances tracks by Kalman
// prediction when its sync_key has not already arrived on the detection
// stream and the track's own skip fraction is still under
// PredictionFactor; only CONFIRMED tracks are predicted, and hit counts
// are left untouched.
func (s *Stage) handleCapture(ctx context.Context, frame *envelope.Frame) error {
	var out *envelope.Frame

	s.manager.WithCamera(frame.CameraID, func(cs *cameraState) {
		if !cs.seen.Contains(frame.SyncKey()) {
			for _, t := range cs.tracks {
				if t.State != Confirmed {
					continue
				}
				if t.skipFraction(s.cfg.maxLostFrames()) < s.cfg.predictionFactor() {
					t.Predict()
				}
			}
		}
		out = frame.Clone()
		out.Metadata.Tracks = tracksToEnvelope(cs.tracks, s.cfg.OnlyConfirmedTracks)
		out.Metadata.Detections = nil
	})

	return s.publish(out)
}

func (s *Stage) publish(frame *envelope.Frame) error {
	if frame == nil {
		return nil
	}
	if err := s.producer.Publish(s.cfg.OutputTopic, frame); err != nil {
		return fmt.Errorf("tracker: publish: %w", err)
	}
	return nil
}

func pruneDeleted(tracks []*Track) []*Track {
	out := tracks[:0]
	for _, t := range tracks {
		if t.State != Deleted {
			out = append(out, t)
		}
	}
	return out
}

// tracksToEnvelope converts tracks to their wire representation, dropping
// DELETED tracks always and TENTATIVE ones too when onlyConfirmed is set
// (spec.md §4.G's only_confirmed_tracks).
func tracksToEnvelope(tracks []*Track, onlyConfirmed bool) []envelope.Track {
	out := make([]envelope.Track, 0, len(tracks))
	for _, t := range tracks {
		if t.State == Deleted {
			continue
		}
		if onlyConfirmed && t.State != Confirmed {
			continue
		}
		out = append(out, t.ToEnvelope())
	}
	return out
}

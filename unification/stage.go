package unification

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/jonoton/mcmot/broker"
	"github.com/jonoton/mcmot/envelope"
	"github.com/jonoton/mcmot/sharedmat"
	"github.com/jonoton/mcmot/sync"
)

// Stage is the single-instance Unification stage: a consumer that feeds
// every incoming frame into a Frame-Sync Engine configured for
// inter-camera grouping (Config.Sync.Unify), periodically drains complete
// (or partial, once retention expires) groups, composes them into a grid,
// and appends them to a CombinedWriter.
type Stage struct {
	cfg      *Config
	engine   *sync.Engine
	consumer *broker.ConsumerGroup
	producer *broker.Producer
	writer   *CombinedWriter
}

// NewStage wires a Stage from cfg.
func NewStage(cfg *Config) (*Stage, error) {
	producer, err := broker.NewProducer(cfg.Broker)
	if err != nil {
		return nil, err
	}

	syncCfg := cfg.Sync
	syncCfg.Unify = true
	engine := sync.NewEngine(syncCfg)

	w, h := cfg.cellSize()
	columns := cfg.gridColumns()
	gridW := w * columns

	s := &Stage{
		cfg:      cfg,
		engine:   engine,
		producer: producer,
		writer: NewCombinedWriter(
			cfg.SaveDirectory,
			time.Duration(cfg.inactivityTimeout()*float64(time.Second)),
			gridW, h, 10,
		),
	}

	consumer, err := broker.NewConsumerGroup(cfg.Broker, []string{cfg.InputTopic}, producer, s.handle)
	if err != nil {
		producer.Close()
		return nil, err
	}
	s.consumer = consumer

	return s, nil
}

func (s *Stage) handle(ctx context.Context, frame *envelope.Frame) error {
	s.engine.Collect(frame)
	return nil
}

// Run drives the consumer and a periodic Synchronize/compose/write loop
// until ctx is cancelled.
func (s *Stage) Run(ctx context.Context) {
	s.writer.Start()

	go func() {
		if err := s.consumer.Run(ctx); err != nil {
			log.Errorln("unification: consumer exited with error:", err)
		}
	}()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.engine.Synchronize(s.onGroup)
		}
	}
}

func (s *Stage) onGroup(g sync.Group) {
	frames := make(map[string][]byte, len(g.Frames))
	for cam, f := range g.Frames {
		frames[cam] = f.ImageBytes
	}

	cellW, cellH := s.cfg.cellSize()
	mat := compose(frames, s.cfg.gridColumns(), cellW, cellH)

	// The composed grid is read by three independent consumers below;
	// sharedmat ref-counts it so whichever runs last is the one that
	// actually closes the underlying gocv.Mat.
	shared := sharedmat.NewSharedMat(mat)
	shared.Ref()
	shared.Ref()

	if g.Incomplete {
		log.Debugf("unification: writing partial group key=%d with %d/%d cameras", g.Key, len(g.Frames), s.engine.KnownCameraCount())
	}

	if err := s.writeGroupFiles(g, shared.Mat); err != nil {
		log.Warnln("unification:", err)
	}
	shared.Cleanup()

	if err := s.writer.WriteFrame(shared.Mat); err != nil {
		log.Warnln("unification:", err)
	}
	shared.Cleanup()

	s.publishUnified(g, shared.Mat)
	shared.Cleanup()
}

// writeGroupFiles writes output/<sync_key>/frame_<camera>.jpg for every
// camera present in the group plus output/<sync_key>/combined.jpg for the
// composed grid, per spec.md §4.H.
func (s *Stage) writeGroupFiles(g sync.Group, combined gocv.Mat) error {
	if s.cfg.SaveDirectory == "" {
		return nil
	}
	dir := filepath.Join(s.cfg.SaveDirectory, fmt.Sprintf("%d", g.Key))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	for cam, f := range g.Frames {
		path := filepath.Join(dir, fmt.Sprintf("frame_%s.jpg", cam))
		if err := os.WriteFile(path, f.ImageBytes, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	combinedBytes, err := gocv.IMEncode(".jpg", combined)
	if err != nil {
		return fmt.Errorf("encode combined: %w", err)
	}
	defer combinedBytes.Close()
	return os.WriteFile(filepath.Join(dir, "combined.jpg"), combinedBytes.GetBytes(), 0o644)
}

// publishUnified emits the unified group as a single envelope.Frame to
// OutputTopic, carrying the camera list and incompleteness flag so
// downstream Analytics can report on partial coverage.
func (s *Stage) publishUnified(g sync.Group, combined gocv.Mat) {
	if s.cfg.OutputTopic == "" {
		return
	}
	data, err := gocv.IMEncode(".jpg", combined)
	if err != nil {
		log.Warnln("unification: encode for publish:", err)
		return
	}
	defer data.Close()

	cameras := make([]string, 0, len(g.Frames))
	for cam := range g.Frames {
		cameras = append(cameras, cam)
	}
	sort.Strings(cameras)

	out := &envelope.Frame{
		CameraID:    "unified",
		FrameNumber: g.Key,
		ImageBytes:  append([]byte(nil), data.GetBytes()...),
		Metadata: envelope.Metadata{
			Incomplete: g.Incomplete,
			Cameras:    cameras,
		},
	}
	if err := s.producer.Publish(s.cfg.OutputTopic, out); err != nil {
		log.Warnln("unification: publish unified group:", err)
	}
}

// Close releases the consumer, producer, and writer.
func (s *Stage) Close() {
	if err := s.consumer.Close(); err != nil {
		log.Warnln("unification: consumer close:", err)
	}
	if err := s.producer.Close(); err != nil {
		log.Warnln("unification: producer close:", err)
	}
	s.writer.Close()
}

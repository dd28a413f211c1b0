package analytics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jonoton/mcmot/broker"
	"github.com/jonoton/mcmot/envelope"
	"github.com/jonoton/mcmot/notify"
)

// Stage is the single-instance Analytics stage: it consumes unified
// groups, batches them, asks llm for a description, and appends the
// result to a log line and an xlsx row, alerting by email when the
// analysis carries a Priority.
type Stage struct {
	cfg      *Config
	llm      LLM
	consumer *broker.ConsumerGroup
	producer *broker.Producer
	batch    *batcher
	report   *report
	logger   *log.Logger
	notifier *notify.Notify
	done     chan struct{}
}

// NewStage wires a Stage from cfg, using llm as the multimodal backend.
func NewStage(cfg *Config, llm LLM) (*Stage, error) {
	producer, err := broker.NewProducer(cfg.Broker)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.logFile()), 0o755); err != nil {
		producer.Close()
		return nil, fmt.Errorf("analytics: log dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.reportFile()), 0o755); err != nil {
		producer.Close()
		return nil, fmt.Errorf("analytics: report dir: %w", err)
	}

	rpt, err := newReport(cfg.reportFile())
	if err != nil {
		producer.Close()
		return nil, err
	}

	logger := log.New()
	logger.SetOutput(&lumberjack.Logger{
		Filename:   cfg.logFile(),
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   false,
	})
	logger.SetFormatter(&log.JSONFormatter{})

	var notifier *notify.Notify
	if cfg.AlertSender != nil {
		notifier = notify.NewNotify(cfg.AlertSender.Host, cfg.AlertSender.Port, cfg.AlertSender.User, cfg.AlertSender.Password)
	}

	s := &Stage{
		cfg:      cfg,
		llm:      llm,
		producer: producer,
		batch:    newBatcher(),
		report:   rpt,
		logger:   logger,
		notifier: notifier,
		done:     make(chan struct{}),
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
	s.batch.add(item{
		imageBytes: frame.ImageBytes,
		metadata: map[string]any{
			"cameras":    frame.Metadata.Cameras,
			"incomplete": frame.Metadata.Incomplete,
			"sync_key":   frame.FrameNumber,
		},
	})
	return nil
}

// Run drives the consumer and the batch-flush loop until ctx is
// cancelled.
func (s *Stage) Run(ctx context.Context) {
	go func() {
		if err := s.consumer.Run(ctx); err != nil {
			log.Errorln("analytics: consumer exited with error:", err)
		}
	}()

	interval := time.Duration(s.cfg.logWait() * float64(time.Second))
	s.batch.run(interval, ctx.Done(), s.flush)
	close(s.done)
}

func (s *Stage) flush(items []item) {
	for _, it := range items {
		analysis, err := s.llm.Analyze(context.Background(), s.cfg.prompt(), it.imageBytes, it.metadata)
		if err != nil {
			log.Errorln("analytics: analyze failed:", err)
			continue
		}

		cameras, _ := it.metadata["cameras"].([]string)
		incomplete, _ := it.metadata["incomplete"].(bool)
		camerasStr := strings.Join(cameras, ",")

		sort.Strings(cameras)
		s.logger.WithFields(log.Fields{
			"cameras":    cameras,
			"incomplete": incomplete,
			"priority":   analysis.Priority,
		}).Info(analysis.Summary)

		if err := s.report.Append(camerasStr, incomplete, analysis.Summary, analysis.Priority); err != nil {
			log.Errorln("analytics: report append failed:", err)
		}

		if analysis.Priority != "" {
			s.alert(analysis, camerasStr)
		}
	}
}

// alert sends a priority notification by email, additive to the
// log/report contract per spec.md §4.I.
func (s *Stage) alert(analysis *Analysis, cameras string) {
	if s.notifier == nil || s.cfg.AlertRx == nil {
		return
	}
	subject := fmt.Sprintf("[mcmot] priority=%s cameras=%s", analysis.Priority, cameras)
	s.notifier.SendEmail(s.cfg.AlertRx.Email, subject, analysis.Summary, nil, nil)
}

// Wait blocks until Run's flush loop has drained its final batch.
func (s *Stage) Wait() {
	<-s.done
}

// Close releases the consumer and producer.
func (s *Stage) Close() {
	if err := s.consumer.Close(); err != nil {
		log.Warnln("analytics: consumer close:", err)
	}
	if err := s.producer.Close(); err != nil {
		log.Warnln("analytics: producer close:", err)
	}
}

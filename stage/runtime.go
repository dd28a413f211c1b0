// Package stage implements the generic per-stage runtime (spec.md §4.C):
// consume -> sync -> callback -> produce, with at-least-once delivery,
// poison-message handling delegated to broker.ConsumerGroup, and graceful
// shutdown observed within a bounded grace period. The Start/Stop/Wait
// shape follows jonoton-scout/videosource.VideoReader's goroutine-plus-
// done-channel idiom, generalized to use context.Context instead of a
// close-only cancel channel so it composes with broker.ConsumerGroup.Run.
package stage

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/mcmot/broker"
	"github.com/jonoton/mcmot/envelope"
	"github.com/jonoton/mcmot/memory"
	"github.com/jonoton/mcmot/sync"
)

// ShutdownGrace is the maximum time Stop waits for in-flight work to
// observe context cancellation before returning, per spec.md §5.
const ShutdownGrace = 2 * time.Second

// StatsInterval is how often Runtime logs backlog size and heap stats.
const StatsInterval = 30 * time.Second

// Callback is the stage-specific per-frame (or per-group) transform. It
// returns zero or more output frames to be produced, one per configured
// output topic in order, or an error to mark the input poison.
type Callback func(ctx context.Context, frame *envelope.Frame) ([]*envelope.Frame, error)

// Config is the wiring a Runtime needs: which topics to consume/produce,
// the frame-sync engine (nil disables intra-camera admission control), and
// the broker configuration.
type Config struct {
	InputTopics  []string
	OutputTopics []string
	Broker       *broker.Config
	Sync         *sync.Config
}

// Runtime drives one stage's consume -> sync -> callback -> produce loop.
type Runtime struct {
	cfg      Config
	producer *broker.Producer
	consumer *broker.ConsumerGroup
	engine   *sync.Engine
	callback Callback

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRuntime wires a Runtime from cfg. The returned Runtime owns its own
// Producer and ConsumerGroup; callback is invoked once per admitted frame.
func NewRuntime(cfg Config, callback Callback) (*Runtime, error) {
	producer, err := broker.NewProducer(cfg.Broker)
	if err != nil {
		return nil, err
	}

	var engine *sync.Engine
	if cfg.Sync != nil {
		engine = sync.NewEngine(*cfg.Sync)
	}

	r := &Runtime{
		cfg:      cfg,
		producer: producer,
		engine:   engine,
		callback: callback,
		done:     make(chan struct{}),
	}

	consumer, err := broker.NewConsumerGroup(cfg.Broker, cfg.InputTopics, producer, r.handle)
	if err != nil {
		producer.Close()
		return nil, err
	}
	r.consumer = consumer

	return r, nil
}

// handle applies intra-camera admission control (if an Engine is
// configured), then the stage Callback, then publishes each output frame
// to every configured output topic in order.
func (r *Runtime) handle(ctx context.Context, frame *envelope.Frame) error {
	if r.engine != nil {
		decision := r.engine.SkipOrWait(frame.CameraID, frame.FrameNumber, frame.FrameTimestamp, frame.FpsDeclared)
		switch decision.Action {
		case sync.Skip:
			log.Debugf("stage: skipping camera=%s frame=%d", frame.CameraID, frame.FrameNumber)
			return nil
		case sync.Wait:
			select {
			case <-time.After(decision.Duration):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	outputs, err := r.callback(ctx, frame)
	if err != nil {
		return err
	}

	for _, out := range outputs {
		for _, topic := range r.cfg.OutputTopics {
			if err := r.producer.Publish(topic, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// Start begins consuming in the background. Stop or cancelling parent
// ends the loop; Wait blocks until it has fully exited.
func (r *Runtime) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel

	go func() {
		defer close(r.done)
		if err := r.consumer.Run(ctx); err != nil {
			log.Errorln("stage: consumer group run exited with error:", err)
		}
	}()

	go r.logStats(ctx)
}

// logStats periodically reports backlog size (when a Sync Engine is
// configured) and process heap usage, until ctx is cancelled.
func (r *Runtime) logStats(ctx context.Context) {
	ticker := time.NewTicker(StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := memory.NewMemory()
			if r.engine != nil {
				log.Infof("stage: backlog=%d heap_alloc=%.1fMB ram_app=%.1fMB",
					r.engine.BacklogSize(), memory.BytesToMegaBytes(m.HeapAllocatedBytes), memory.BytesToMegaBytes(m.RAMAppBytes))
			} else {
				log.Infof("stage: heap_alloc=%.1fMB ram_app=%.1fMB",
					memory.BytesToMegaBytes(m.HeapAllocatedBytes), memory.BytesToMegaBytes(m.RAMAppBytes))
			}
		}
	}
}

// Stop cancels the runtime's context and waits up to ShutdownGrace for
// the consume loop to exit before returning.
func (r *Runtime) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	select {
	case <-r.done:
	case <-time.After(ShutdownGrace):
		log.Warnln("stage: runtime did not shut down within grace period")
	}
}

// Wait blocks until the runtime has fully exited, with no timeout.
func (r *Runtime) Wait() {
	<-r.done
}

// Close releases the underlying broker connections. Call after Wait.
func (r *Runtime) Close() {
	if err := r.consumer.Close(); err != nil {
		log.Warnln("stage: consumer close:", err)
	}
	if err := r.producer.Close(); err != nil {
		log.Warnln("stage: producer close:", err)
	}
}

// Sync exposes the stage's Frame-Sync Engine for stages that also need
// inter-camera grouping (Collect/Synchronize) alongside per-frame
// admission control.
func (r *Runtime) Sync() *sync.Engine {
	return r.engine
}

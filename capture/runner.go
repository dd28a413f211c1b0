package capture

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/mcmot/broker"
	"github.com/jonoton/mcmot/control"
	"github.com/jonoton/mcmot/pubsubmutex"
	"github.com/jonoton/mcmot/sync"
)

// Runner owns every Camera configured for this Capture stage instance,
// plus the shared Frame-Sync Engine and output Producer they publish
// through.
type Runner struct {
	cfg      *Config
	producer *broker.Producer
	engine   *sync.Engine
	cameras  []*Camera
	byID     map[string]*Camera
	listener *control.Listener
	relay    *pubsubmutex.PubSubMutex
	stop     context.CancelFunc
}

// NewRunner wires a Runner from cfg.
func NewRunner(cfg *Config) (*Runner, error) {
	producer, err := broker.NewProducer(cfg.Broker)
	if err != nil {
		return nil, err
	}

	var engine *sync.Engine
	if cfg.Sync != nil {
		engine = sync.NewEngine(*cfg.Sync)
	}

	// relay fans HOLD/RESUME out to every camera goroutine in this process;
	// the control Listener has one callback but many cameras need to react.
	relay := pubsubmutex.New(1)

	r := &Runner{cfg: cfg, producer: producer, engine: engine, relay: relay, byID: make(map[string]*Camera)}
	for _, camCfg := range cfg.Cameras {
		source := NewIPSource(camCfg.URL)
		cam := NewCamera(camCfg, source, engine, cfg.Topic, producer, relay)
		r.cameras = append(r.cameras, cam)
		r.byID[camCfg.CameraID] = cam
	}

	if cfg.ControlTopic != "" {
		listener, err := control.NewListener(cfg.Broker, cfg.ControlTopic, r.onSignal)
		if err != nil {
			producer.Close()
			return nil, err
		}
		r.listener = listener
	}

	return r, nil
}

func (r *Runner) onSignal(sig control.Signal) {
	if sig.Pipeline != "" && sig.Pipeline != r.cfg.Pipeline {
		return
	}
	switch sig.Type {
	case control.SignalHold:
		log.Infoln("capture: HOLD received, pausing all cameras")
		r.relay.Pub(struct{}{}, "hold")
	case control.SignalResume:
		log.Infoln("capture: RESUME received, resuming all cameras")
		r.relay.Pub(struct{}{}, "resume")
	case control.SignalStop:
		log.Infoln("capture: STOP received, draining and exiting")
		if r.stop != nil {
			r.stop()
		}
	case control.SignalStart:
		// cameras begin reading as soon as Run is called; START is a no-op
		// once the worker process is already up.
	}
}

// Run starts every camera (and the control listener, if configured) and
// blocks until ctx is cancelled (directly, or via a STOP signal) and all
// cameras have exited.
func (r *Runner) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.stop = cancel
	defer cancel()

	r.relay.Start()
	defer r.relay.Shutdown()

	if r.listener != nil {
		go func() {
			if err := r.listener.Run(ctx); err != nil {
				log.Warnln("capture: control listener exited with error:", err)
			}
		}()
	}

	for _, cam := range r.cameras {
		go cam.Run(ctx)
	}
	<-ctx.Done()
	log.Infoln("capture: shutdown signal received, waiting for cameras to stop")
	for _, cam := range r.cameras {
		cam.Wait()
	}
	if r.listener != nil {
		if err := r.listener.Close(); err != nil {
			log.Warnln("capture: control listener close:", err)
		}
	}
}

// Close releases the shared producer.
func (r *Runner) Close() {
	if err := r.producer.Close(); err != nil {
		log.Warnln("capture: producer close:", err)
	}
}

package capture

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/mcmot/broker"
	"github.com/jonoton/mcmot/pubsubmutex"
	"github.com/jonoton/mcmot/sync"
)

// Camera drives one camera's read loop: source -> admission control ->
// publish. The ticker-driven read loop is adapted from
// jonoton-scout/videosource/videoreader.go's VideoReader.Start, narrowed
// from dual source/output tickers to a single source-fps ticker since
// admission control (not output throttling) now governs what's published.
type Camera struct {
	cfg    CameraConfig
	source Source
	engine *sync.Engine
	topic  string
	pub    *broker.Producer
	relay  *pubsubmutex.PubSubMutex

	frameNumber int64
	startTime   time.Time

	held atomic.Bool

	done chan struct{}
}

// Reconnect backoff bounds, per spec.md §4.D: retry Source.Initialize
// with exponential backoff on disconnect rather than exiting, resuming
// from the next available frame once the source comes back. The original
// (capture_callback.py's connect()) retries a fixed number of times on a
// flat 2s sleep; this doubles the delay on each attempt instead, capped
// at maxBackoff, and retries indefinitely rather than giving up.
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// NewCamera wires a Camera for cfg, publishing accepted frames to topic
// via pub, with admission control governed by the shared engine (nil
// disables admission control entirely) and HOLD/RESUME delivered over
// relay, the Runner's in-process signal bus.
func NewCamera(cfg CameraConfig, source Source, engine *sync.Engine, topic string, pub *broker.Producer, relay *pubsubmutex.PubSubMutex) *Camera {
	return &Camera{
		cfg:    cfg,
		source: source,
		engine: engine,
		topic:  topic,
		pub:    pub,
		relay:  relay,
		done:   make(chan struct{}),
	}
}

// Run drives the read loop until ctx is cancelled or the source ends.
func (c *Camera) Run(ctx context.Context) {
	defer close(c.done)

	if !c.reconnect(ctx) {
		return
	}
	defer c.source.Cleanup()

	fps := c.cfg.Fps
	if fps <= 0 {
		fps = 15
	}
	tick := time.NewTicker(time.Second / time.Duration(fps))
	defer tick.Stop()

	holdCh := c.relay.Sub("hold")
	resumeCh := c.relay.Sub("resume")

	c.startTime = time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-holdCh:
			c.held.Store(true)
		case <-resumeCh:
			c.held.Store(false)
		case <-tick.C:
			if c.held.Load() {
				continue
			}
			done, mat := c.source.ReadImage()
			if done {
				mat.Close()
				log.Warnf("capture: camera %s source disconnected, reconnecting", c.cfg.CameraID)
				c.source.Cleanup()
				if !c.reconnect(ctx) {
					return
				}
				continue
			}

			frameNumber := c.frameNumber
			c.frameNumber++
			frameTimestamp := time.Since(c.startTime).Seconds()

			if c.engine != nil {
				decision := c.engine.SkipOrWait(c.cfg.CameraID, frameNumber, frameTimestamp, fps)
				if decision.Action == sync.Skip {
					mat.Close()
					continue
				}
				if decision.Action == sync.Wait {
					mat.Close()
					select {
					case <-time.After(decision.Duration):
					case <-ctx.Done():
						return
					}
					continue
				}
			}

			jpg, err := encodeJPEG(mat, c.cfg.Quality)
			mat.Close()
			if err != nil {
				log.Warnln("capture:", err)
				continue
			}

			frame := envelopeFrom(c.cfg, frameNumber, frameTimestamp, jpg)
			if err := c.pub.Publish(c.topic, frame); err != nil {
				log.Warnf("capture: camera %s publish failed: %v", c.cfg.CameraID, err)
			}
		}
	}
}

// reconnect retries Source.Initialize with exponential backoff until it
// succeeds or ctx is cancelled. c.frameNumber and c.startTime are left
// untouched across a reconnect, so Run resumes numbering from the next
// available frame rather than restarting the camera's frame sequence.
func (c *Camera) reconnect(ctx context.Context) bool {
	backoff := initialBackoff
	for {
		if c.source.Initialize() {
			return true
		}
		log.Warnf("capture: camera %s failed to initialize, retrying in %s", c.cfg.CameraID, backoff)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Wait blocks until Run has returned.
func (c *Camera) Wait() {
	<-c.done
}

// CameraID returns the camera this Camera reads for, used by Runner to
// route control signals.
func (c *Camera) CameraID() string {
	return c.cfg.CameraID
}

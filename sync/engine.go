// Package sync implements the Frame-Sync Engine (spec.md §4.B): intra-camera
// skip/wait admission and inter-camera group formation, in both frame-number
// and timestamp modes. All state is guarded by one mutex per Engine
// instance; callbacks handed to Synchronize run after the lock is released,
// matching the "callbacks run outside the lock" rule in spec.md §4.B/§5.
package sync

import (
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/mcmot/envelope"
)

// Group is a complete or partial set of per-camera envelopes sharing a
// sync_key.
type Group struct {
	Key        int64
	Frames     map[string]*envelope.Frame
	Incomplete bool
}

// Engine is one Frame-Sync instance, embedded by a stage that needs
// intra-camera admission control and/or inter-camera grouping.
type Engine struct {
	cfg Config

	mu sync.Mutex

	// intra-camera
	watermarks map[string]*Watermark

	// inter-camera
	buffer        map[int64]map[string]*envelope.Frame
	entryTime     map[int64]time.Time
	knownCameras  map[string]bool
	groupWatermark int64
	lastBacklogCheck time.Time
	initialGroupDone bool
	seq           *Sequencer

	// seek_to_end
	latestKey   int64
	latestGroup map[string]*envelope.Frame

	fps int
}

// NewEngine creates an Engine from cfg. A nil cfg behaves as Mode: none.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		cfg:          cfg,
		watermarks:   make(map[string]*Watermark),
		buffer:       make(map[int64]map[string]*envelope.Frame),
		entryTime:    make(map[int64]time.Time),
		knownCameras: make(map[string]bool),
		fps:          cfg.Fps,
	}
	if cfg.EnableSequencing {
		e.seq = NewSequencer(cfg.BacklogCheckInterval())
	}
	return e
}

func (e *Engine) tolerance(fps int) float64 {
	if e.cfg.Type == ModeTimestamp {
		if fps <= 0 {
			fps = 1
		}
		return 1.0 / float64(fps)
	}
	return 1.0
}

func (e *Engine) syncKey(frameNumber int64, frameTimestamp float64, fps int) int64 {
	if e.cfg.Type == ModeTimestamp {
		if fps <= 0 {
			fps = 1
		}
		tol := 1.0 / float64(fps)
		return int64(math.Floor(frameTimestamp / tol))
	}
	return frameNumber
}

// SkipOrWait is the intra-camera admission decision of spec.md §4.B. It is
// a pure function of the camera's current watermark, the incoming key, and
// wall-clock now — the "Skip idempotence" testable property.
func (e *Engine) SkipOrWait(cameraID string, frameNumber int64, frameTimestamp float64, fps int) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	if fps <= 0 {
		fps = e.fps
	}
	if fps <= 0 {
		fps = 30
	}
	if e.fps == 0 {
		e.fps = fps
	}

	key := e.syncKey(frameNumber, frameTimestamp, fps)
	now := time.Now()

	wm, ok := e.watermarks[cameraID]
	if !ok {
		e.watermarks[cameraID] = &Watermark{Key: key, Timestamp: frameTimestamp, WallClock: now}
		return Decision{Action: Accept}
	}

	if key <= wm.Key {
		return Decision{Action: Skip}
	}

	step := key - wm.Key
	expected := wm.WallClock.Add(time.Duration(float64(step) / float64(fps) * float64(time.Second)))
	latencyThreshold := e.cfg.LatencyThreshold()

	if now.Sub(expected) > latencyThreshold {
		log.Debugf("sync: camera %s stale by %s, skipping frame %d", cameraID, now.Sub(expected), frameNumber)
		return Decision{Action: Skip}
	}

	tol := e.tolerance(fps)
	waitUntil := expected.Add(-time.Duration(tol * float64(time.Second)))
	if now.Before(waitUntil) {
		return Decision{Action: Wait, Duration: expected.Sub(now)}
	}

	e.watermarks[cameraID] = &Watermark{Key: key, Timestamp: frameTimestamp, WallClock: now}
	return Decision{Action: Accept}
}

// Collect deposits an envelope into the inter-camera Sync Buffer for later
// grouping by Synchronize. It discovers cameras dynamically, per spec.md's
// "Epoch" definition.
func (e *Engine) Collect(frame *envelope.Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.knownCameras[frame.CameraID] = true
	fps := frame.FpsDeclared
	if fps <= 0 {
		fps = e.fps
	}
	key := e.syncKey(frame.FrameNumber, frame.FrameTimestamp, fps)

	if e.cfg.SeekToEnd {
		e.latestKey = key
		e.latestGroup = map[string]*envelope.Frame{frame.CameraID: frame}
		// discard any buffered groups in flight; only the latest matters.
		e.buffer = make(map[int64]map[string]*envelope.Frame)
		e.entryTime = make(map[int64]time.Time)
		return
	}

	if e.seq != nil {
		e.seq.Add(key, frame)
		return
	}

	e.depositLocked(key, frame)
}

func (e *Engine) depositLocked(key int64, frame *envelope.Frame) {
	if key < e.groupWatermark {
		log.Debugf("sync: discarding stale envelope camera=%s key=%d below watermark=%d", frame.CameraID, key, e.groupWatermark)
		return
	}
	group, ok := e.buffer[key]
	if !ok {
		group = make(map[string]*envelope.Frame)
		e.buffer[key] = group
		e.entryTime[key] = time.Now()
	}
	group[frame.CameraID] = frame
}

// Synchronize drains the Sync Buffer: every complete group (one envelope
// per known camera) is emitted via callback; backlog-overflow and retention
// eviction are applied first. Callback runs after the lock is released.
func (e *Engine) Synchronize(callback func(Group)) {
	var groups []Group

	e.mu.Lock()
	if e.seq != nil {
		e.seq.Sequence()
		for _, v := range e.seq.Drain() {
			f := v.(*envelope.Frame)
			key := e.syncKey(f.FrameNumber, f.FrameTimestamp, f.FpsDeclared)
			e.depositLocked(key, f)
		}
	}

	if e.cfg.SeekToEnd {
		if e.latestGroup != nil {
			groups = append(groups, Group{Key: e.latestKey, Frames: e.latestGroup})
			e.latestGroup = nil
		}
		e.mu.Unlock()
		for _, g := range groups {
			callback(g)
		}
		return
	}

	if !e.initialGroupDone && e.cfg.IgnoreInitialDelay && len(e.buffer) > 0 {
		firstKey := e.earliestKeyLocked()
		groups = append(groups, e.popGroupLocked(firstKey, false))
		e.initialGroupDone = true
	}

	for {
		key := e.earliestKeyLocked()
		if key == math.MaxInt64 {
			break
		}
		group := e.buffer[key]
		if len(group) >= len(e.knownCameras) && len(e.knownCameras) > 0 {
			groups = append(groups, e.popGroupLocked(key, false))
			continue
		}
		break
	}

	e.checkBacklogLocked(&groups)
	e.evictRetentionLocked()

	e.mu.Unlock()

	for _, g := range groups {
		callback(g)
	}
}

func (e *Engine) earliestKeyLocked() int64 {
	best := int64(math.MaxInt64)
	for k := range e.buffer {
		if k < best {
			best = k
		}
	}
	return best
}

func (e *Engine) popGroupLocked(key int64, incomplete bool) Group {
	group := e.buffer[key]
	delete(e.buffer, key)
	delete(e.entryTime, key)
	if key > e.groupWatermark {
		e.groupWatermark = key
	}
	for k := range e.buffer {
		if k < e.groupWatermark {
			delete(e.buffer, k)
			delete(e.entryTime, k)
		}
	}
	return Group{Key: key, Frames: group, Incomplete: incomplete}
}

func (e *Engine) checkBacklogLocked(groups *[]Group) {
	if e.cfg.BacklogThreshold <= 0 {
		return
	}
	interval := e.cfg.BacklogCheckInterval()
	now := time.Now()
	if !e.lastBacklogCheck.IsZero() && now.Sub(e.lastBacklogCheck) < interval {
		return
	}
	e.lastBacklogCheck = now
	for len(e.buffer) > e.cfg.BacklogThreshold {
		oldest := e.earliestKeyLocked()
		if oldest == math.MaxInt64 {
			break
		}
		if e.cfg.Unify {
			log.Debugf("sync: backlog overflow, force-discarding group key=%d", oldest)
			delete(e.buffer, oldest)
			delete(e.entryTime, oldest)
		} else {
			log.Debugf("sync: backlog overflow, emitting incomplete group key=%d", oldest)
			*groups = append(*groups, e.popGroupLocked(oldest, true))
		}
	}
}

func (e *Engine) evictRetentionLocked() {
	retention := e.cfg.RetentionTime()
	now := time.Now()
	for key, t := range e.entryTime {
		if now.Sub(t) > retention {
			log.Debugf("sync: retention expired for group key=%d after %s", key, retention)
			delete(e.buffer, key)
			delete(e.entryTime, key)
		}
	}
}

// KnownCameraCount returns the number of cameras observed so far this epoch.
func (e *Engine) KnownCameraCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.knownCameras)
}

// BacklogSize returns the number of pending (incomplete) groups.
func (e *Engine) BacklogSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buffer)
}

// ResetEpoch clears the discovered-camera set, e.g. when a camera is
// permanently removed from the pipeline via control-plane reconfiguration.
func (e *Engine) ResetEpoch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.knownCameras = make(map[string]bool)
	e.groupWatermark = 0
}

package tracker

import "sync"

// cameraState is one camera's track set, guarded by its own mutex so
// concurrent capture- and detection-topic consumers for different cameras
// never contend, matching spec.md §4.G's per-camera locking requirement.
// seen records which sync_keys have already arrived on the detection
// stream, so the capture consumer knows which of its own frames still
// need a Kalman-only prediction.
type cameraState struct {
	mu     sync.Mutex
	tracks []*Track
	seen   *frameCache
}

// Manager owns every camera's cameraState, grounded on
// original_source/mcmot/tracker/tracker_service.py's TrackerService
// sharing one FrameCache-backed state across its capture and detection
// consumers.
type Manager struct {
	mu             sync.Mutex
	byCam          map[string]*cameraState
	frameCacheSize int
}

// NewManager creates an empty Manager whose per-camera seen-key cache is
// bounded to frameCacheSize entries.
func NewManager(frameCacheSize int) *Manager {
	return &Manager{byCam: make(map[string]*cameraState), frameCacheSize: frameCacheSize}
}

func (m *Manager) stateFor(cameraID string) *cameraState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byCam[cameraID]
	if !ok {
		s = &cameraState{seen: newFrameCache(m.frameCacheSize)}
		m.byCam[cameraID] = s
	}
	return s
}

// WithCamera runs fn against cameraID's state under its own lock,
// granting exclusive access to that camera's track list.
func (m *Manager) WithCamera(cameraID string, fn func(*cameraState)) {
	s := m.stateFor(cameraID)
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// frameCache records recently seen sync_keys in arrival order, evicting
// the oldest once over maxSize. Grounded on original_source/mcmot/
// framework/frame_synchronization/frame_cache.py's FrameCache, narrowed
// from an OrderedDict of frame payloads to a bounded set of keys, since
// the capture consumer only needs to know whether a key has been seen,
// not the detection frame itself.
type frameCache struct {
	maxSize int
	order   []int64
	seen    map[int64]struct{}
}

func newFrameCache(maxSize int) *frameCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &frameCache{maxSize: maxSize, seen: make(map[int64]struct{})}
}

// Add records key as seen, evicting the oldest recorded key if the cache
// is now over its size limit.
func (f *frameCache) Add(key int64) {
	if _, ok := f.seen[key]; ok {
		return
	}
	f.seen[key] = struct{}{}
	f.order = append(f.order, key)
	if len(f.order) > f.maxSize {
		oldest := f.order[0]
		f.order = f.order[1:]
		delete(f.seen, oldest)
	}
}

// Contains reports whether key has been recorded.
func (f *frameCache) Contains(key int64) bool {
	_, ok := f.seen[key]
	return ok
}

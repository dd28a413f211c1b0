package sync

import (
	"sort"
	"sync"
	"time"
)

// entry is one pending item awaiting re-ordering.
type entry struct {
	key   int64
	value interface{}
}

// Sequencer re-orders per-camera arrivals into monotonic sync-key order
// before they reach the Engine's buffer. It is the Go counterpart of the
// original implementation's FrameSequencingService: a small window of
// recent arrivals is collected, then sorted and drained in key order.
// Used only when Config.EnableSequencing is set.
type Sequencer struct {
	window time.Duration
	mu     sync.Mutex
	pending []entry
	ready   []entry
}

// NewSequencer creates a Sequencer that batches arrivals for window before
// sorting them by key.
func NewSequencer(window time.Duration) *Sequencer {
	if window <= 0 {
		window = time.Second
	}
	return &Sequencer{window: window}
}

// Add queues a value under key for later draining.
func (s *Sequencer) Add(key int64, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, entry{key: key, value: value})
}

// Sequence sorts the pending batch by key and makes it available to Drain.
// Call on a ticker cadence of roughly Sequencer.window.
func (s *Sequencer) Sequence() {
	s.mu.Lock()
	defer s.mu.Unlock()
	sort.SliceStable(s.pending, func(i, j int) bool { return s.pending[i].key < s.pending[j].key })
	s.ready = append(s.ready, s.pending...)
	s.pending = s.pending[:0]
}

// Drain pops and returns every value currently ready, in ascending key
// order.
func (s *Sequencer) Drain() []interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]interface{}, 0, len(s.ready))
	for _, e := range s.ready {
		out = append(out, e.value)
	}
	s.ready = s.ready[:0]
	return out
}

// Window returns the configured batching window.
func (s *Sequencer) Window() time.Duration {
	return s.window
}

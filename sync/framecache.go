package sync

import (
	"sort"
	"sync"

	"github.com/jonoton/mcmot/envelope"
)

// FrameCache is an insertion-ordered, timestamp-keyed, soft-capped cache of
// raw frames, used by the Tracker stage to stash capture-side frames it may
// need for Kalman prediction once the matching detection arrives (or never
// does). Grounded on original_source's frame_cache.py.
type FrameCache struct {
	mu      sync.Mutex
	maxSize int
	byTime  map[float64]*envelope.Frame
	order   []float64
}

// NewFrameCache creates a FrameCache capped at maxSize entries; maxSize<=0
// means unbounded.
func NewFrameCache(maxSize int) *FrameCache {
	return &FrameCache{
		maxSize: maxSize,
		byTime:  make(map[float64]*envelope.Frame),
	}
}

// Add inserts or replaces a frame keyed by its timestamp, evicting the
// oldest entry if the cache is at capacity.
func (c *FrameCache) Add(frame *envelope.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := frame.FrameTimestamp
	if _, exists := c.byTime[ts]; !exists {
		c.order = append(c.order, ts)
	}
	c.byTime[ts] = frame
	if c.maxSize > 0 && len(c.byTime) > c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.byTime, oldest)
	}
}

// Get returns the frame stored at exactly timestamp, if any.
func (c *FrameCache) Get(timestamp float64) (*envelope.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.byTime[timestamp]
	return f, ok
}

// AddAndRemoveBefore removes and returns every frame with a timestamp
// strictly less than before, oldest first.
func (c *FrameCache) AddAndRemoveBefore(before float64) []*envelope.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	sort.Float64s(c.order)
	var out []*envelope.Frame
	var remaining []float64
	for _, ts := range c.order {
		if ts < before {
			out = append(out, c.byTime[ts])
			delete(c.byTime, ts)
		} else {
			remaining = append(remaining, ts)
		}
	}
	c.order = remaining
	return out
}

// AddAndRemoveBetween removes and returns every frame with from <
// timestamp < to, matching original_source's get_and_remove_frames_between.
func (c *FrameCache) AddAndRemoveBetween(from, to float64) []*envelope.Frame {
	frames := c.AddAndRemoveBefore(to)
	out := make([]*envelope.Frame, 0, len(frames))
	for _, f := range frames {
		if f.FrameTimestamp > from {
			out = append(out, f)
		}
	}
	return out
}

// Len returns the number of cached frames.
func (c *FrameCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byTime)
}

package sync

import (
	"testing"
	"time"

	"github.com/jonoton/mcmot/envelope"
)

func TestSkipOrWaitAcceptsFirstFrame(t *testing.T) {
	e := NewEngine(Config{Type: ModeNumber, Fps: 10})
	d := e.SkipOrWait("cam1", 0, 0, 10)
	if d.Action != Accept {
		t.Fatalf("expected Accept for first frame, got %s", d.Action)
	}
}

func TestSkipOrWaitSkipsDuplicateOrOlderKey(t *testing.T) {
	e := NewEngine(Config{Type: ModeNumber, Fps: 10})
	e.SkipOrWait("cam1", 5, 0.5, 10)
	d := e.SkipOrWait("cam1", 5, 0.5, 10)
	if d.Action != Skip {
		t.Fatalf("expected Skip for duplicate key, got %s", d.Action)
	}
	d2 := e.SkipOrWait("cam1", 3, 0.3, 10)
	if d2.Action != Skip {
		t.Fatalf("expected Skip for older key, got %s", d2.Action)
	}
}

// Skip idempotence: once a key has been skipped or accepted, replaying the
// exact same (cameraID, frameNumber, frameTimestamp) never flips the
// decision to Accept.
func TestSkipIdempotence(t *testing.T) {
	e := NewEngine(Config{Type: ModeNumber, Fps: 10})
	e.SkipOrWait("cam1", 1, 0.1, 10)
	first := e.SkipOrWait("cam1", 1, 0.1, 10)
	second := e.SkipOrWait("cam1", 1, 0.1, 10)
	if first.Action != second.Action {
		t.Fatalf("decision for replayed key changed: %s vs %s", first.Action, second.Action)
	}
}

func TestSkipOrWaitSkipsWhenFarBehindLatencyThreshold(t *testing.T) {
	e := NewEngine(Config{Type: ModeNumber, Fps: 10, LatencySeconds: 0.05})
	e.SkipOrWait("cam1", 0, 0, 10)
	time.Sleep(20 * time.Millisecond)
	d := e.SkipOrWait("cam1", 100, 10, 10)
	if d.Action != Skip {
		t.Fatalf("expected Skip for far-future key past latency threshold, got %s", d.Action)
	}
}

func TestCollectAndSynchronizeEmitsCompleteGroup(t *testing.T) {
	e := NewEngine(Config{Type: ModeNumber, Fps: 10})
	e.Collect(&envelope.Frame{CameraID: "cam1", FrameNumber: 1, FpsDeclared: 10})
	e.Collect(&envelope.Frame{CameraID: "cam2", FrameNumber: 1, FpsDeclared: 10})

	var got []Group
	e.Synchronize(func(g Group) { got = append(got, g) })

	if len(got) != 1 {
		t.Fatalf("expected 1 complete group, got %d", len(got))
	}
	if len(got[0].Frames) != 2 {
		t.Fatalf("expected 2 frames in group, got %d", len(got[0].Frames))
	}
	if got[0].Incomplete {
		t.Fatalf("expected group marked complete")
	}
}

func TestSynchronizeHoldsIncompleteGroupUntilRetentionExpires(t *testing.T) {
	e := NewEngine(Config{Type: ModeNumber, Fps: 10, RetentionSeconds: 0.02})
	e.Collect(&envelope.Frame{CameraID: "cam1", FrameNumber: 1, FpsDeclared: 10})
	e.Collect(&envelope.Frame{CameraID: "cam2", FrameNumber: 2, FpsDeclared: 10})

	var got []Group
	e.Synchronize(func(g Group) { got = append(got, g) })
	if len(got) != 0 {
		t.Fatalf("expected no complete group yet, got %d", len(got))
	}

	time.Sleep(30 * time.Millisecond)
	e.Synchronize(func(g Group) { got = append(got, g) })
	if e.BacklogSize() != 0 {
		t.Fatalf("expected retained groups to be evicted, backlog=%d", e.BacklogSize())
	}
}

func TestSynchronizeBacklogOverflowEmitsIncompleteWhenNotUnify(t *testing.T) {
	e := NewEngine(Config{Type: ModeNumber, Fps: 10, BacklogThreshold: 1, BacklogCheckSeconds: 0.001, Unify: false})
	e.Collect(&envelope.Frame{CameraID: "cam1", FrameNumber: 1, FpsDeclared: 10})
	e.Collect(&envelope.Frame{CameraID: "cam1", FrameNumber: 2, FpsDeclared: 10})

	time.Sleep(2 * time.Millisecond)
	var got []Group
	e.Synchronize(func(g Group) { got = append(got, g) })

	found := false
	for _, g := range got {
		if g.Incomplete {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected at least one incomplete group emitted on backlog overflow, got %d groups", len(got))
	}
}

func TestSeekToEndKeepsOnlyLatest(t *testing.T) {
	e := NewEngine(Config{Type: ModeNumber, Fps: 10, SeekToEnd: true})
	e.Collect(&envelope.Frame{CameraID: "cam1", FrameNumber: 1})
	e.Collect(&envelope.Frame{CameraID: "cam1", FrameNumber: 2})
	e.Collect(&envelope.Frame{CameraID: "cam1", FrameNumber: 3})

	var got []Group
	e.Synchronize(func(g Group) { got = append(got, g) })
	if len(got) != 1 {
		t.Fatalf("expected exactly one emitted group under seek_to_end, got %d", len(got))
	}
	if got[0].Key != 3 {
		t.Fatalf("expected latest key 3, got %d", got[0].Key)
	}
}

func TestFrameCacheEvictsOldestOverCapacity(t *testing.T) {
	c := NewFrameCache(2)
	c.Add(&envelope.Frame{FrameTimestamp: 1})
	c.Add(&envelope.Frame{FrameTimestamp: 2})
	c.Add(&envelope.Frame{FrameTimestamp: 3})

	if c.Len() != 2 {
		t.Fatalf("expected capped length 2, got %d", c.Len())
	}
	if _, ok := c.Get(1); ok {
		t.Fatalf("expected oldest entry evicted")
	}
}

func TestFrameCacheRemoveBetween(t *testing.T) {
	c := NewFrameCache(0)
	c.Add(&envelope.Frame{FrameTimestamp: 1})
	c.Add(&envelope.Frame{FrameTimestamp: 2})
	c.Add(&envelope.Frame{FrameTimestamp: 3})

	out := c.AddAndRemoveBetween(1, 3)
	if len(out) != 1 || out[0].FrameTimestamp != 2 {
		t.Fatalf("expected exactly timestamp 2 in (1,3) window, got %v", out)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", c.Len())
	}
}

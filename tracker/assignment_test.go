package tracker

import (
	"testing"

	"github.com/jonoton/mcmot/envelope"
)

func TestIouIdentical(t *testing.T) {
	a := envelope.BBox{X: 0, Y: 0, W: 1, H: 1}
	if got := iou(a, a); got != 1 {
		t.Fatalf("expected 1, got %f", got)
	}
}

func TestAssignMatchesOverlappingSameClass(t *testing.T) {
	tracks := []*Track{
		{ClassID: "person", Kalman: NewKalmanFilter(0, 0, 1, 1, 1, 1)},
		{ClassID: "car", Kalman: NewKalmanFilter(5, 5, 1, 1, 1, 1)},
	}
	dets := []envelope.Detection{
		{BBox: envelope.BBox{X: 0.02, Y: 0.02, W: 1, H: 1}, ClassID: "person"},
		{BBox: envelope.BBox{X: 5.02, Y: 5.02, W: 1, H: 1}, ClassID: "car"},
	}

	result := assign(tracks, dets, 0.3)
	if len(result.trackToDetection) != 2 {
		t.Fatalf("expected both tracks matched, got %d", len(result.trackToDetection))
	}
	if result.trackToDetection[0] != 0 || result.trackToDetection[1] != 1 {
		t.Fatalf("expected track0->det0, track1->det1, got %v", result.trackToDetection)
	}
}

func TestAssignLeavesUnmatchedWhenBelowThreshold(t *testing.T) {
	tracks := []*Track{
		{ClassID: "person", Kalman: NewKalmanFilter(0, 0, 1, 1, 1, 1)},
	}
	dets := []envelope.Detection{
		{BBox: envelope.BBox{X: 10, Y: 10, W: 1, H: 1}, ClassID: "person"},
	}

	result := assign(tracks, dets, 0.3)
	if len(result.trackToDetection) != 0 {
		t.Fatalf("expected no match, got %v", result.trackToDetection)
	}
	if len(result.unmatchedTracks) != 1 || len(result.unmatchedDets) != 1 {
		t.Fatalf("expected 1 unmatched track and 1 unmatched detection")
	}
}

func TestAssignRejectsCrossClassMatch(t *testing.T) {
	tracks := []*Track{
		{ClassID: "person", Kalman: NewKalmanFilter(0, 0, 1, 1, 1, 1)},
	}
	dets := []envelope.Detection{
		{BBox: envelope.BBox{X: 0, Y: 0, W: 1, H: 1}, ClassID: "car"},
	}

	result := assign(tracks, dets, 0.3)
	if len(result.trackToDetection) != 0 {
		t.Fatalf("expected cross-class pairing rejected, got %v", result.trackToDetection)
	}
}

package detection

import (
	"testing"

	"github.com/jonoton/mcmot/envelope"
)

func TestIouIdenticalBoxes(t *testing.T) {
	a := envelope.BBox{X: 0, Y: 0, W: 1, H: 1}
	if got := iou(a, a); got != 1 {
		t.Fatalf("expected iou 1 for identical boxes, got %f", got)
	}
}

func TestIouDisjointBoxes(t *testing.T) {
	a := envelope.BBox{X: 0, Y: 0, W: 1, H: 1}
	b := envelope.BBox{X: 5, Y: 5, W: 1, H: 1}
	if got := iou(a, b); got != 0 {
		t.Fatalf("expected iou 0 for disjoint boxes, got %f", got)
	}
}

func TestNonMaxSuppressKeepsHighestConfidence(t *testing.T) {
	dets := []envelope.Detection{
		{BBox: envelope.BBox{X: 0, Y: 0, W: 1, H: 1}, Score: 0.6, ClassID: "person"},
		{BBox: envelope.BBox{X: 0.05, Y: 0.05, W: 1, H: 1}, Score: 0.9, ClassID: "person"},
	}
	kept := nonMaxSuppress(dets, 0.3)
	if len(kept) != 1 {
		t.Fatalf("expected overlapping same-class detections suppressed to 1, got %d", len(kept))
	}
	if kept[0].Score != 0.9 {
		t.Fatalf("expected the higher-confidence detection to survive, got score %f", kept[0].Score)
	}
}

func TestNonMaxSuppressKeepsDistinctClasses(t *testing.T) {
	dets := []envelope.Detection{
		{BBox: envelope.BBox{X: 0, Y: 0, W: 1, H: 1}, Score: 0.6, ClassID: "person"},
		{BBox: envelope.BBox{X: 0, Y: 0, W: 1, H: 1}, Score: 0.9, ClassID: "car"},
	}
	kept := nonMaxSuppress(dets, 0.3)
	if len(kept) != 2 {
		t.Fatalf("expected distinct-class overlapping detections both kept, got %d", len(kept))
	}
}

func TestNonMaxSuppressKeepsNonOverlapping(t *testing.T) {
	dets := []envelope.Detection{
		{BBox: envelope.BBox{X: 0, Y: 0, W: 0.2, H: 0.2}, Score: 0.6, ClassID: "person"},
		{BBox: envelope.BBox{X: 0.5, Y: 0.5, W: 0.2, H: 0.2}, Score: 0.9, ClassID: "person"},
	}
	kept := nonMaxSuppress(dets, 0.3)
	if len(kept) != 2 {
		t.Fatalf("expected non-overlapping detections both kept, got %d", len(kept))
	}
}

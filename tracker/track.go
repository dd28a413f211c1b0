package tracker

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonoton/mcmot/envelope"
)

// State is a track's lifecycle stage, per spec.md §4.G.
type State int

// State values.
const (
	Tentative State = iota
	Confirmed
	Deleted
)

func (s State) String() string {
	switch s {
	case Tentative:
		return "TENTATIVE"
	case Confirmed:
		return "CONFIRMED"
	case Deleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}

// Track is one tracked object's lifecycle, adapted from
// other_examples/adverant-.../multi_object_tracker.go's TrackedObject,
// narrowed to the fields spec.md §4.G's data model needs and restructured
// around a KalmanFilter instead of raw velocity bookkeeping.
type Track struct {
	ID        string
	ClassID   string
	State     State
	Kalman    *KalmanFilter
	Hits      int
	LostCount int
	LastSeen  time.Time
	score     float64
}

// NewTrack creates a TENTATIVE track from an initial detection.
func NewTrack(det envelope.Detection) *Track {
	return &Track{
		ID:       uuid.NewString(),
		ClassID:  det.ClassID,
		State:    Tentative,
		Kalman:   NewKalmanFilter(det.BBox.X, det.BBox.Y, det.BBox.W, det.BBox.H, 1.0/20, 1.0/160),
		Hits:     1,
		LastSeen: time.Now(),
		score:    det.Score,
	}
}

// BBox returns the track's current Kalman state as a bounding box.
func (t *Track) BBox() envelope.BBox {
	x, y, w, h := t.Kalman.State()
	return envelope.BBox{X: x, Y: y, W: w, H: h}
}

// Predict advances the track's Kalman filter one frame, for use when no
// matching detection arrives this frame.
func (t *Track) Predict() envelope.BBox {
	x, y, w, h := t.Kalman.Predict()
	return envelope.BBox{X: x, Y: y, W: w, H: h}
}

// Update corrects the track with a matched detection and advances its
// hit count, promoting it to CONFIRMED once minHits is reached.
func (t *Track) Update(det envelope.Detection, minHits int) {
	t.Kalman.Update(det.BBox.X, det.BBox.Y, det.BBox.W, det.BBox.H)
	t.Hits++
	t.LostCount = 0
	t.LastSeen = time.Now()
	t.score = det.Score
	if t.State == Tentative && t.Hits >= minHits {
		t.State = Confirmed
	}
}

// MarkMissed increments the track's consecutive-miss counter, deleting it
// once it exceeds maxLost.
func (t *Track) MarkMissed(maxLost int) {
	t.LostCount++
	if t.LostCount > maxLost {
		t.State = Deleted
	}
}

// skipFraction reports how far through its miss budget (maxLost) this
// track has drifted on consecutive detection misses alone, used to gate
// Kalman-only prediction on capture frames: a track that is already most
// of the way to being lost is not trusted to predict further forward.
func (t *Track) skipFraction(maxLost int) float64 {
	if maxLost <= 0 {
		return 0
	}
	return float64(t.LostCount) / float64(maxLost)
}

// ToEnvelope converts the track to its wire representation.
func (t *Track) ToEnvelope() envelope.Track {
	return envelope.Track{
		BBox:      t.BBox(),
		TrackID:   t.ID,
		ClassID:   t.ClassID,
		Confirmed: t.State == Confirmed,
	}
}

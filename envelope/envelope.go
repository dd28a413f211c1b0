// Package envelope defines the Frame envelope that crosses every stage
// topic, plus the metadata records stages append to it as it traverses
// the pipeline.
package envelope

import "time"

// CameraMetadata is the static per-camera information stamped by Capture.
type CameraMetadata struct {
	Location    string `json:"location,omitempty"`
	Format      string `json:"format,omitempty"`
	Compression string `json:"compression,omitempty"`
	Bitrate     int     `json:"bitrate,omitempty"`
	Encoding    string `json:"encoding,omitempty"`
}

// BBox is an axis-aligned box, x/y/width/height in pixels.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Detection is one detector output appended by the Detection stage.
type Detection struct {
	BBox      BBox    `json:"bbox"`
	Score     float64 `json:"score"`
	ClassID   string  `json:"class_id"`
	Predicted bool    `json:"predicted,omitempty"`
}

// Track is one tracker output appended by the Tracker stage.
type Track struct {
	BBox      BBox   `json:"bbox"`
	TrackID   string `json:"track_id"`
	ClassID   string `json:"class_id"`
	Confirmed bool   `json:"confirmed"`
}

// ReIDAssignment associates a detection index with a globally consistent
// identity, appended by the ReID stage.
type ReIDAssignment struct {
	DetectionIndex int    `json:"detection_index"`
	ReIDID         string `json:"reid_id"`
}

// Metadata is the stage-appended map carried on every envelope. Each stage
// only ever adds to it; image bytes may be replaced but metadata is never
// removed.
type Metadata struct {
	Detections []Detection       `json:"detections,omitempty"`
	Tracks     []Track           `json:"tracks,omitempty"`
	ReID       []ReIDAssignment  `json:"reid,omitempty"`
	Incomplete bool              `json:"incomplete,omitempty"`
	Cameras    []string          `json:"cameras,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Frame is the canonical unit flowing through every stage topic.
type Frame struct {
	CameraID       string         `json:"camera_id"`
	FrameNumber    int64          `json:"frame_number"`
	FrameTimestamp float64        `json:"frame_timestamp"`
	FpsDeclared    int            `json:"fps_declared"`
	ImageBytes     []byte         `json:"-"`
	Metadata       Metadata       `json:"metadata"`
	CameraMetadata CameraMetadata `json:"camera_metadata"`

	// ArrivalTime is set by the consuming stage when decoded, never
	// serialized; used by the Sync Engine's skip/wait wall-clock math.
	ArrivalTime time.Time `json:"-"`
}

// Clone returns a shallow copy of the envelope with its own Metadata slices,
// so a stage can append to Metadata without mutating a sibling's copy of the
// same frame (e.g. Unification fanning a group out to Analytics and to disk).
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	clone := *f
	clone.ImageBytes = append([]byte(nil), f.ImageBytes...)
	clone.Metadata.Detections = append([]Detection(nil), f.Metadata.Detections...)
	clone.Metadata.Tracks = append([]Track(nil), f.Metadata.Tracks...)
	clone.Metadata.ReID = append([]ReIDAssignment(nil), f.Metadata.ReID...)
	clone.Metadata.Cameras = append([]string(nil), f.Metadata.Cameras...)
	return &clone
}

// SyncKey returns the integer key used by the Frame-Sync Engine in number
// mode. Timestamp mode computes its own bucketed key; see sync.Engine.
func (f *Frame) SyncKey() int64 {
	return f.FrameNumber
}

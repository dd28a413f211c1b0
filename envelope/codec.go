package envelope

import "encoding/json"

// wireImage is the NumPy-like array tuple used for the image field and for
// ReID embedding vectors: shape, dtype, and the raw bytes, base64-encoded by
// the standard JSON []byte marshaler.
type wireImage struct {
	Shape []int  `json:"shape"`
	Dtype string `json:"dtype"`
	B64   []byte `json:"b64"`
}

type wireFrame struct {
	CameraID       string         `json:"camera_id"`
	FrameNumber    int64          `json:"frame_number"`
	FrameTimestamp float64        `json:"frame_timestamp"`
	Fps            int            `json:"fps"`
	Image          wireImage      `json:"image"`
	Metadata       Metadata       `json:"metadata"`
	CameraMetadata CameraMetadata `json:"camera_metadata"`
}

// Marshal encodes the envelope to the wire JSON document described in
// spec.md §6: a JSON document with the binary image field represented as a
// shape+dtype+bytes tuple (bytes become base64 via the standard library).
func Marshal(f *Frame) ([]byte, error) {
	w := wireFrame{
		CameraID:       f.CameraID,
		FrameNumber:    f.FrameNumber,
		FrameTimestamp: f.FrameTimestamp,
		Fps:            f.FpsDeclared,
		Image: wireImage{
			Shape: []int{len(f.ImageBytes)},
			Dtype: "uint8",
			B64:   f.ImageBytes,
		},
		Metadata:       f.Metadata,
		CameraMetadata: f.CameraMetadata,
	}
	return json.Marshal(w)
}

// Unmarshal decodes the wire JSON document back into a Frame. ArrivalTime is
// left for the caller (broker.ConsumerGroup) to stamp.
func Unmarshal(data []byte) (*Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	f := &Frame{
		CameraID:       w.CameraID,
		FrameNumber:    w.FrameNumber,
		FrameTimestamp: w.FrameTimestamp,
		FpsDeclared:    w.Fps,
		ImageBytes:     w.Image.B64,
		Metadata:       w.Metadata,
		CameraMetadata: w.CameraMetadata,
	}
	return f, nil
}

// EmbeddingWire is the NumPy-like shape+dtype+bytes tuple used for ReID
// embedding vectors in the Embedding Store's wire form (used only when an
// embedding must cross a process boundary, e.g. a dead-letter diagnostic).
type EmbeddingWire struct {
	Shape []int     `json:"shape"`
	Dtype string    `json:"dtype"`
	Data  []float32 `json:"data"`
}

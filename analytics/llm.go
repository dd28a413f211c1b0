package analytics

import "context"

// Analysis is the structured result an LLM returns for one unified frame.
type Analysis struct {
	Summary  string `json:"summary"`
	Priority string `json:"priority,omitempty"`
}

// LLM is the multimodal analysis backend Analytics calls for every batch.
// Implementations wrap a concrete provider (local model server, hosted
// API, etc); the stage only depends on this interface, following the
// same "unified interface over swappable backends" shape as
// marcopennelli-orbo's pipeline.Detector.
type LLM interface {
	// Analyze sends prompt plus a JPEG image and returns the model's
	// structured description. metadata carries per-group context (camera
	// list, incomplete flag, track/detection counts) the prompt can
	// reference.
	Analyze(ctx context.Context, prompt string, image []byte, metadata map[string]any) (*Analysis, error)
}

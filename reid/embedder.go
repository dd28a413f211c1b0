package reid

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/jonoton/mcmot/cuda"
	"github.com/jonoton/mcmot/runtime"
)

const fileLocation = "data/reid"

// Embedder extracts a fixed-length appearance vector from one cropped
// track region.
type Embedder interface {
	Embed(mat gocv.Mat) ([]float32, error)
	Close()
}

// GocvEmbedder is a gocv.dnn-backed Embedder, adapted from
// jonoton-scout/face/face.go's network-loading and backend-selection
// pattern, but running an embedding network instead of a detector and
// returning the raw output blob as a feature vector instead of decoding
// 1x1xNx7 detection rows.
type GocvEmbedder struct {
	net gocv.Net
}

// NewGocvEmbedder loads the embedding network named in cfg.
func NewGocvEmbedder(cfg *Config) (*GocvEmbedder, error) {
	modelFile := cfg.ModelFile
	if modelFile == "" {
		modelFile = "reid_embedder.onnx"
	}
	configFile := cfg.ConfigFile

	modelPath := runtime.GetRuntimeDirectory(fileLocation) + modelFile
	var net gocv.Net
	if configFile != "" {
		net = gocv.ReadNet(modelPath, runtime.GetRuntimeDirectory(fileLocation)+configFile)
	} else {
		net = gocv.ReadNetFromONNX(modelPath)
	}
	if net.Empty() {
		return nil, fmt.Errorf("reid: could not read embedding network %s", modelPath)
	}

	backend, target := reidBackendTarget()
	if err := net.SetPreferableBackend(backend); err == nil {
		net.SetPreferableTarget(target)
	}

	return &GocvEmbedder{net: net}, nil
}

func reidBackendTarget() (gocv.NetBackendType, gocv.NetTargetType) {
	if cuda.HasCudaInstalled() {
		return gocv.NetBackendCUDA, gocv.NetTargetCUDA
	}
	return gocv.NetBackendDefault, gocv.NetTargetCPU
}

// Embed runs a forward pass over mat and returns the flattened output
// blob as the embedding vector.
func (e *GocvEmbedder) Embed(mat gocv.Mat) ([]float32, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("reid: empty crop")
	}
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(128, 256), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	defer out.Close()

	total := out.Total()
	vec := make([]float32, total)
	for i := 0; i < total; i++ {
		vec[i] = out.GetFloatAt(0, i)
	}
	return vec, nil
}

// Close releases the underlying network.
func (e *GocvEmbedder) Close() {
	e.net.Close()
}

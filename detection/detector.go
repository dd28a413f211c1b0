package detection

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/jonoton/mcmot/envelope"
	"github.com/jonoton/mcmot/runtime"
)

const fileLocation = "data/detection"

// Detector runs object detection over one decoded image and returns
// normalized detections (BBox coordinates in [0,1], matching envelope.BBox).
type Detector interface {
	Detect(mat gocv.Mat) ([]envelope.Detection, error)
	Close()
}

// GocvDetector is a gocv.dnn-backed Detector, adapted from
// jonoton-scout/tensor/tensor.go's Tensor.Run: same SSD-style
// BlobFromImage -> Forward -> 1x1xNx7 decode pipeline, restructured from a
// channel-pipeline stage into a synchronous per-image call since frames
// now arrive one at a time off Kafka rather than down an in-process
// channel.
type GocvDetector struct {
	net          gocv.Net
	descriptions []string
	cfg          *Config
}

// NewGocvDetector loads the network and class descriptions named in cfg.
func NewGocvDetector(cfg *Config) (*GocvDetector, error) {
	modelFile := cfg.ModelFile
	if modelFile == "" {
		modelFile = "frozen_inference_graph.pb"
	}
	configFile := cfg.ConfigFile
	if configFile == "" {
		configFile = "ssd_mobilenet_v1_coco_2017_11_17.pbtxt"
	}
	descFile := cfg.DescFile
	if descFile == "" {
		descFile = "coco.names"
	}

	modelPath := runtime.GetRuntimeDirectory(fileLocation) + modelFile
	configPath := runtime.GetRuntimeDirectory(fileLocation) + configFile
	descPath := runtime.GetRuntimeDirectory(fileLocation) + descFile

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("detection: could not read network model %s / %s", modelPath, configPath)
	}

	backend, target := backendTarget(cfg.ForceCPU)
	if err := net.SetPreferableBackend(backend); err != nil {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	} else if err := net.SetPreferableTarget(target); err != nil {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}

	descriptions, err := readDescriptions(descPath)
	if err != nil {
		log.Warnf("detection: could not read descriptions file %s: %v", descPath, err)
	}

	return &GocvDetector{net: net, descriptions: descriptions, cfg: cfg}, nil
}

// Detect runs a forward pass over mat and returns filtered, normalized
// detections.
func (d *GocvDetector) Detect(mat gocv.Mat) ([]envelope.Detection, error) {
	if mat.Empty() {
		return nil, nil
	}

	origWidth := mat.Cols()
	origHeight := mat.Rows()

	scaleWidth := d.cfg.ScaleWidth
	if scaleWidth <= 0 {
		scaleWidth = origWidth
	}
	scaleRatio := float64(origWidth) / float64(scaleWidth)

	scaled := gocv.NewMat()
	defer scaled.Close()
	scaleHeight := int(float64(origHeight) / scaleRatio)
	gocv.Resize(mat, &scaled, image.Pt(scaleWidth, scaleHeight), 0, 0, gocv.InterpolationLinear)

	blob := gocv.BlobFromImage(scaled, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	prob := d.net.Forward("")
	defer prob.Close()

	minConfidence := float32(d.cfg.MinConfidencePercentage) / 100
	if minConfidence <= 0 {
		minConfidence = 0.5
	}
	minArea := 0
	maxArea := origWidth * origHeight
	if d.cfg.MinPercentage > 0 {
		minArea = origWidth * origHeight * d.cfg.MinPercentage / 100
	}
	if d.cfg.MaxPercentage > 0 {
		maxArea = origWidth * origHeight * d.cfg.MaxPercentage / 100
	}

	var detections []envelope.Detection
	for i := 0; i < prob.Total(); i += 7 {
		confidence := prob.GetFloatAt(0, i+2)
		if confidence < minConfidence {
			continue
		}
		classID := int(prob.GetFloatAt(0, i+1))
		desc := ""
		if classID > 0 && classID <= len(d.descriptions) {
			desc = d.descriptions[classID-1]
		}
		if !d.allowed(desc) {
			continue
		}

		left := prob.GetFloatAt(0, i+3) * float32(scaled.Cols()) * float32(scaleRatio)
		top := prob.GetFloatAt(0, i+4) * float32(scaled.Rows()) * float32(scaleRatio)
		right := prob.GetFloatAt(0, i+5) * float32(scaled.Cols()) * float32(scaleRatio)
		bottom := prob.GetFloatAt(0, i+6) * float32(scaled.Rows()) * float32(scaleRatio)

		w := right - left
		h := bottom - top
		area := int(w) * int(h)
		if area < minArea || area > maxArea {
			continue
		}

		detections = append(detections, envelope.Detection{
			BBox: envelope.BBox{
				X: float64(left) / float64(origWidth),
				Y: float64(top) / float64(origHeight),
				W: float64(w) / float64(origWidth),
				H: float64(h) / float64(origHeight),
			},
			Score:   float64(confidence),
			ClassID: strings.ToLower(desc),
		})
	}

	nmsThreshold := d.cfg.NMSThreshold
	if nmsThreshold <= 0 {
		nmsThreshold = 0.45
	}
	return nonMaxSuppress(detections, nmsThreshold), nil
}

func (d *GocvDetector) allowed(desc string) bool {
	if len(d.cfg.AllowedList) == 0 {
		return true
	}
	for _, cur := range d.cfg.AllowedList {
		if strings.EqualFold(cur, desc) {
			return true
		}
	}
	return false
}

// Close releases the underlying network.
func (d *GocvDetector) Close() {
	d.net.Close()
}

// nonMaxSuppress removes lower-confidence detections that overlap a
// higher-confidence one of the same class past threshold, generalizing
// jonoton-scout/tensor's sameOverlapPercentage "replace with better"
// dedup rule into per-class greedy NMS.
func nonMaxSuppress(detections []envelope.Detection, threshold float32) []envelope.Detection {
	if len(detections) == 0 {
		return detections
	}
	sorted := make([]envelope.Detection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	kept := make([]envelope.Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == d.ClassID && iou(k.BBox, d.BBox) > float64(threshold) {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}

func iou(a, b envelope.BBox) float64 {
	ax1, ay1, ax2, ay2 := a.X, a.Y, a.X+a.W, a.Y+a.H
	bx1, by1, bx2, by2 := b.X, b.Y, b.X+b.W, b.Y+b.H

	interX1 := max(ax1, bx1)
	interY1 := max(ay1, by1)
	interX2 := min(ax2, bx2)
	interY2 := min(ay2, by2)

	interW := max(0, interX2-interX1)
	interH := max(0, interY2-interY1)
	interArea := interW * interH

	unionArea := a.W*a.H + b.W*b.H - interArea
	if unionArea <= 0 {
		return 0
	}
	return interArea / unionArea
}

func readDescriptions(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

package detection

import (
	"image"

	"gocv.io/x/gocv"
)

// MotionGate is a cheap background-subtraction pre-filter that decides
// whether a frame is worth running the (expensive) DNN detector over,
// adapted from jonoton-scout/motion/motion.go's BackgroundSubtractorMOG2
// pipeline, trimmed to a single boolean verdict since the Detection stage
// only needs a gate, not highlighted motion regions.
type MotionGate struct {
	mog2              gocv.BackgroundSubtractorMOG2
	scaleWidth        int
	minimumPercentage int
	thresholdPercent  int
	noiseReduction    int
}

// NewMotionGate creates a MotionGate with jonoton-scout's motion defaults.
func NewMotionGate() *MotionGate {
	return &MotionGate{
		mog2:              gocv.NewBackgroundSubtractorMOG2(),
		scaleWidth:        320,
		minimumPercentage: 2,
		thresholdPercent:  40,
		noiseReduction:    11,
	}
}

// HasMotion reports whether mat contains a foreground contour large
// enough to be worth detecting over.
func (g *MotionGate) HasMotion(mat gocv.Mat) bool {
	if mat.Empty() {
		return true
	}

	origWidth := mat.Cols()
	scaleWidth := g.scaleWidth
	if scaleWidth <= 0 || scaleWidth > origWidth {
		scaleWidth = origWidth
	}
	scaleHeight := int(float64(mat.Rows()) * float64(scaleWidth) / float64(origWidth))

	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.Resize(mat, &scaled, image.Pt(scaleWidth, scaleHeight), 0, 0, gocv.InterpolationLinear)

	blur := gocv.NewMat()
	defer blur.Close()
	noise := g.noiseReduction
	if noise%2 == 0 {
		noise++
	}
	gocv.GaussianBlur(scaled, &blur, image.Pt(noise, noise), 0, 0, gocv.BorderDefault)

	fg := gocv.NewMat()
	defer fg.Close()
	g.mog2.Apply(blur, &fg)

	thresh := gocv.NewMat()
	defer thresh.Close()
	threshold := 255 * g.thresholdPercent / 100
	gocv.Threshold(fg, &thresh, float32(threshold), 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	imageArea := scaleWidth * scaleHeight
	minimumArea := float64(imageArea * g.minimumPercentage / 100)

	for i := 0; i < contours.Size(); i++ {
		if gocv.ContourArea(contours.At(i)) >= minimumArea {
			return true
		}
	}
	return false
}

// Close releases the background subtractor.
func (g *MotionGate) Close() {
	g.mog2.Close()
}

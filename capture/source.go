package capture

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Source reads raw frames from a camera. It is the capture-package
// analogue of jonoton-scout/videosource.VideoSource, narrowed to the one
// backend this pipeline needs (network/file video streams via gocv).
type Source interface {
	Initialize() bool
	ReadImage() (done bool, mat gocv.Mat)
	Cleanup()
}

// IPSource reads from an RTSP/HTTP/file URL via gocv.VideoCaptureFile,
// adapted from jonoton-scout/videosource/ipcamsource.go.
type IPSource struct {
	url     string
	capture *gocv.VideoCapture
}

// NewIPSource creates a Source for url.
func NewIPSource(url string) *IPSource {
	return &IPSource{url: url}
}

// Initialize opens the capture stream.
func (s *IPSource) Initialize() bool {
	capture, err := gocv.VideoCaptureFile(s.url)
	if err != nil {
		log.Warnf("capture: could not open video source %s: %v", s.url, err)
		return false
	}
	s.capture = capture
	return true
}

// Cleanup releases the underlying capture handle.
func (s *IPSource) Cleanup() {
	if s.capture != nil {
		s.capture.Close()
	}
}

// ReadImage reads the next frame. done is true when the stream has ended
// or errored.
func (s *IPSource) ReadImage() (done bool, mat gocv.Mat) {
	if s.capture == nil {
		return true, gocv.NewMat()
	}
	mat = gocv.NewMat()
	if !s.capture.Read(&mat) {
		return true, mat
	}
	return false, mat
}

// encodeJPEG re-encodes mat to a JPEG byte slice at the given quality
// percent, matching jonoton-scout/videosource/image.go's ChangeQuality.
func encodeJPEG(mat gocv.Mat, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	params := []int{gocv.IMWriteJpegQuality, quality}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, params)
	if err != nil {
		return nil, fmt.Errorf("capture: encode jpeg: %w", err)
	}
	defer buf.Close()
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

package unification

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// CombinedWriter writes grid-composed frames to a video file, opening on
// first frame and closing after InactivityTimeout elapses with no new
// frame, adapted from jonoton-scout/videosource/videowriter.go's
// timeoutTick-driven open/close lifecycle (trimmed from that file's
// pre-roll ring buffer and Record-flag toggle, since the Unification
// stage's writer is always-on while groups keep arriving).
type CombinedWriter struct {
	saveDirectory string
	timeout       time.Duration

	writer        *gocv.VideoWriter
	lastWrite     time.Time
	done          chan struct{}
	width, height int
	fps           float64
}

// NewCombinedWriter creates a CombinedWriter. width/height must match the
// grid frame size passed to WriteFrame.
func NewCombinedWriter(saveDirectory string, timeout time.Duration, width, height int, fps float64) *CombinedWriter {
	if fps <= 0 {
		fps = 10
	}
	return &CombinedWriter{
		saveDirectory: saveDirectory,
		timeout:       timeout,
		done:          make(chan struct{}),
		width:         width,
		height:        height,
		fps:           fps,
	}
}

// Start begins the inactivity-timeout watcher goroutine.
func (w *CombinedWriter) Start() {
	go func() {
		defer close(w.done)
		tick := time.NewTicker(w.timeout / 4)
		defer tick.Stop()
		for range tick.C {
			if w.writer == nil {
				continue
			}
			if time.Since(w.lastWrite) >= w.timeout {
				log.Infoln("unification: combined writer inactive, closing")
				w.close()
			}
		}
	}()
}

// WriteFrame opens the writer on first use and appends mat to it.
func (w *CombinedWriter) WriteFrame(mat gocv.Mat) error {
	if w.writer == nil {
		filename := fmt.Sprintf("%s/combined_%s.mp4", w.saveDirectory, time.Now().Format("01-02-2006_15-04-05"))
		writer, err := gocv.VideoWriterFile(filename, "mp4v", w.fps, w.width, w.height, true)
		if err != nil {
			return fmt.Errorf("unification: open writer: %w", err)
		}
		w.writer = writer
		log.Infof("unification: opened combined writer %s", filename)
	}
	w.lastWrite = time.Now()
	return w.writer.Write(mat)
}

func (w *CombinedWriter) close() {
	if w.writer != nil {
		w.writer.Close()
		w.writer = nil
	}
}

// Close stops the writer for good.
func (w *CombinedWriter) Close() {
	w.close()
}

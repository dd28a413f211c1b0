package sync

import "time"

// Watermark is the last accepted (frame_number, frame_timestamp,
// wall_clock_arrival) for a camera, used by SkipOrWait, or the last
// completed sync_key for a pipeline, used by Synchronize.
type Watermark struct {
	Key       int64
	Timestamp float64
	WallClock time.Time
}

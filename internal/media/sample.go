package media

import (
	"time"
)

// Timestamp is a presentation time measured on the shared session
// clock, as elapsed time since the session started.
type Timestamp time.Duration

// Duration returns the timestamp as a time.Duration since session
// start.
func (t Timestamp) Duration() time.Duration {
	return time.Duration(t)
}

// Millis returns the timestamp in milliseconds. Persisted artifacts
// and log lines use this representation.
func (t Timestamp) Millis() float64 {
	return float64(time.Duration(t)) / float64(time.Millisecond)
}

// Clock produces sample timestamps. All sources attached to one
// session share a single clock so their timestamps are comparable.
type Clock interface {
	Now() Timestamp
}

type sessionClock struct {
	start time.Time
}

// NewSessionClock returns a monotonic clock anchored at the moment of
// the call.
func NewSessionClock() Clock {
	return &sessionClock{start: time.Now()}
}

func (c *sessionClock) Now() Timestamp {
	return Timestamp(time.Since(c.start))
}

// DropReason explains why a source delivered a sample without its
// payload. Reasons appear verbatim as log fields and metric labels.
type DropReason string

const (
	DropNone          DropReason = ""
	DropLateData      DropReason = "late_data"
	DropOutOfBuffers  DropReason = "out_of_buffers"
	DropDiscontinuity DropReason = "discontinuity"
)

// VideoSample is one video frame from the capture clock. Dropped
// samples carry a nil Buffer and a reason.
type VideoSample struct {
	Buffer    *VideoBuffer
	Timestamp Timestamp
	Dropped   bool
	Reason    DropReason
}

// DepthSample is one depth map. Calibration travels with the buffer
// as an opaque payload; see the calib package for decoding. Dropped
// samples carry a nil Buffer and a reason.
type DepthSample struct {
	Buffer    *DepthBuffer
	Timestamp Timestamp
	Dropped   bool
	Reason    DropReason
}

// MetadataSample carries the regions detected in a frame. An empty
// Regions slice is a valid observation, not a drop.
type MetadataSample struct {
	Regions   []Region
	Timestamp Timestamp
	Dropped   bool
	Reason    DropReason
}

// Bundle is a timestamp-correlated set of streams produced by the
// synchronizer. Video is always present; Depth and Region are nil
// when their streams had nothing usable at this instant. Bundles are
// consumed synchronously during dispatch and must not be retained.
type Bundle struct {
	Video     *VideoBuffer
	Depth     *DepthBuffer
	Region    *Region
	Timestamp Timestamp
}

// Release returns the bundle's buffers to their pools.
func (b *Bundle) Release() {
	if b.Video != nil {
		b.Video.Release()
	}
	if b.Depth != nil {
		b.Depth.Release()
	}
}

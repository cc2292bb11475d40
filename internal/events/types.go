package events

// Event type constants for kelindar/event.
const (
	TypeSessionStarted uint32 = iota + 1
	TypeSessionStopped
	TypeStateChanged
	TypeSampleDropped
	TypeBundleDispatched
	TypeCalibrationPersisted
	TypeSinkError
	TypeConfigReloaded
	TypeLogEntry
	TypePipelineStats
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStartedEvent is published when a capture session reaches the
// running state.
type SessionStartedEvent struct {
	SessionID string `json:"session_id" example:"8c1f0b2a" doc:"Capture session identifier"`
	Selection string `json:"selection" example:"truedepth" doc:"Active source selection"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStartedEvent.
func (e SessionStartedEvent) Type() uint32 { return TypeSessionStarted }

// SessionStoppedEvent is published after a session has fully torn
// down, including the persistence flush.
type SessionStoppedEvent struct {
	SessionID string `json:"session_id" example:"8c1f0b2a" doc:"Capture session identifier"`
	Reason    string `json:"reason" example:"requested" doc:"Why the session ended"`
	Bundles   uint64 `json:"bundles" example:"1412" doc:"Bundles dispatched during the session"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStoppedEvent.
func (e SessionStoppedEvent) Type() uint32 { return TypeSessionStopped }

// StateChangedEvent reports a pipeline state transition.
type StateChangedEvent struct {
	From      string `json:"from" example:"idle" doc:"Previous state"`
	To        string `json:"to" example:"configuring" doc:"New state"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StateChangedEvent.
func (e StateChangedEvent) Type() uint32 { return TypeStateChanged }

// SampleDroppedEvent reports a sample that arrived without its
// payload or a tick discarded because its video was dropped.
type SampleDroppedEvent struct {
	Source          string  `json:"source" example:"depth" doc:"Stream that dropped: video, depth, metadata"`
	Reason          string  `json:"reason" example:"late_data" doc:"Drop reason reported by the source"`
	TimestampMillis float64 `json:"timestamp_ms" example:"1533.3" doc:"Presentation time of the drop"`
}

// Type returns the event type identifier for SampleDroppedEvent.
func (e SampleDroppedEvent) Type() uint32 { return TypeSampleDropped }

// BundleDispatchedEvent summarizes one dispatched bundle. Buffers
// never travel on the bus; only the shape of the bundle does.
type BundleDispatchedEvent struct {
	SessionID       string  `json:"session_id" example:"8c1f0b2a" doc:"Capture session identifier"`
	TimestampMillis float64 `json:"timestamp_ms" example:"1533.3" doc:"Bundle presentation time"`
	HasDepth        bool    `json:"has_depth" example:"true" doc:"Whether a depth map was correlated"`
	HasRegion       bool    `json:"has_region" example:"false" doc:"Whether a detected region was attached"`
}

// Type returns the event type identifier for BundleDispatchedEvent.
func (e BundleDispatchedEvent) Type() uint32 { return TypeBundleDispatched }

// CalibrationPersistedEvent is published after the sink has written a
// calibration record to disk.
type CalibrationPersistedEvent struct {
	TimestampMillis float64 `json:"timestamp_ms" example:"1533.3" doc:"Record presentation time"`
	Description     string  `json:"description" doc:"Logged calibration description"`
	DistortionBytes int     `json:"distortion_bytes" example:"128" doc:"Size of the distortion table file, 0 when absent"`
}

// Type returns the event type identifier for CalibrationPersistedEvent.
func (e CalibrationPersistedEvent) Type() uint32 { return TypeCalibrationPersisted }

// SinkErrorEvent reports a contained persistence failure. The record
// involved was dropped; capture keeps running.
type SinkErrorEvent struct {
	Stage     string `json:"stage" example:"distortion" doc:"Failing stage: open, log, distortion, queue"`
	Error     string `json:"error" doc:"Underlying error text"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SinkErrorEvent.
func (e SinkErrorEvent) Type() uint32 { return TypeSinkError }

// ConfigReloadedEvent is published when the configuration watcher
// applied a changed file.
type ConfigReloadedEvent struct {
	Path      string `json:"path" example:"/etc/depthnode/config.toml" doc:"Config file path"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }

// PipelineStatsEvent carries a periodic counters snapshot for live
// dashboards.
type PipelineStatsEvent struct {
	EventType      string `json:"type" example:"pipeline_stats" doc:"Discriminator for SSE clients"`
	State          string `json:"state" example:"running" doc:"Current pipeline state"`
	Ticks          uint64 `json:"ticks" example:"4512" doc:"Synchronization ticks formed"`
	Bundles        uint64 `json:"bundles" example:"4490" doc:"Bundles dispatched"`
	VideoFrames    uint64 `json:"video_frames" example:"4512" doc:"Video frames delivered"`
	SamplesDropped uint64 `json:"samples_dropped" example:"22" doc:"Samples dropped across sources"`
	SinkQueueDepth int    `json:"sink_queue_depth" example:"3" doc:"Records waiting in the sink queue"`
}

// Type returns the event type identifier for PipelineStatsEvent.
func (e PipelineStatsEvent) Type() uint32 { return TypePipelineStats }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

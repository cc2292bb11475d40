// Package models holds request and response bodies for the REST API.
package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Pipeline models
type PipelineData struct {
	State             string            `json:"state" example:"running" doc:"Pipeline lifecycle state"`
	SessionID         string            `json:"session_id,omitempty" example:"8c1f0b2a" doc:"Current session identifier, empty when idle"`
	Selection         string            `json:"selection" example:"truedepth" doc:"Active source selection"`
	DepthFiltering    bool              `json:"depth_filtering" example:"true" doc:"Whether depth filtering is enabled"`
	UptimeSeconds     float64           `json:"uptime_seconds" example:"92.4" doc:"Seconds since the session started"`
	Ticks             uint64            `json:"ticks" example:"4512" doc:"Synchronization ticks formed"`
	TicksAborted      uint64            `json:"ticks_aborted" example:"3" doc:"Ticks discarded for unusable video"`
	Bundles           uint64            `json:"bundles" example:"4490" doc:"Bundles dispatched"`
	VideoFrames       uint64            `json:"video_frames" example:"4512" doc:"Video frames delivered"`
	SamplesDropped    map[string]uint64 `json:"samples_dropped,omitempty" doc:"Drop counters keyed by source/reason"`
	SinkQueueDepth    int               `json:"sink_queue_depth" example:"2" doc:"Records waiting in the persistence queue"`
	SinkPersisted     uint64            `json:"sink_persisted" example:"4480" doc:"Calibration records written to disk"`
	SinkDropped       uint64            `json:"sink_dropped" example:"0" doc:"Records rejected by a full queue"`
	LastError         string            `json:"last_error,omitempty" doc:"Most recent fatal pipeline error, empty when none"`
}

type PipelineResponse struct {
	Body PipelineData
}

// SourceRequest selects the capture source for the running session.
type SourceRequest struct {
	Body struct {
		Selection string `json:"selection" enum:"color,truedepth" example:"truedepth" doc:"Source selection to switch to"`
	}
}

// DepthFilteringRequest toggles depth filtering on the live depth source.
type DepthFilteringRequest struct {
	Body struct {
		Enabled bool `json:"enabled" example:"true" doc:"Whether temporal depth filtering is applied"`
	}
}

// MessageData is a generic operation result.
type MessageData struct {
	Status  string `json:"status" example:"ok" doc:"Operation status"`
	Message string `json:"message" example:"pipeline started" doc:"Operation result message"`
}

type MessageResponse struct {
	Body MessageData
}

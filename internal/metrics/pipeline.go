// Package metrics provides Prometheus metrics for the capture
// pipeline and the persistence sink.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineStates enumerates the label values the state gauge cycles
// through. Exactly one of them is 1 at any time.
var PipelineStates = []string{"idle", "configuring", "running", "reconfiguring", "stopping"}

var (
	pipelineTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "depthnode",
		Subsystem: "pipeline",
		Name:      "ticks_total",
		Help:      "Synchronization ticks formed",
	})

	pipelineBundles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "depthnode",
		Subsystem: "pipeline",
		Name:      "bundles_dispatched_total",
		Help:      "Synchronized bundles handed to the consumer",
	})

	pipelineVideoFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "depthnode",
		Subsystem: "pipeline",
		Name:      "video_frames_total",
		Help:      "Video frames delivered on the video-only path or inside bundles",
	})

	pipelineSamplesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "depthnode",
		Subsystem: "pipeline",
		Name:      "samples_dropped_total",
		Help:      "Samples delivered without payload, by stream and reason",
	}, []string{"source", "reason"})

	pipelineState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "depthnode",
		Subsystem: "pipeline",
		Name:      "state",
		Help:      "Pipeline state, 1 for the current state and 0 otherwise",
	}, []string{"state"})

	// Local cache for REST and SSE access.
	pipelineCache   pipelineSnapshot
	pipelineCacheMu sync.RWMutex
)

type pipelineSnapshot struct {
	state          string
	ticks          uint64
	bundles        uint64
	videoFrames    uint64
	samplesDropped map[string]uint64
}

// PipelineCounters holds current pipeline metric values.
type PipelineCounters struct {
	State          string
	Ticks          uint64
	Bundles        uint64
	VideoFrames    uint64
	SamplesDropped map[string]uint64
}

// IncTick counts one formed synchronization tick.
func IncTick() {
	pipelineTicks.Inc()
	pipelineCacheMu.Lock()
	pipelineCache.ticks++
	pipelineCacheMu.Unlock()
}

// IncBundle counts one dispatched bundle.
func IncBundle() {
	pipelineBundles.Inc()
	pipelineCacheMu.Lock()
	pipelineCache.bundles++
	pipelineCacheMu.Unlock()
}

// IncVideoFrame counts one delivered video frame.
func IncVideoFrame() {
	pipelineVideoFrames.Inc()
	pipelineCacheMu.Lock()
	pipelineCache.videoFrames++
	pipelineCacheMu.Unlock()
}

// IncSampleDropped counts one payload-less sample for a stream.
func IncSampleDropped(source, reason string) {
	pipelineSamplesDropped.WithLabelValues(source, reason).Inc()
	pipelineCacheMu.Lock()
	if pipelineCache.samplesDropped == nil {
		pipelineCache.samplesDropped = make(map[string]uint64)
	}
	pipelineCache.samplesDropped[source+"/"+reason]++
	pipelineCacheMu.Unlock()
}

// SetPipelineState moves the state gauge to the given state.
func SetPipelineState(state string) {
	for _, s := range PipelineStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		pipelineState.WithLabelValues(s).Set(v)
	}
	pipelineCacheMu.Lock()
	pipelineCache.state = state
	pipelineCacheMu.Unlock()
}

// GetPipelineCounters returns a copy of the current pipeline values.
func GetPipelineCounters() PipelineCounters {
	pipelineCacheMu.RLock()
	defer pipelineCacheMu.RUnlock()
	dropped := make(map[string]uint64, len(pipelineCache.samplesDropped))
	for k, v := range pipelineCache.samplesDropped {
		dropped[k] = v
	}
	return PipelineCounters{
		State:          pipelineCache.state,
		Ticks:          pipelineCache.ticks,
		Bundles:        pipelineCache.bundles,
		VideoFrames:    pipelineCache.videoFrames,
		SamplesDropped: dropped,
	}
}

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sinkSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "depthnode",
		Subsystem: "sink",
		Name:      "submitted_total",
		Help:      "Calibration records accepted for persistence",
	})

	sinkPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "depthnode",
		Subsystem: "sink",
		Name:      "persisted_total",
		Help:      "Calibration records fully written to disk",
	})

	sinkDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "depthnode",
		Subsystem: "sink",
		Name:      "dropped_total",
		Help:      "Records dropped because the sink queue was full",
	})

	sinkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "depthnode",
		Subsystem: "sink",
		Name:      "failures_total",
		Help:      "Contained write failures, by stage",
	}, []string{"stage"})

	sinkQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "depthnode",
		Subsystem: "sink",
		Name:      "queue_depth",
		Help:      "Records waiting for the sink worker",
	})

	sinkCache   sinkSnapshot
	sinkCacheMu sync.RWMutex
)

type sinkSnapshot struct {
	submitted  uint64
	persisted  uint64
	dropped    uint64
	failures   uint64
	queueDepth int
}

// SinkCounters holds current sink metric values.
type SinkCounters struct {
	Submitted  uint64
	Persisted  uint64
	Dropped    uint64
	Failures   uint64
	QueueDepth int
}

// IncSinkSubmitted counts one record accepted into the queue.
func IncSinkSubmitted() {
	sinkSubmitted.Inc()
	sinkCacheMu.Lock()
	sinkCache.submitted++
	sinkCacheMu.Unlock()
}

// IncSinkPersisted counts one record fully written.
func IncSinkPersisted() {
	sinkPersisted.Inc()
	sinkCacheMu.Lock()
	sinkCache.persisted++
	sinkCacheMu.Unlock()
}

// IncSinkDropped counts one record rejected by a full queue.
func IncSinkDropped() {
	sinkDropped.Inc()
	sinkCacheMu.Lock()
	sinkCache.dropped++
	sinkCacheMu.Unlock()
}

// IncSinkFailure counts one contained write failure.
func IncSinkFailure(stage string) {
	sinkFailures.WithLabelValues(stage).Inc()
	sinkCacheMu.Lock()
	sinkCache.failures++
	sinkCacheMu.Unlock()
}

// SetSinkQueueDepth records how many submissions are waiting.
func SetSinkQueueDepth(depth int) {
	sinkQueueDepth.Set(float64(depth))
	sinkCacheMu.Lock()
	sinkCache.queueDepth = depth
	sinkCacheMu.Unlock()
}

// GetSinkCounters returns a copy of the current sink values.
func GetSinkCounters() SinkCounters {
	sinkCacheMu.RLock()
	defer sinkCacheMu.RUnlock()
	return SinkCounters{
		Submitted:  sinkCache.submitted,
		Persisted:  sinkCache.persisted,
		Dropped:    sinkCache.dropped,
		Failures:   sinkCache.failures,
		QueueDepth: sinkCache.queueDepth,
	}
}

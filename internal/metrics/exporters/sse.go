package exporters

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/depthnode/internal/events"
	"github.com/smazurov/depthnode/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter publishes periodic pipeline stats snapshots via
// Server-Sent Events.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		interval: 1 * time.Second,
	}
}

// Start begins the SSE export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
}

// Stop stops the SSE exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.publishStats()
		}
	}
}

func (s *SSEExporter) publishStats() {
	pipeline := metrics.GetPipelineCounters()
	sink := metrics.GetSinkCounters()

	var dropped uint64
	for _, n := range pipeline.SamplesDropped {
		dropped += n
	}

	s.eventBus.Publish(events.PipelineStatsEvent{
		EventType:      "pipeline_stats",
		State:          pipeline.State,
		Ticks:          pipeline.Ticks,
		Bundles:        pipeline.Bundles,
		VideoFrames:    pipeline.VideoFrames,
		SamplesDropped: dropped,
		SinkQueueDepth: sink.QueueDepth,
	})
}

// GetEventTypesForEndpoint returns event types for a specific SSE endpoint.
func GetEventTypesForEndpoint(endpoint string) map[string]any {
	if endpoint == "events" {
		return map[string]any{
			"pipeline-stats": events.PipelineStatsEvent{},
		}
	}
	return map[string]any{}
}

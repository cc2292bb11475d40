package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/depthnode/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time event stream for session lifecycle, drops, dispatched bundles, and persistence",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"session-started":       events.SessionStartedEvent{},
		"session-stopped":       events.SessionStoppedEvent{},
		"state-changed":         events.StateChangedEvent{},
		"sample-dropped":        events.SampleDroppedEvent{},
		"bundle-dispatched":     events.BundleDispatchedEvent{},
		"calibration-persisted": events.CalibrationPersistedEvent{},
		"sink-error":            events.SinkErrorEvent{},
		"config-reloaded":       events.ConfigReloadedEvent{},
		"pipeline-stats":        events.PipelineStatsEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Create event channel for this connection
		eventCh := make(chan any, 10)

		// Subscribe to all event types using event bus
		unsubscribers := []func(){
			events.SubscribeToChannel[events.SessionStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionStoppedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SampleDroppedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.BundleDispatchedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CalibrationPersistedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SinkErrorEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ConfigReloadedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PipelineStatsEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Send initial connection confirmation
		if err := send.Data(events.StateChangedEvent{
			From:      string(s.pipeline.State()),
			To:        string(s.pipeline.State()),
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		// Keep connection alive and forward events
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				// Send event using Huma's SSE sender with error handling
				if err := send.Data(event); err != nil {
					// Connection failed, clean up and exit
					return
				}
			}
		}
	})
}

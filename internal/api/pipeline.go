package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/depthnode/internal/api/models"
	"github.com/smazurov/depthnode/internal/metrics"
	"github.com/smazurov/depthnode/internal/pipeline"
	"github.com/smazurov/depthnode/internal/source"
)

// registerPipelineRoutes sets up the capture pipeline control endpoints.
func (s *Server) registerPipelineRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-pipeline",
		Method:      http.MethodGet,
		Path:        "/api/pipeline",
		Summary:     "Pipeline Status",
		Description: "Get the pipeline state and counters for the current session",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.PipelineResponse, error) {
		return &models.PipelineResponse{Body: s.pipelineData()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-pipeline",
		Method:      http.MethodPost,
		Path:        "/api/pipeline/start",
		Summary:     "Start Capture",
		Description: "Start a capture session with the configured source selection. Starting a running pipeline is a no-op.",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500},
	}, func(ctx context.Context, input *struct{}) (*models.MessageResponse, error) {
		if err := s.pipeline.Start(context.Background()); err != nil {
			return nil, pipelineError(err)
		}
		return &models.MessageResponse{
			Body: models.MessageData{Status: "ok", Message: "pipeline started"},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-pipeline",
		Method:      http.MethodPost,
		Path:        "/api/pipeline/stop",
		Summary:     "Stop Capture",
		Description: "Stop the current capture session and flush pending persistence work. Stopping an idle pipeline is a no-op.",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, input *struct{}) (*models.MessageResponse, error) {
		if err := s.pipeline.Stop(); err != nil {
			return nil, pipelineError(err)
		}
		return &models.MessageResponse{
			Body: models.MessageData{Status: "ok", Message: "pipeline stopped"},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-pipeline-source",
		Method:      http.MethodPut,
		Path:        "/api/pipeline/source",
		Summary:     "Switch Source",
		Description: "Switch the capture source selection. A running session is reconfigured in place; an idle pipeline records the selection for the next start.",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 422, 500},
	}, func(ctx context.Context, input *models.SourceRequest) (*models.MessageResponse, error) {
		sel, err := source.ParseSelection(input.Body.Selection)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("invalid source selection", err)
		}
		if err := s.pipeline.Reconfigure(sel); err != nil {
			return nil, pipelineError(err)
		}
		return &models.MessageResponse{
			Body: models.MessageData{Status: "ok", Message: "source selection applied"},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-depth-filtering",
		Method:      http.MethodPut,
		Path:        "/api/pipeline/depth-filtering",
		Summary:     "Depth Filtering",
		Description: "Enable or disable temporal depth filtering on the live depth source",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *models.DepthFilteringRequest) (*models.MessageResponse, error) {
		s.pipeline.SetDepthFilteringEnabled(input.Body.Enabled)
		msg := "depth filtering disabled"
		if input.Body.Enabled {
			msg = "depth filtering enabled"
		}
		return &models.MessageResponse{
			Body: models.MessageData{Status: "ok", Message: msg},
		}, nil
	})
}

func (s *Server) pipelineData() models.PipelineData {
	stats := s.pipeline.Stats()
	sink := metrics.GetSinkCounters()
	return models.PipelineData{
		State:          string(stats.State),
		SessionID:      stats.SessionID,
		Selection:      string(stats.Selection),
		DepthFiltering: s.pipeline.DepthFilteringEnabled(),
		UptimeSeconds:  stats.Uptime.Seconds(),
		Ticks:          stats.Ticks,
		TicksAborted:   stats.TicksAborted,
		Bundles:        stats.Bundles,
		VideoFrames:    stats.VideoFrames,
		SamplesDropped: stats.SamplesDropped,
		SinkQueueDepth: sink.QueueDepth,
		SinkPersisted:  sink.Persisted,
		SinkDropped:    sink.Dropped,
		LastError:      stats.LastError,
	}
}

// pipelineError maps pipeline error codes to HTTP status codes.
func pipelineError(err error) error {
	var perr *pipeline.Error
	if errors.As(err, &perr) {
		switch perr.Code {
		case pipeline.ErrCodeSourceUnavailable:
			return huma.Error409Conflict(perr.Message, perr.Cause)
		case pipeline.ErrCodeConfig:
			return huma.Error422UnprocessableEntity(perr.Message, perr.Cause)
		}
	}
	return huma.Error500InternalServerError("pipeline operation failed", err)
}

package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/depthnode/internal/archive"
)

// CalibrationsResponse lists indexed calibration records.
type CalibrationsResponse struct {
	Body struct {
		Calibrations []archive.Calibration `json:"calibrations" doc:"Indexed calibration records, newest first"`
		Count        int                   `json:"count" example:"20" doc:"Number of records returned"`
	}
}

// SessionsResponse lists indexed capture sessions.
type SessionsResponse struct {
	Body struct {
		Sessions []archive.Session `json:"sessions" doc:"Indexed capture sessions, newest first"`
		Count    int               `json:"count" example:"5" doc:"Number of sessions returned"`
	}
}

// registerArchiveRoutes sets up the archive query endpoints. They
// return 404 when the node runs without an archive database.
func (s *Server) registerArchiveRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-calibrations",
		Method:      http.MethodGet,
		Path:        "/api/calibrations",
		Summary:     "Calibrations",
		Description: "List recently persisted calibration records from the archive",
		Tags:        []string{"archive"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Maximum number of records to return"`
	}) (*CalibrationsResponse, error) {
		if s.archive == nil {
			return nil, huma.Error404NotFound("archive is not enabled")
		}
		cals, err := s.archive.Calibrations(ctx, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("querying archive", err)
		}
		resp := &CalibrationsResponse{}
		resp.Body.Calibrations = cals
		resp.Body.Count = len(cals)
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/api/sessions",
		Summary:     "Sessions",
		Description: "List recent capture sessions from the archive",
		Tags:        []string{"archive"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Maximum number of sessions to return"`
	}) (*SessionsResponse, error) {
		if s.archive == nil {
			return nil, huma.Error404NotFound("archive is not enabled")
		}
		sessions, err := s.archive.Sessions(ctx, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("querying archive", err)
		}
		resp := &SessionsResponse{}
		resp.Body.Sessions = sessions
		resp.Body.Count = len(sessions)
		return resp, nil
	})
}

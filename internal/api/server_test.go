package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/smazurov/depthnode/internal/events"
	"github.com/smazurov/depthnode/internal/pipeline"
	"github.com/smazurov/depthnode/internal/source"
)

// mockPipeline implements PipelineService for handler tests.
type mockPipeline struct {
	mu        sync.Mutex
	state     pipeline.State
	selection source.Selection
	filtering bool
	startErr  error
	started   int
	stopped   int
}

func (m *mockPipeline) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.started++
	m.state = pipeline.StateRunning
	return nil
}

func (m *mockPipeline) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped++
	m.state = pipeline.StateIdle
	return nil
}

func (m *mockPipeline) Reconfigure(sel source.Selection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selection = sel
	return nil
}

func (m *mockPipeline) SetDepthFilteringEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filtering = enabled
}

func (m *mockPipeline) DepthFilteringEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filtering
}

func (m *mockPipeline) State() pipeline.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockPipeline) Selection() source.Selection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selection
}

func (m *mockPipeline) Stats() pipeline.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pipeline.Stats{
		State:     m.state,
		Selection: m.selection,
		Ticks:     42,
		Bundles:   40,
	}
}

func newTestServer(t *testing.T, mock *mockPipeline, opts *Options) *Server {
	t.Helper()
	if opts == nil {
		opts = &Options{}
	}
	opts.Pipeline = mock
	if opts.EventBus == nil {
		opts.EventBus = events.New()
	}
	return NewServer(opts)
}

func doRequest(t *testing.T, s *Server, method, path, body string, auth string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(auth)))
	}
	rec := httptest.NewRecorder()
	s.GetMux().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpointNoAuth(t *testing.T) {
	s := newTestServer(t, &mockPipeline{state: pipeline.StateIdle}, &Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
	})

	rec := doRequest(t, s, http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding health body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestPipelineStatusRequiresAuth(t *testing.T) {
	s := newTestServer(t, &mockPipeline{state: pipeline.StateRunning, selection: source.SelectionTrueDepth}, &Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
	})

	if rec := doRequest(t, s, http.MethodGet, "/api/pipeline", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/api/pipeline", "", "admin:wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad credentials status = %d, want 401", rec.Code)
	}

	rec := doRequest(t, s, http.MethodGet, "/api/pipeline", "", "admin:secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", rec.Code)
	}
	var body struct {
		State     string `json:"state"`
		Selection string `json:"selection"`
		Ticks     uint64 `json:"ticks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding pipeline body: %v", err)
	}
	if body.State != "running" || body.Selection != "truedepth" || body.Ticks != 42 {
		t.Errorf("body = %+v", body)
	}
}

func TestStartMapsSourceUnavailableTo409(t *testing.T) {
	mock := &mockPipeline{
		state:    pipeline.StateIdle,
		startErr: pipeline.NewError(pipeline.ErrCodeSourceUnavailable, "selection not available", nil),
	}
	s := newTestServer(t, mock, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/pipeline/start", "", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("start status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
}

func TestStartAndStop(t *testing.T) {
	mock := &mockPipeline{state: pipeline.StateIdle}
	s := newTestServer(t, mock, nil)

	if rec := doRequest(t, s, http.MethodPost, "/api/pipeline/start", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := doRequest(t, s, http.MethodPost, "/api/pipeline/stop", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d: %s", rec.Code, rec.Body.String())
	}
	if mock.started != 1 || mock.stopped != 1 {
		t.Errorf("started=%d stopped=%d, want 1/1", mock.started, mock.stopped)
	}
}

func TestSourceSelectionValidation(t *testing.T) {
	mock := &mockPipeline{state: pipeline.StateRunning, selection: source.SelectionTrueDepth}
	s := newTestServer(t, mock, nil)

	rec := doRequest(t, s, http.MethodPut, "/api/pipeline/source", `{"selection":"thermal"}`, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid selection status = %d, want 422: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodPut, "/api/pipeline/source", `{"selection":"color"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("valid selection status = %d: %s", rec.Code, rec.Body.String())
	}
	if mock.Selection() != source.SelectionColor {
		t.Errorf("selection = %s, want color", mock.Selection())
	}
}

func TestDepthFilteringToggle(t *testing.T) {
	mock := &mockPipeline{state: pipeline.StateRunning, filtering: true}
	s := newTestServer(t, mock, nil)

	rec := doRequest(t, s, http.MethodPut, "/api/pipeline/depth-filtering", `{"enabled":false}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d: %s", rec.Code, rec.Body.String())
	}
	if mock.DepthFilteringEnabled() {
		t.Error("filtering still enabled after disabling")
	}
}

func TestArchiveEndpointsWithoutArchive(t *testing.T) {
	s := newTestServer(t, &mockPipeline{state: pipeline.StateIdle}, nil)

	for _, path := range []string{"/api/calibrations", "/api/sessions"} {
		if rec := doRequest(t, s, http.MethodGet, path, "", ""); rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404 when archive disabled", path, rec.Code)
		}
	}
}

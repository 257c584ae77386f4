package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/tailorflow/api"
	"github.com/BaSui01/tailorflow/internal/pool"
	"github.com/BaSui01/tailorflow/tailor"
	"github.com/BaSui01/tailorflow/tailor/local"
	"github.com/BaSui01/tailorflow/testutil/fixtures"
	"github.com/BaSui01/tailorflow/testutil/mocks"
	"github.com/BaSui01/tailorflow/types"
	wf "github.com/BaSui01/tailorflow/workflow"
)

// =============================================================================
// 🧪 TailorHandler 测试
// =============================================================================

func newTestPipeline(t *testing.T, c tailor.Collaborators) *tailor.Pipeline {
	t.Helper()
	p, err := tailor.NewPipeline(c, tailor.Options{
		Pool:   pool.GoroutinePoolConfig{MaxWorkers: 2, QueueSize: 2, IdleTimeout: time.Second},
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func postTailor(t *testing.T, h *TailorHandler, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/tailor", bytes.NewReader(raw))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleTailor(w, r)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func decodeData[T any](t *testing.T, resp Response) T {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestTailorHandler_Success(t *testing.T) {
	h := NewTailorHandler(newTestPipeline(t, local.NewCollaborators(local.Config{})), tailor.DefaultThreshold, time.Minute, zap.NewNop())

	w, resp := postTailor(t, h, api.TailorRequest{
		Document:       fixtures.StructuredResume(),
		JobDescription: fixtures.BackendJob(),
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, resp.Success)

	out := decodeData[api.TailorResponse](t, resp)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, "completed", out.Status)
	assert.Equal(t, tailor.DefaultThreshold, out.Threshold)
	require.NotNil(t, out.Score)
	assert.NotEmpty(t, out.Document)
	assert.Equal(t, string(tailor.PhaseResumeAnalysis), out.Visited[0])
	assert.Equal(t, string(tailor.PhaseResumeGeneration), out.Visited[len(out.Visited)-1])
}

func TestTailorHandler_ExplicitThreshold(t *testing.T) {
	h := NewTailorHandler(newTestPipeline(t, local.NewCollaborators(local.Config{})), tailor.DefaultThreshold, 0, zap.NewNop())

	zero := 0.0
	w, resp := postTailor(t, h, api.TailorRequest{
		Document:            fixtures.StructuredResume(),
		JobDescription:      fixtures.BackendJob(),
		ComplianceThreshold: &zero,
	})

	require.Equal(t, http.StatusOK, w.Code)
	out := decodeData[api.TailorResponse](t, resp)
	assert.Equal(t, 0.0, out.Threshold)
	// 阈值为 0 时合规检查必然达标，不会进入 refinement
	assert.NotContains(t, out.Visited, string(tailor.PhaseRefinement))
}

func TestTailorHandler_InvalidRequests(t *testing.T) {
	h := NewTailorHandler(newTestPipeline(t, local.NewCollaborators(local.Config{})), tailor.DefaultThreshold, 0, zap.NewNop())
	over := 101.0

	tests := []struct {
		name string
		body any
	}{
		{"blank document", api.TailorRequest{Document: "  ", JobDescription: fixtures.BackendJob()}},
		{"blank job", api.TailorRequest{Document: fixtures.StructuredResume()}},
		{"threshold out of range", api.TailorRequest{Document: "x", JobDescription: "y", ComplianceThreshold: &over}},
		{"unknown field", map[string]string{"document": "x", "job_description": "y", "model": "z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := postTailor(t, h, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(types.ErrInvalidRequest), resp.Error.Code)
			assert.Nil(t, resp.Data)
		})
	}
}

func TestTailorHandler_WrongContentType(t *testing.T) {
	h := NewTailorHandler(newTestPipeline(t, local.NewCollaborators(local.Config{})), tailor.DefaultThreshold, 0, zap.NewNop())

	r := httptest.NewRequest(http.MethodPost, "/api/v1/tailor", bytes.NewBufferString("document=x"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.HandleTailor(w, r)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestTailorHandler_CollaboratorFailureReturnsPartialRun(t *testing.T) {
	c := local.NewCollaborators(local.Config{})
	c.JobAnalyzer = mocks.NewMockCollaborator[tailor.JobInput, tailor.JobAnalysis]().
		WithError(errors.New("job board unreachable"))

	h := NewTailorHandler(newTestPipeline(t, c), tailor.DefaultThreshold, 0, zap.NewNop())

	w, resp := postTailor(t, h, api.TailorRequest{
		Document:       fixtures.StructuredResume(),
		JobDescription: fixtures.BackendJob(),
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrCollaboratorFailure), resp.Error.Code)
	assert.Equal(t, string(tailor.PhaseJobAnalysis), resp.Error.Phase)

	out := decodeData[api.TailorResponse](t, resp)
	assert.Equal(t, "failed", out.Status)
	assert.Equal(t, []string{string(tailor.PhaseResumeAnalysis), string(tailor.PhaseJobAnalysis)}, out.Visited)
	assert.Empty(t, out.Document)
}

type stubRunner struct {
	run func(ctx context.Context) (*tailor.Bundle, error)
}

func (s stubRunner) Run(ctx context.Context, _, _ string, _ float64) (*tailor.Bundle, error) {
	return s.run(ctx)
}

func (stubRunner) Graph(float64) (*wf.Graph, error) {
	return nil, types.NewError(types.ErrConfiguration, "no graph")
}

func TestTailorHandler_Timeout(t *testing.T) {
	h := NewTailorHandler(stubRunner{run: func(ctx context.Context) (*tailor.Bundle, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}, tailor.DefaultThreshold, 10*time.Millisecond, zap.NewNop())

	w, resp := postTailor(t, h, api.TailorRequest{Document: "x", JobDescription: "y"})

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrTimeout), resp.Error.Code)
}

func TestTailorHandler_PipelineDeadline(t *testing.T) {
	c := local.NewCollaborators(local.Config{})
	c.JobAnalyzer = mocks.NewMockCollaborator[tailor.JobInput, tailor.JobAnalysis]().WithDelay(time.Second)
	h := NewTailorHandler(newTestPipeline(t, c), tailor.DefaultThreshold, 20*time.Millisecond, zap.NewNop())

	w, resp := postTailor(t, h, api.TailorRequest{
		Document:       fixtures.StructuredResume(),
		JobDescription: fixtures.BackendJob(),
	})

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrTimeout), resp.Error.Code)
	assert.Equal(t, string(tailor.PhaseJobAnalysis), resp.Error.Phase)

	out := decodeData[api.TailorResponse](t, resp)
	assert.Equal(t, "failed", out.Status)
}

func TestTailorHandler_HandleGraph(t *testing.T) {
	h := NewTailorHandler(newTestPipeline(t, local.NewCollaborators(local.Config{})), tailor.DefaultThreshold, 0, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleGraph(w, httptest.NewRequest(http.MethodGet, "/api/v1/graph?threshold=75", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	g := decodeData[api.GraphResponse](t, resp)

	assert.Equal(t, tailor.GraphName, g.Name)
	assert.Equal(t, string(tailor.PhaseResumeAnalysis), g.Entry)

	var group, compliance *api.GraphNode
	for i := range g.Nodes {
		switch g.Nodes[i].ID {
		case string(tailor.GroupSectionCustomization):
			group = &g.Nodes[i]
		case string(tailor.PhaseComplianceVerification):
			compliance = &g.Nodes[i]
		}
	}
	require.NotNil(t, group)
	assert.Equal(t, "group", group.Kind)
	assert.Len(t, group.Branches, 2)
	require.NotNil(t, compliance)
	assert.Contains(t, compliance.Rule, "75.00")
	assert.ElementsMatch(t, []string{string(tailor.PhaseResumeGeneration), string(tailor.PhaseRefinement)}, compliance.Next)
}

func TestTailorHandler_HandleGraph_Errors(t *testing.T) {
	h := NewTailorHandler(stubRunner{}, tailor.DefaultThreshold, 0, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleGraph(w, httptest.NewRequest(http.MethodGet, "/api/v1/graph?threshold=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, raw := range []string{"NaN", "-1", "100.5"} {
		w = httptest.NewRecorder()
		h.HandleGraph(w, httptest.NewRequest(http.MethodGet, "/api/v1/graph?threshold="+raw, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
	}

	w = httptest.NewRecorder()
	h.HandleGraph(w, httptest.NewRequest(http.MethodGet, "/api/v1/graph", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

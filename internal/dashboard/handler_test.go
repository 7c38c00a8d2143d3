package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finstream-guard/dashboard/internal/analysis"
	"github.com/finstream-guard/dashboard/internal/gateway"
	"github.com/finstream-guard/dashboard/internal/models"
	"github.com/finstream-guard/dashboard/internal/monitor"
	"github.com/finstream-guard/dashboard/internal/poller"
)

type fakeBackend struct {
	mu      sync.Mutex
	running bool
	tasks   []models.Task
	addErr  error
	added   int
}

func (b *fakeBackend) Status(ctx context.Context) (models.SystemStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return models.SystemStatus{RecorderRunning: b.running, ActiveURLs: len(b.tasks), StorageUsage: "1.2 GB"}, nil
}

func (b *fakeBackend) StartRecorder(ctx context.Context) (gateway.Ack, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = true
	return gateway.Ack{"status": "started"}, nil
}

func (b *fakeBackend) StopRecorder(ctx context.Context) (gateway.Ack, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = false
	return gateway.Ack{"status": "stopped"}, nil
}

func (b *fakeBackend) Tasks(ctx context.Context) ([]models.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Task(nil), b.tasks...), nil
}

func (b *fakeBackend) AddTask(ctx context.Context, task models.NewTask) (gateway.Ack, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.added++
	if b.addErr != nil {
		return nil, b.addErr
	}
	b.tasks = append(b.tasks, models.Task{ID: "new", Name: task.Name, URL: task.URL, Platform: task.Platform, Status: "OFFLINE"})
	return gateway.Ack{"id": "new"}, nil
}

type env struct {
	router   *gin.Engine
	backend  *fakeBackend
	sync     *poller.Synchronizer
	sessions *monitor.Controller
}

func newEnv(t *testing.T) *env { return newEnvWithTranscript(t, time.Hour) }

func newEnvWithTranscript(t *testing.T, every time.Duration) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	backend := &fakeBackend{tasks: []models.Task{
		{ID: "1", Name: "Alpha", URL: "https://live.douyin.com/1", Platform: "Douyin", Status: "RECORDING"},
		{ID: "2", Name: "Beta", URL: "https://www.tiktok.com/@b/live", Platform: "TikTok", Status: "OFFLINE"},
	}}
	s := poller.New(backend, time.Hour, zap.NewNop())
	t.Cleanup(s.Close)
	s.RefreshStatus(context.Background())
	s.RefreshTasks(context.Background())

	cfg := monitor.DefaultConfig()
	cfg.TranscriptInterval = every
	cfg.AnalysisInterval = time.Hour
	sessions := monitor.NewController(cfg, s, analysis.NewDemo(), nil, monitor.Hooks{}, zap.NewNop())
	t.Cleanup(sessions.Close)

	h := NewHandler(s, sessions, zap.NewNop())
	r := gin.New()
	api := r.Group("/api")
	api.GET("/dashboard", h.Get)
	api.POST("/streams", h.AddStream)
	api.POST("/recorder/toggle", h.ToggleRecorder)
	api.DELETE("/ui-error", h.ClearUIError)
	api.PUT("/selection", h.Select)
	api.DELETE("/selection", h.ClearSelection)
	api.GET("/session", h.Session)
	api.POST("/session/analyze", h.Analyze)
	return &env{router: r, backend: backend, sync: s, sessions: sessions}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (e *env) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func TestGetDashboard_Filters(t *testing.T) {
	e := newEnv(t)

	code, body := e.do(t, http.MethodGet, "/api/dashboard?q=DOUYIN", nil)
	require.Equal(t, http.StatusOK, code)

	var data struct {
		Status    models.SystemStatus `json:"status"`
		Streamers []models.Streamer   `json:"streamers"`
		Count     int                 `json:"count"`
		Total     int                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, 1, data.Count)
	assert.Equal(t, 2, data.Total)
	assert.Equal(t, "Alpha", data.Streamers[0].Name)
	assert.Equal(t, "1.2 GB", data.Status.StorageUsage)
}

func TestAddStream_EmptyURLRejectedWithoutBackendCall(t *testing.T) {
	e := newEnv(t)

	code, body := e.do(t, http.MethodPost, "/api/streams", addStreamRequest{Name: "X", URL: "   ", Platform: "Douyin"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, msgEmptyURL, body.Error)
	assert.Zero(t, e.backend.added)
}

func TestAddStream_RefreshesCollection(t *testing.T) {
	e := newEnv(t)

	code, body := e.do(t, http.MethodPost, "/api/streams", addStreamRequest{Name: "", URL: " https://live.kuaishou.com/u/9 ", Platform: "Kuaishou"})
	require.Equal(t, http.StatusCreated, code)

	var data struct {
		Streamers []models.Streamer `json:"streamers"`
		Count     int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, 3, data.Count)
	added := data.Streamers[2]
	assert.Equal(t, models.UnknownName, added.Name)
	assert.Equal(t, "https://live.kuaishou.com/u/9", added.URL)
	assert.Equal(t, models.PlatformKuaishou, added.Platform)
}

func TestAddStream_BackendFailureSurfacesError(t *testing.T) {
	e := newEnv(t)
	e.backend.addErr = errors.New("connection refused")

	code, body := e.do(t, http.MethodPost, "/api/streams", addStreamRequest{URL: "https://x"})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, body.Error, "添加失败")
	assert.Len(t, e.sync.Streamers(), 2)

	code, _ = e.do(t, http.MethodDelete, "/api/ui-error", nil)
	assert.Equal(t, http.StatusNoContent, code)
	assert.Empty(t, e.sync.UIError())
}

func TestToggleRecorder(t *testing.T) {
	e := newEnv(t)

	code, body := e.do(t, http.MethodPost, "/api/recorder/toggle", nil)
	require.Equal(t, http.StatusOK, code)
	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(body.Data, &status))
	assert.True(t, status.RecorderRunning)

	_, body = e.do(t, http.MethodPost, "/api/recorder/toggle", nil)
	require.NoError(t, json.Unmarshal(body.Data, &status))
	assert.False(t, status.RecorderRunning)
}

func TestSelection_Lifecycle(t *testing.T) {
	e := newEnv(t)

	code, _ := e.do(t, http.MethodPut, "/api/selection", selectRequest{ID: "missing"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = e.do(t, http.MethodPut, "/api/selection", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := e.do(t, http.MethodPut, "/api/selection", selectRequest{ID: "1"})
	require.Equal(t, http.StatusOK, code)
	var view monitor.View
	require.NoError(t, json.Unmarshal(body.Data, &view))
	assert.Equal(t, "1", view.Streamer.ID)
	assert.Empty(t, view.Messages)
	assert.Nil(t, view.Analysis)

	_, body = e.do(t, http.MethodGet, "/api/dashboard", nil)
	assert.Contains(t, string(body.Data), `"selected_id":"1"`)

	_, body = e.do(t, http.MethodGet, "/api/session", nil)
	assert.Contains(t, string(body.Data), `"active":true`)

	code, _ = e.do(t, http.MethodDelete, "/api/selection", nil)
	assert.Equal(t, http.StatusNoContent, code)

	_, body = e.do(t, http.MethodGet, "/api/session", nil)
	assert.JSONEq(t, `{"active":false}`, string(body.Data))
}

func TestAnalyze_RequiresSelectionAndTranscript(t *testing.T) {
	e := newEnv(t)

	code, body := e.do(t, http.MethodPost, "/api/session/analyze", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, msgNoSelection, body.Error)

	_, err := e.sessions.Select("1")
	require.NoError(t, err)
	code, body = e.do(t, http.MethodPost, "/api/session/analyze", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, msgNoTranscript, body.Error)
}

func TestAnalyze_OnDemandStoresResult(t *testing.T) {
	e := newEnvWithTranscript(t, 5*time.Millisecond)

	sess, err := e.sessions.Select("1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(sess.Messages()) > 0 }, 2*time.Second, 5*time.Millisecond)

	code, body := e.do(t, http.MethodPost, "/api/session/analyze", nil)
	require.Equal(t, http.StatusOK, code)
	var view monitor.View
	require.NoError(t, json.Unmarshal(body.Data, &view))
	require.NotNil(t, view.Analysis)
	assert.Equal(t, 75, view.Analysis.RiskScore)
	assert.Len(t, view.Analysis.ComplianceIssues, 2)
	assert.Len(t, view.Chart, 1)
}

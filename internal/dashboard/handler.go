// Package dashboard serves the JSON API consumed by the monitoring view.
package dashboard

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finstream-guard/dashboard/internal/models"
	"github.com/finstream-guard/dashboard/internal/monitor"
	"github.com/finstream-guard/dashboard/internal/poller"
	"github.com/finstream-guard/dashboard/pkg/response"
)

// Operator-facing validation and conflict messages.
const (
	msgEmptyURL         = "请输入直播链接"
	msgAddInFlight      = "正在添加，请稍候"
	msgToggleInFlight   = "正在处理，请稍候"
	msgUnknownStream    = "未找到该直播"
	msgNoSelection      = "未选择直播"
	msgNoTranscript     = "暂无转写内容"
	msgAnalysisInFlight = "分析进行中"
)

// Synchronizer is the polling side of the dashboard.
type Synchronizer interface {
	Snapshot() poller.Snapshot
	AddStream(ctx context.Context, name, url, platform string) error
	ToggleRecorder(ctx context.Context) (models.SystemStatus, error)
	ClearUIError()
}

// Sessions owns the selected stream's monitor session.
type Sessions interface {
	Select(id string) (*monitor.Session, error)
	Clear()
	Current() *monitor.Session
}

// Handler handles dashboard HTTP endpoints.
type Handler struct {
	sync     Synchronizer
	sessions Sessions
	logger   *zap.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(sync Synchronizer, sessions Sessions, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sync: sync, sessions: sessions, logger: logger}
}

type addStreamRequest struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Platform string `json:"platform"`
}

type selectRequest struct {
	ID string `json:"id" binding:"required"`
}

// Get handles GET /api/dashboard. q filters by name or platform, case-insensitively.
func (h *Handler) Get(c *gin.Context) {
	snap := h.sync.Snapshot()
	streamers := models.FilterStreamers(snap.Streamers, c.Query("q"))
	selected := ""
	if sess := h.sessions.Current(); sess != nil {
		selected = sess.StreamerID()
	}
	response.OK(c, gin.H{
		"status":      snap.Status,
		"streamers":   streamers,
		"count":       len(streamers),
		"total":       len(snap.Streamers),
		"ui_error":    snap.UIError,
		"selected_id": selected,
		"status_at":   snap.StatusAt,
		"tasks_at":    snap.TasksAt,
	})
}

// AddStream handles POST /api/streams.
func (h *Handler) AddStream(c *gin.Context) {
	var req addStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	err := h.sync.AddStream(c.Request.Context(), req.Name, req.URL, req.Platform)
	switch {
	case errors.Is(err, poller.ErrEmptyURL):
		response.BadRequest(c, msgEmptyURL)
		return
	case errors.Is(err, poller.ErrActionInFlight):
		response.Conflict(c, msgAddInFlight)
		return
	case err != nil:
		response.BadGateway(c, h.sync.Snapshot().UIError)
		return
	}
	snap := h.sync.Snapshot()
	response.Created(c, gin.H{"streamers": snap.Streamers, "count": len(snap.Streamers)})
}

// ToggleRecorder handles POST /api/recorder/toggle.
func (h *Handler) ToggleRecorder(c *gin.Context) {
	status, err := h.sync.ToggleRecorder(c.Request.Context())
	switch {
	case errors.Is(err, poller.ErrActionInFlight):
		response.Conflict(c, msgToggleInFlight)
		return
	case err != nil:
		response.BadGateway(c, h.sync.Snapshot().UIError)
		return
	}
	response.OK(c, status)
}

// ClearUIError handles DELETE /api/ui-error.
func (h *Handler) ClearUIError(c *gin.Context) {
	h.sync.ClearUIError()
	response.NoContent(c)
}

// Select handles PUT /api/selection.
func (h *Handler) Select(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "id is required")
		return
	}
	sess, err := h.sessions.Select(req.ID)
	if errors.Is(err, monitor.ErrUnknownStream) {
		response.NotFound(c, msgUnknownStream)
		return
	}
	if err != nil {
		h.logger.Error("select stream failed", zap.String("streamer_id", req.ID), zap.Error(err))
		response.Internal(c, "failed to select stream")
		return
	}
	response.OK(c, sess.View())
}

// ClearSelection handles DELETE /api/selection.
func (h *Handler) ClearSelection(c *gin.Context) {
	h.sessions.Clear()
	response.NoContent(c)
}

// Session handles GET /api/session.
func (h *Handler) Session(c *gin.Context) {
	sess := h.sessions.Current()
	if sess == nil {
		response.OK(c, gin.H{"active": false})
		return
	}
	response.OK(c, gin.H{"active": true, "session": sess.View()})
}

// Analyze handles POST /api/session/analyze. The analysis outlives a disconnecting caller so
// its result still lands in the session.
func (h *Handler) Analyze(c *gin.Context) {
	sess := h.sessions.Current()
	if sess == nil {
		response.Conflict(c, msgNoSelection)
		return
	}
	if len(sess.Messages()) == 0 {
		response.Conflict(c, msgNoTranscript)
		return
	}
	if !sess.Analyze(context.WithoutCancel(c.Request.Context())) {
		response.Conflict(c, msgAnalysisInFlight)
		return
	}
	response.OK(c, sess.View())
}

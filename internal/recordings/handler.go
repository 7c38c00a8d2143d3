// Package recordings lists archived captures and hands out playback links.
package recordings

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finstream-guard/dashboard/internal/models"
	"github.com/finstream-guard/dashboard/pkg/response"
	"github.com/finstream-guard/dashboard/pkg/storage"
)

// Lister fetches the recording list from the recorder backend.
type Lister interface {
	Recordings(ctx context.Context) ([]models.Recording, error)
}

// RiskCounter returns archived alert counts keyed by streamer name.
type RiskCounter interface {
	CountByStreamer(ctx context.Context) (map[string]int, error)
}

// Presigner creates time-limited playback URLs for recording objects.
type Presigner interface {
	PresignRecording(ctx context.Context, key string) (string, time.Duration, error)
}

// Handler handles recording HTTP endpoints.
type Handler struct {
	backend   Lister
	counter   RiskCounter
	presigner Presigner
	logger    *zap.Logger
}

// NewHandler creates a recordings handler. counter and presigner are optional.
func NewHandler(backend Lister, counter RiskCounter, presigner Presigner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{backend: backend, counter: counter, presigner: presigner, logger: logger}
}

// List handles GET /api/recordings?q=. A backend failure yields an empty list.
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	list, err := h.backend.Recordings(ctx)
	if err != nil {
		h.logger.Warn("list recordings failed", zap.Error(err))
		list = []models.Recording{}
	}
	list = models.FilterRecordings(list, c.Query("q"))
	h.enrich(ctx, list)
	response.OK(c, gin.H{"recordings": list, "count": len(list)})
}

// enrich raises each recording's risk count to the archived alert count when that is higher.
func (h *Handler) enrich(ctx context.Context, list []models.Recording) {
	if h.counter == nil || len(list) == 0 {
		return
	}
	counts, err := h.counter.CountByStreamer(ctx)
	if err != nil {
		h.logger.Warn("count risk alerts failed", zap.Error(err))
		return
	}
	for i := range list {
		if n := counts[list[i].StreamerName]; n > list[i].RiskCount {
			list[i].RiskCount = n
		}
	}
}

// PlaybackURL handles GET /api/recordings/:id/playback-url.
func (h *Handler) PlaybackURL(c *gin.Context) {
	if h.presigner == nil {
		response.ServiceUnavailable(c, "recording storage not configured")
		return
	}
	id := c.Param("id")
	ctx := c.Request.Context()
	list, err := h.backend.Recordings(ctx)
	if err != nil {
		h.logger.Warn("list recordings failed", zap.Error(err))
		response.BadGateway(c, "recorder backend unavailable")
		return
	}
	var rec *models.Recording
	for i := range list {
		if list[i].ID == id {
			rec = &list[i]
			break
		}
	}
	if rec == nil {
		response.NotFound(c, "recording not found")
		return
	}

	key := storage.RecordingKey(rec.ID, rec.Path)
	url, expire, err := h.presigner.PresignRecording(ctx, key)
	if err != nil {
		h.logger.Error("presign recording failed", zap.Error(err), zap.String("recording_id", id))
		response.Internal(c, "failed to generate playback URL")
		return
	}
	response.OK(c, gin.H{"url": url, "key": key, "expires_in": int(expire.Seconds())})
}

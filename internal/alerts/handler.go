package alerts

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finstream-guard/dashboard/internal/models"
	"github.com/finstream-guard/dashboard/pkg/response"
)

// Lister reads archived alerts.
type Lister interface {
	ListRecent(ctx context.Context, limit int) ([]models.RiskAlert, error)
}

// Handler serves the alert archive.
type Handler struct {
	repo   Lister
	logger *zap.Logger
}

// NewHandler creates an alerts handler. repo may be nil when no database is configured.
func NewHandler(repo Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /api/alerts?limit=.
func (h *Handler) List(c *gin.Context) {
	if h.repo == nil {
		response.ServiceUnavailable(c, "alert archive not configured")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	list, err := h.repo.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list risk alerts failed", zap.Error(err))
		response.Internal(c, "failed to list alerts")
		return
	}
	response.OK(c, list)
}

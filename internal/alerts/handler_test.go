package alerts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/finstream-guard/dashboard/internal/models"
)

type stubLister struct {
	gotLimit int
	list     []models.RiskAlert
	err      error
}

func (s *stubLister) ListRecent(ctx context.Context, limit int) ([]models.RiskAlert, error) {
	s.gotLimit = limit
	return s.list, s.err
}

func serve(h *Handler, target string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/alerts", h.List)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestList(t *testing.T) {
	repo := &stubLister{list: []models.RiskAlert{{SessionID: "s", StreamerName: "Alpha", RiskScore: 88}}}
	w := serve(NewHandler(repo, nil), "/api/alerts?limit=5")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, repo.gotLimit)
	assert.Contains(t, w.Body.String(), `"risk_score":88`)
}

func TestList_NotConfigured(t *testing.T) {
	w := serve(NewHandler(nil, nil), "/api/alerts")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestList_RepoError(t *testing.T) {
	w := serve(NewHandler(&stubLister{err: errors.New("db down")}, nil), "/api/alerts")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

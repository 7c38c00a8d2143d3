package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newRouter(logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(logger), CORS(ParseOrigins("http://localhost:5173/")), Logger(logger))
	r.GET("/api/boom", func(c *gin.Context) { panic("bad render") })
	r.GET("/boom", func(c *gin.Context) { panic("bad render") })
	r.GET("/api/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestRecovery_APIGetsJSON(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := newRouter(zap.New(core))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"internal error"}`, w.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("handler panicked").Len())
}

func TestRecovery_PageGetsReloadPrompt(t *testing.T) {
	r := newRouter(zap.NewNop())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "location.reload()")
}

func TestRecovery_ServerKeepsServing(t *testing.T) {
	r := newRouter(zap.NewNop())
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/boom", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	r := newRouter(zap.NewNop())

	req := httptest.NewRequest(http.MethodOptions, "/api/ok", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/ok", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodOptions, "/api/ok", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOrigins(t *testing.T) {
	o := ParseOrigins(" http://localhost:3000 , http://localhost:5173/ ")
	assert.False(t, o.Any())
	assert.True(t, o.Allows("http://localhost:5173"))
	assert.True(t, o.Allows(""))
	assert.False(t, o.Allows("http://evil.example"))

	assert.True(t, ParseOrigins("").Any())
	assert.True(t, ParseOrigins("*").Allows("http://anything.example"))
}

func TestLogger_RecordsRequest(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newRouter(zap.New(core))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/ok?q=x", nil))

	entries := logs.FilterMessage("request").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "/api/ok", fields["path"])
		assert.Equal(t, "x", fields["query"])
		assert.EqualValues(t, http.StatusOK, fields["status"])
	}
}

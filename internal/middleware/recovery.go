package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finstream-guard/dashboard/pkg/response"
)

const recoveryPage = `<!DOCTYPE html>
<html lang="zh-CN">
<head><meta charset="utf-8"><title>FinStream Guard</title></head>
<body style="background:#0f172a;color:#e2e8f0;font-family:sans-serif;display:flex;align-items:center;justify-content:center;height:100vh;margin:0">
<div style="text-align:center">
<h1>页面出现错误</h1>
<p>监控面板遇到了意外问题，请刷新页面重试。</p>
<button onclick="location.reload()" style="padding:8px 20px;border:0;border-radius:6px;background:#2563eb;color:#fff;cursor:pointer">重新加载</button>
</div>
</body>
</html>`

// Recovery converts a panic in any handler into a generic failure response. API and
// websocket paths get the JSON envelope; everything else gets a page with a reload button.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error("handler panicked",
				zap.Any("panic", r),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.ByteString("stack", debug.Stack()),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			if wantsJSON(c) {
				response.Internal(c, "internal error")
				c.Abort()
				return
			}
			c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", []byte(recoveryPage))
			c.Abort()
		}()
		c.Next()
	}
}

func wantsJSON(c *gin.Context) bool {
	path := c.Request.URL.Path
	if strings.HasPrefix(path, "/api/") || path == "/ws" {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

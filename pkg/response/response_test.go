package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, tc := range []struct {
		name   string
		send   func(c *gin.Context)
		status int
		ok     bool
	}{
		{"ok", func(c *gin.Context) { OK(c, gin.H{"a": 1}) }, http.StatusOK, true},
		{"accepted", func(c *gin.Context) { Accepted(c, nil) }, http.StatusAccepted, true},
		{"bad request", func(c *gin.Context) { BadRequest(c, "nope") }, http.StatusBadRequest, false},
		{"conflict", func(c *gin.Context) { Conflict(c, "busy") }, http.StatusConflict, false},
		{"bad gateway", func(c *gin.Context) { BadGateway(c, "down") }, http.StatusBadGateway, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tc.send(c)

			assert.Equal(t, tc.status, w.Code)
			var body Body
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.ok, body.Success)
			if !tc.ok {
				assert.NotEmpty(t, body.Error)
			}
		})
	}
}

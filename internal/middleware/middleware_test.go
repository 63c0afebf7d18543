package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newRouter(logger *logrus.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CorrelationID(), SecurityHeaders(), RequestLogger(logger))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CorrelationIDKey))
	})
	return router
}

func TestCorrelationID(t *testing.T) {
	router := newRouter(logrus.New())

	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"propagates incoming id", "abc-123", "abc-123"},
		{"generates id when absent", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set("X-Correlation-ID", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			id := w.Header().Get("X-Correlation-ID")
			assert.NotEmpty(t, id)
			assert.Equal(t, id, w.Body.String())
			if tt.expected != "" {
				assert.Equal(t, tt.expected, id)
			}
		})
	}
}

func TestSecurityHeadersAndRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)

	router := newRouter(logger)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, buf.String(), "Request served")
	assert.Contains(t, buf.String(), "path=/ping")
}

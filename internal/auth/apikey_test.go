package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/photos", APIKeyMiddleware(key), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		provided   string
		wantStatus int
	}{
		{"disabled when unconfigured", "", "", http.StatusOK},
		{"disabled ignores provided key", "", "anything", http.StatusOK},
		{"missing key", "secret", "", http.StatusUnauthorized},
		{"wrong key", "secret", "guess", http.StatusForbidden},
		{"prefix is not enough", "secret", "secre", http.StatusForbidden},
		{"correct key", "secret", "secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(tt.configured)

			req := httptest.NewRequest(http.MethodGet, "/photos", nil)
			if tt.provided != "" {
				req.Header.Set("X-API-Key", tt.provided)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNewRateLimiter(t *testing.T) {
	t.Run("invalid format", func(t *testing.T) {
		if _, err := NewRateLimiter("lots"); err == nil {
			t.Error("expected error for invalid rate format")
		}
	})

	t.Run("enforces limit", func(t *testing.T) {
		mw, err := NewRateLimiter("2-H")
		if err != nil {
			t.Fatalf("NewRateLimiter: %v", err)
		}

		r := gin.New()
		r.Use(mw)
		r.GET("/", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			r.ServeHTTP(w, req)
			codes = append(codes, w.Code)
		}

		if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
			t.Errorf("first two requests should pass, got %v", codes)
		}
		if codes[2] != http.StatusTooManyRequests {
			t.Errorf("third request should be limited, got %d", codes[2])
		}
	})
}

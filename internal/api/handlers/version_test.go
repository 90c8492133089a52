package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestVersionEndpoint(t *testing.T) {
	r := gin.New()
	handler := NewVersionHandler("1.2.3", "abc1234", "2026-08-01", zerolog.Nop())
	handler.RegisterPublicRoutes(r)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/version", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var info VersionInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if info.Version != "1.2.3" || info.Commit != "abc1234" {
		t.Fatalf("unexpected version info: %+v", info)
	}
}

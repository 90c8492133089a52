package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gitlite/gitlite/internal/auth"
	"github.com/gitlite/gitlite/internal/models"
	"github.com/gitlite/gitlite/internal/vcs"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type mockVersionService struct {
	versions map[int]*models.Version
	getErr   error
	listErr  error
}

func (m *mockVersionService) GetVersion(_ context.Context, fileID int64, versionNumber int) (*models.Version, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if v, ok := m.versions[versionNumber]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("version %d of file %d: %w", versionNumber, fileID, vcs.ErrNotFound)
}

func (m *mockVersionService) ListVersions(_ context.Context, _ int64) ([]*models.Version, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*models.Version
	for n := len(m.versions); n >= 1; n-- {
		result = append(result, m.versions[n].Metadata())
	}
	return result, nil
}

func setupVersionTestRouter(service VersionService, store FileStore, identity *auth.Identity) *gin.Engine {
	r := gin.New()
	r.Use(injectIdentity(identity))
	handler := NewVersionsHandler(service, store, nil, zerolog.Nop())
	api := r.Group("/api/v1")
	handler.RegisterRoutes(api)
	return r
}

func versionTestStore(identity *auth.Identity) *mockFileStore {
	return &mockFileStore{
		repoByID: map[int64]*models.Repository{1: ownedTestRepo(1, identity.Subject)},
		fileByID: map[int64]*models.File{10: {ID: 10, RepositoryID: 1, Filename: "a.txt", CurrentVersion: 2}},
	}
}

func textVersion(fileID int64, number int, content string) *models.Version {
	v := textVersionMeta(fileID, number)
	v.ContentText = &content
	v.ContentHash = vcs.HashContent([]byte(content))
	v.FileSize = int64(len(content))
	return v
}

func TestListVersions(t *testing.T) {
	identity := testIdentity()
	service := &mockVersionService{versions: map[int]*models.Version{
		1: textVersion(10, 1, "one\n"),
		2: textVersion(10, 2, "two\n"),
	}}
	r := setupVersionTestRouter(service, versionTestStore(identity), identity)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/files/10/versions", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var versions []*models.Version
	if err := json.Unmarshal(w.Body.Bytes(), &versions); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if versions[0].VersionNumber != 2 {
		t.Fatalf("expected newest first, got version %d", versions[0].VersionNumber)
	}
	if versions[0].ContentText != nil || versions[0].ContentBinary != nil {
		t.Fatal("expected listing without content")
	}
}

func TestGetVersion(t *testing.T) {
	identity := testIdentity()
	service := &mockVersionService{versions: map[int]*models.Version{
		1: textVersion(10, 1, "one\n"),
	}}

	t.Run("success", func(t *testing.T) {
		r := setupVersionTestRouter(service, versionTestStore(identity), identity)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/files/10/versions/1", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var version models.Version
		if err := json.Unmarshal(w.Body.Bytes(), &version); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if version.ContentText == nil || *version.ContentText != "one\n" {
			t.Fatal("expected version content in response")
		}
	})

	t.Run("unknown version number", func(t *testing.T) {
		r := setupVersionTestRouter(service, versionTestStore(identity), identity)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/files/10/versions/9", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})

	t.Run("invalid version number", func(t *testing.T) {
		r := setupVersionTestRouter(service, versionTestStore(identity), identity)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/files/10/versions/0", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("integrity failure stays internal", func(t *testing.T) {
		failing := &mockVersionService{getErr: fmt.Errorf("stored hash mismatch: %w", vcs.ErrIntegrity)}
		r := setupVersionTestRouter(failing, versionTestStore(identity), identity)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/files/10/versions/1", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
		if strings.Contains(w.Body.String(), "hash") {
			t.Fatalf("expected internal detail hidden, got %s", w.Body.String())
		}
	})
}

func TestDiffVersionsEndpoint(t *testing.T) {
	identity := testIdentity()
	service := &mockVersionService{versions: map[int]*models.Version{
		1: textVersion(10, 1, "line one\nline two\n"),
		2: textVersion(10, 2, "line one\nline 2\n"),
	}}

	t.Run("success", func(t *testing.T) {
		r := setupVersionTestRouter(service, versionTestStore(identity), identity)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/files/10/diff?v1=1&v2=2", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var result vcs.DiffResult
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if !strings.Contains(result.Diff, "-line two") || !strings.Contains(result.Diff, "+line 2") {
			t.Fatalf("unexpected diff: %s", result.Diff)
		}
		if result.Stats.Additions != 1 || result.Stats.Deletions != 1 {
			t.Fatalf("unexpected stats: %+v", result.Stats)
		}
	})

	t.Run("compact", func(t *testing.T) {
		r := setupVersionTestRouter(service, versionTestStore(identity), identity)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/files/10/diff?v1=1&v2=2&compact=true", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var result vcs.DiffResult
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if strings.Contains(result.Diff, " line one") {
			t.Fatalf("expected no context lines in compact diff: %s", result.Diff)
		}
	})

	t.Run("binary versions", func(t *testing.T) {
		binary := &mockVersionService{versions: map[int]*models.Version{
			1: {FileID: 10, VersionNumber: 1, ContentBinary: []byte{0x00, 0x01}},
			2: {FileID: 10, VersionNumber: 2, ContentBinary: []byte{0x00, 0x02}},
		}}
		r := setupVersionTestRouter(binary, versionTestStore(identity), identity)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/files/10/diff?v1=1&v2=2", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var result vcs.DiffResult
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if !result.Binary || result.Diff != "" {
			t.Fatalf("expected binary marker without line delta, got %+v", result)
		}
	})

	t.Run("missing v2", func(t *testing.T) {
		r := setupVersionTestRouter(service, versionTestStore(identity), identity)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/files/10/diff?v1=1", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("unknown version", func(t *testing.T) {
		r := setupVersionTestRouter(service, versionTestStore(identity), identity)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/files/10/diff?v1=1&v2=9", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})
}

package vcs

import (
	"context"
	"sync"
	"time"

	"github.com/gitlite/gitlite/internal/models"
)

// fakeStore is an in-memory Store and TemporalStore used to test the engine
// without a database. The clock is injectable so temporal tests can place
// versions at exact instants.
type fakeStore struct {
	mu            sync.Mutex
	repos         map[int64]*models.Repository
	files         map[int64]*models.File
	versions      map[int64][]*models.Version // keyed by file id, ascending version number
	nextFileID    int64
	nextVersionID int64
	now           func() time.Time

	// forceConflicts makes the next N AppendVersion calls fail with
	// ErrConflict to exercise the retry path.
	forceConflicts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		repos:    make(map[int64]*models.Repository),
		files:    make(map[int64]*models.File),
		versions: make(map[int64][]*models.Version),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *fakeStore) addRepository(id int64, name string) *models.Repository {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo := &models.Repository{
		ID:           id,
		OwnerSubject: "test-user",
		Name:         name,
		CreatedAt:    s.now(),
		UpdatedAt:    s.now(),
	}
	s.repos[id] = repo
	return repo
}

func (s *fakeStore) GetRepository(_ context.Context, id int64) (*models.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo, ok := s.repos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return repo, nil
}

func (s *fakeStore) GetFile(_ context.Context, fileID int64) (*models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, ok := s.files[fileID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *file
	return &clone, nil
}

func (s *fakeStore) GetRepositoryFiles(_ context.Context, repositoryID int64) ([]*models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.repos[repositoryID]; !ok {
		return nil, ErrNotFound
	}
	var files []*models.File
	for _, f := range s.files {
		if f.RepositoryID == repositoryID {
			clone := *f
			files = append(files, &clone)
		}
	}
	return files, nil
}

func (s *fakeStore) CreateFileWithVersion(_ context.Context, file *models.File, version *models.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.repos[file.RepositoryID]; !ok {
		return ErrNotFound
	}
	s.nextFileID++
	s.nextVersionID++
	now := s.now()
	file.ID = s.nextFileID
	file.CreatedAt = now
	file.UpdatedAt = now
	version.ID = s.nextVersionID
	version.FileID = file.ID
	version.CreatedAt = now
	stored := *file
	s.files[file.ID] = &stored
	s.versions[file.ID] = []*models.Version{cloneVersion(version)}
	s.repos[file.RepositoryID].UpdatedAt = now
	return nil
}

func (s *fakeStore) AppendVersion(_ context.Context, version *models.Version) (*models.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, ok := s.files[version.FileID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.forceConflicts > 0 {
		s.forceConflicts--
		return nil, ErrConflict
	}
	if file.CurrentVersion != version.VersionNumber-1 {
		return nil, ErrConflict
	}
	s.nextVersionID++
	now := s.now()
	version.ID = s.nextVersionID
	version.CreatedAt = now
	s.versions[version.FileID] = append(s.versions[version.FileID], cloneVersion(version))
	file.CurrentVersion = version.VersionNumber
	file.UpdatedAt = now
	s.repos[file.RepositoryID].UpdatedAt = now
	return cloneVersion(version), nil
}

func (s *fakeStore) GetVersionByNumber(_ context.Context, fileID int64, versionNumber int) (*models.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.versions[fileID] {
		if v.VersionNumber == versionNumber {
			return cloneVersion(v), nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) GetVersionsOrdered(_ context.Context, fileID int64) ([]*models.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := s.versions[fileID]
	out := make([]*models.Version, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i].Metadata())
	}
	return out, nil
}

func (s *fakeStore) DeleteFileCascade(_ context.Context, fileID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, ok := s.files[fileID]
	if !ok {
		return ErrNotFound
	}
	s.repos[file.RepositoryID].UpdatedAt = s.now()
	delete(s.files, fileID)
	delete(s.versions, fileID)
	return nil
}

func (s *fakeStore) GetVersionsAt(_ context.Context, repositoryID int64, at time.Time) (map[int64]*models.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.repos[repositoryID]; !ok {
		return nil, ErrNotFound
	}
	state := make(map[int64]*models.Version)
	for fileID, file := range s.files {
		if file.RepositoryID != repositoryID {
			continue
		}
		var selected *models.Version
		for _, v := range s.versions[fileID] {
			if v.CreatedAt.After(at) {
				continue
			}
			if selected == nil ||
				v.CreatedAt.After(selected.CreatedAt) ||
				(v.CreatedAt.Equal(selected.CreatedAt) && v.VersionNumber > selected.VersionNumber) {
				selected = v
			}
		}
		if selected != nil {
			state[fileID] = selected.Metadata()
		}
	}
	return state, nil
}

// corruptVersion overwrites the stored content of a version without touching
// its hash, simulating store corruption.
func (s *fakeStore) corruptVersion(fileID int64, versionNumber int, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.versions[fileID] {
		if v.VersionNumber == versionNumber {
			if v.ContentBinary != nil {
				v.ContentBinary = []byte(content)
			} else {
				v.ContentText = &content
			}
			return
		}
	}
}

func cloneVersion(v *models.Version) *models.Version {
	clone := *v
	if v.ContentBinary != nil {
		clone.ContentBinary = append([]byte(nil), v.ContentBinary...)
	}
	return &clone
}

package models

import (
	"time"
)

// Repository is a named collection of versioned files owned by a single user.
// Ownership is keyed by the subject claim issued by the external identity
// provider; the server never manages credentials itself.
type Repository struct {
	ID           int64     `json:"id"`
	OwnerSubject string    `json:"owner_id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewRepository creates a new Repository with the given details.
func NewRepository(ownerSubject, name string, description *string) *Repository {
	now := time.Now().UTC()
	return &Repository{
		OwnerSubject: ownerSubject,
		Name:         name,
		Description:  description,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// RepositoryStats summarizes the contents of a repository.
type RepositoryStats struct {
	TotalFiles    int64      `json:"total_files"`
	TotalSize     int64      `json:"total_size"`
	TotalVersions int64      `json:"total_versions"`
	LastActivity  *time.Time `json:"last_activity"`
}

// ActivityEntry is one recent version write within a repository.
type ActivityEntry struct {
	FileID        int64     `json:"file_id"`
	Filename      string    `json:"filename"`
	VersionNumber int       `json:"version_number"`
	CommitMessage *string   `json:"commit_message"`
	CreatedAt     time.Time `json:"created_at"`
}

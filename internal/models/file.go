package models

import (
	"time"
)

// File is a versioned entity scoped to one repository. Content is never
// stored on the file itself, only on its versions. CurrentVersion caches the
// head of the version chain. Filenames are not required to be unique within
// a repository.
type File struct {
	ID             int64     `json:"id"`
	RepositoryID   int64     `json:"repository_id"`
	Filename       string    `json:"filename"`
	CurrentVersion int       `json:"current_version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewFile creates a File at version 1. A file never exists without at least
// one version; persistence of the file and its first version is a single
// transaction.
func NewFile(repositoryID int64, filename string) *File {
	now := time.Now().UTC()
	return &File{
		RepositoryID:   repositoryID,
		Filename:       filename,
		CurrentVersion: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

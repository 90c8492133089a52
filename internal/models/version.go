package models

import (
	"time"
)

// Version is one immutable entry in a file's version chain. Version numbers
// start at 1 and are contiguous; ParentVersionID references the version with
// number N-1 (nil for version 1). Exactly one of ContentText/ContentBinary is
// set. Once written a version's content and hash never change.
type Version struct {
	ID              int64     `json:"id"`
	FileID          int64     `json:"file_id"`
	VersionNumber   int       `json:"version_number"`
	ParentVersionID *int64    `json:"parent_version_id"`
	CommitMessage   *string   `json:"commit_message"`
	ContentText     *string   `json:"content_text,omitempty"`
	ContentBinary   []byte    `json:"content_binary,omitempty"`
	ContentHash     string    `json:"content_hash"`
	MIMEType        string    `json:"mime_type"`
	FileSize        int64     `json:"file_size"`
	CreatedAt       time.Time `json:"created_at"`
}

// IsBinary reports whether this is a binary version. Binary versions cannot
// be diffed line-by-line.
func (v *Version) IsBinary() bool {
	return v.ContentBinary != nil
}

// Payload returns the raw content bytes regardless of content kind.
func (v *Version) Payload() []byte {
	if v.ContentBinary != nil {
		return v.ContentBinary
	}
	if v.ContentText != nil {
		return []byte(*v.ContentText)
	}
	return nil
}

// Metadata returns a copy of the version with content stripped, for listings
// that must not carry payloads.
func (v *Version) Metadata() *Version {
	clone := *v
	clone.ContentText = nil
	clone.ContentBinary = nil
	return &clone
}

// ChangedFile is one entry in a two-instant repository comparison. A nil
// version number means the file had no version at that instant.
type ChangedFile struct {
	FileID          int64  `json:"file_id"`
	Filename        string `json:"filename"`
	VersionAtState1 *int   `json:"version_at_state1"`
	VersionAtState2 *int   `json:"version_at_state2"`
}

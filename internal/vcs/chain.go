package vcs

import (
	"context"
	"errors"
	"fmt"

	"github.com/gitlite/gitlite/internal/models"
	"github.com/rs/zerolog"
)

// Store defines the persistence operations the version chain manager needs.
// Implementations must make AppendVersion atomic with the file's head-pointer
// advance: a version row without an advanced head (or vice versa) must never
// be observable.
type Store interface {
	GetRepository(ctx context.Context, id int64) (*models.Repository, error)
	GetFile(ctx context.Context, fileID int64) (*models.File, error)

	// CreateFileWithVersion persists a new file and its version 1 in a
	// single transaction, assigning both ids and timestamps.
	CreateFileWithVersion(ctx context.Context, file *models.File, version *models.Version) error

	// AppendVersion commits version.VersionNumber for the file if and only
	// if the current head is VersionNumber-1, advancing the head pointer in
	// the same transaction. Returns ErrConflict when the head moved.
	AppendVersion(ctx context.Context, version *models.Version) (*models.Version, error)

	GetVersionByNumber(ctx context.Context, fileID int64, versionNumber int) (*models.Version, error)

	// GetVersionsOrdered returns all versions of a file, newest first,
	// without content payloads.
	GetVersionsOrdered(ctx context.Context, fileID int64) ([]*models.Version, error)

	// DeleteFileCascade removes a file and its entire version chain as one
	// atomic operation.
	DeleteFileCascade(ctx context.Context, fileID int64) error
}

// maxAppendRetries bounds how often a lost allocation race is retried before
// the conflict surfaces. With a locking store this path never triggers.
const maxAppendRetries = 3

// Chain manages per-file version chains: it allocates version numbers,
// links each version to its predecessor, and keeps the file's cached head in
// step with the chain.
type Chain struct {
	store  Store
	logger zerolog.Logger
}

// NewChain creates a new Chain backed by the given store.
func NewChain(store Store, logger zerolog.Logger) *Chain {
	return &Chain{
		store:  store,
		logger: logger.With().Str("component", "version_chain").Logger(),
	}
}

// CreateFileInput carries the parameters for creating a file with its first
// version. Exactly one of ContentText/ContentBinary must be set.
type CreateFileInput struct {
	RepositoryID  int64
	Filename      string
	ContentText   *string
	ContentBinary []byte
	MIMEType      string
	CommitMessage *string
}

// UpdateFileInput carries the parameters for appending a version to an
// existing file.
type UpdateFileInput struct {
	FileID        int64
	ContentText   *string
	ContentBinary []byte
	CommitMessage *string
}

func contentOf(text *string, binary []byte) ([]byte, error) {
	if text == nil && binary == nil {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}
	if text != nil && binary != nil {
		return nil, fmt.Errorf("%w: content must be text or binary, not both", ErrValidation)
	}
	if binary != nil {
		return binary, nil
	}
	return []byte(*text), nil
}

// CreateFile creates a new file and writes version 1 atomically with it.
func (c *Chain) CreateFile(ctx context.Context, in CreateFileInput) (*models.File, *models.Version, error) {
	if in.Filename == "" {
		return nil, nil, fmt.Errorf("%w: filename is required", ErrValidation)
	}

	payload, err := contentOf(in.ContentText, in.ContentBinary)
	if err != nil {
		return nil, nil, err
	}

	if _, err := c.store.GetRepository(ctx, in.RepositoryID); err != nil {
		return nil, nil, fmt.Errorf("repository %d: %w", in.RepositoryID, err)
	}

	mimeType := in.MIMEType
	if mimeType == "" {
		mimeType = DetectMIMEType(in.Filename)
	}

	commitMessage := in.CommitMessage
	if commitMessage == nil {
		initial := "Initial commit"
		commitMessage = &initial
	}

	file := models.NewFile(in.RepositoryID, in.Filename)
	version := &models.Version{
		VersionNumber: 1,
		CommitMessage: commitMessage,
		ContentText:   in.ContentText,
		ContentBinary: in.ContentBinary,
		ContentHash:   HashContent(payload),
		MIMEType:      mimeType,
		FileSize:      int64(len(payload)),
	}

	if err := c.store.CreateFileWithVersion(ctx, file, version); err != nil {
		return nil, nil, fmt.Errorf("create file %q: %w", in.Filename, err)
	}

	c.logger.Info().
		Int64("file_id", file.ID).
		Int64("repository_id", in.RepositoryID).
		Str("filename", in.Filename).
		Msg("file created")

	return file, version, nil
}

// UpdateFile appends a new version to the file's chain, linking it to the
// current head and advancing the cached head pointer. Identical content still
// produces a new version; the hash is stored for clients to detect no-op
// edits themselves. Lost allocation races are retried transparently.
func (c *Chain) UpdateFile(ctx context.Context, in UpdateFileInput) (*models.Version, error) {
	payload, err := contentOf(in.ContentText, in.ContentBinary)
	if err != nil {
		return nil, err
	}

	hash := HashContent(payload)

	for attempt := 0; ; attempt++ {
		file, err := c.store.GetFile(ctx, in.FileID)
		if err != nil {
			return nil, fmt.Errorf("file %d: %w", in.FileID, err)
		}

		head, err := c.store.GetVersionByNumber(ctx, in.FileID, file.CurrentVersion)
		if err != nil {
			return nil, fmt.Errorf("head version %d of file %d: %w", file.CurrentVersion, in.FileID, err)
		}

		version := &models.Version{
			FileID:          in.FileID,
			VersionNumber:   head.VersionNumber + 1,
			ParentVersionID: &head.ID,
			CommitMessage:   in.CommitMessage,
			ContentText:     in.ContentText,
			ContentBinary:   in.ContentBinary,
			ContentHash:     hash,
			MIMEType:        head.MIMEType,
			FileSize:        int64(len(payload)),
		}

		committed, err := c.store.AppendVersion(ctx, version)
		if err == nil {
			c.logger.Info().
				Int64("file_id", in.FileID).
				Int("version", committed.VersionNumber).
				Msg("version appended")
			return committed, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("append version %d to file %d: %w", version.VersionNumber, in.FileID, err)
		}
		if attempt+1 >= maxAppendRetries {
			return nil, fmt.Errorf("append version to file %d after %d attempts: %w", in.FileID, attempt+1, err)
		}

		c.logger.Debug().
			Int64("file_id", in.FileID).
			Int("attempt", attempt+1).
			Msg("version allocation race lost, retrying")
	}
}

// GetVersion returns a specific version with its content, verifying the
// stored hash against the payload. A mismatch means store corruption and is
// reported as ErrIntegrity.
func (c *Chain) GetVersion(ctx context.Context, fileID int64, versionNumber int) (*models.Version, error) {
	version, err := c.store.GetVersionByNumber(ctx, fileID, versionNumber)
	if err != nil {
		return nil, fmt.Errorf("version %d of file %d: %w", versionNumber, fileID, err)
	}

	if got := HashContent(version.Payload()); got != version.ContentHash {
		c.logger.Error().
			Int64("file_id", fileID).
			Int("version", versionNumber).
			Str("stored_hash", version.ContentHash).
			Str("computed_hash", got).
			Msg("stored content hash does not match content")
		return nil, fmt.Errorf("version %d of file %d: %w", versionNumber, fileID, ErrIntegrity)
	}

	return version, nil
}

// ListVersions returns the file's version metadata, newest first. Content is
// never included in listings.
func (c *Chain) ListVersions(ctx context.Context, fileID int64) ([]*models.Version, error) {
	if _, err := c.store.GetFile(ctx, fileID); err != nil {
		return nil, fmt.Errorf("file %d: %w", fileID, err)
	}

	versions, err := c.store.GetVersionsOrdered(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("list versions of file %d: %w", fileID, err)
	}
	return versions, nil
}

// DeleteFile hard-deletes the file and the entirety of its version chain.
// Partial deletion is never observable.
func (c *Chain) DeleteFile(ctx context.Context, fileID int64) error {
	if _, err := c.store.GetFile(ctx, fileID); err != nil {
		return fmt.Errorf("file %d: %w", fileID, err)
	}

	if err := c.store.DeleteFileCascade(ctx, fileID); err != nil {
		return fmt.Errorf("delete file %d: %w", fileID, err)
	}

	c.logger.Info().Int64("file_id", fileID).Msg("file and version chain deleted")
	return nil
}

package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/gitlite/gitlite/internal/models"
	"github.com/gitlite/gitlite/internal/vcs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// versionMetaColumns are the version columns scanned for listings and
// temporal queries, deliberately excluding the content payloads.
const versionMetaColumns = `id, file_id, version_number, parent_version_id, commit_message, content_hash, mime_type, file_size, created_at`

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique-constraint failure, i.e.
// a lost version-number allocation race on (file_id, version_number).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// File methods

// GetFile returns a file by id.
func (db *DB) GetFile(ctx context.Context, fileID int64) (*models.File, error) {
	var f models.File
	err := db.Pool.QueryRow(ctx, `
		SELECT id, repository_id, filename, current_version, created_at, updated_at
		FROM files
		WHERE id = $1
	`, fileID).Scan(&f.ID, &f.RepositoryID, &f.Filename, &f.CurrentVersion, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "get file")
	}
	return &f, nil
}

// GetRepositoryFiles returns all files in a repository.
func (db *DB) GetRepositoryFiles(ctx context.Context, repositoryID int64) ([]*models.File, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, repository_id, filename, current_version, created_at, updated_at
		FROM files
		WHERE repository_id = $1
		ORDER BY id
	`, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []*models.File
	for rows.Next() {
		var f models.File
		err := rows.Scan(&f.ID, &f.RepositoryID, &f.Filename, &f.CurrentVersion, &f.CreatedAt, &f.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, &f)
	}

	return files, rows.Err()
}

// CreateFileWithVersion persists a new file together with its version 1 in a
// single transaction. A file without a version is never observable.
func (db *DB) CreateFileWithVersion(ctx context.Context, file *models.File, version *models.Version) error {
	err := db.ExecTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO files (repository_id, filename)
			VALUES ($1, $2)
			RETURNING id, current_version, created_at, updated_at
		`, file.RepositoryID, file.Filename).Scan(&file.ID, &file.CurrentVersion, &file.CreatedAt, &file.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert file: %w", err)
		}

		version.FileID = file.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO file_versions (file_id, version_number, parent_version_id, commit_message,
				content_text, content_binary, content_hash, mime_type, file_size)
			VALUES ($1, 1, NULL, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at
		`, file.ID, version.CommitMessage, version.ContentText, version.ContentBinary,
			version.ContentHash, version.MIMEType, version.FileSize).Scan(&version.ID, &version.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert version 1: %w", err)
		}

		return touchRepository(ctx, tx, file.RepositoryID)
	})
	if err != nil {
		return fmt.Errorf("create file with version: %w", err)
	}

	return nil
}

// AppendVersion commits a new head version for a file. The head row is
// locked for the duration of the transaction so concurrent writers to the
// same file serialize; writers to different files proceed independently. The
// version row, the head-pointer advance, and the repository touch commit
// together or not at all.
func (db *DB) AppendVersion(ctx context.Context, version *models.Version) (*models.Version, error) {
	err := db.ExecTx(ctx, func(tx pgx.Tx) error {
		var repositoryID int64
		var currentVersion int
		err := tx.QueryRow(ctx, `
			SELECT repository_id, current_version
			FROM files
			WHERE id = $1
			FOR UPDATE
		`, version.FileID).Scan(&repositoryID, &currentVersion)
		if err != nil {
			return notFound(err, "lock file head")
		}

		if currentVersion != version.VersionNumber-1 {
			return fmt.Errorf("head is %d, appending %d: %w", currentVersion, version.VersionNumber, vcs.ErrConflict)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO file_versions (file_id, version_number, parent_version_id, commit_message,
				content_text, content_binary, content_hash, mime_type, file_size)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at
		`, version.FileID, version.VersionNumber, version.ParentVersionID, version.CommitMessage,
			version.ContentText, version.ContentBinary, version.ContentHash, version.MIMEType,
			version.FileSize).Scan(&version.ID, &version.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert version: %w", vcs.ErrConflict)
			}
			return fmt.Errorf("insert version: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE files SET current_version = $2, updated_at = NOW() WHERE id = $1
		`, version.FileID, version.VersionNumber); err != nil {
			return fmt.Errorf("advance head pointer: %w", err)
		}

		return touchRepository(ctx, tx, repositoryID)
	})
	if err != nil {
		return nil, fmt.Errorf("append version: %w", err)
	}

	return version, nil
}

// GetVersionByNumber returns a specific version of a file, content included.
func (db *DB) GetVersionByNumber(ctx context.Context, fileID int64, versionNumber int) (*models.Version, error) {
	var v models.Version
	err := db.Pool.QueryRow(ctx, `
		SELECT id, file_id, version_number, parent_version_id, commit_message,
		       content_text, content_binary, content_hash, mime_type, file_size, created_at
		FROM file_versions
		WHERE file_id = $1 AND version_number = $2
	`, fileID, versionNumber).Scan(
		&v.ID, &v.FileID, &v.VersionNumber, &v.ParentVersionID, &v.CommitMessage,
		&v.ContentText, &v.ContentBinary, &v.ContentHash, &v.MIMEType, &v.FileSize, &v.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "get version")
	}
	return &v, nil
}

// GetVersionsOrdered returns all versions of a file, newest first, without
// content payloads.
func (db *DB) GetVersionsOrdered(ctx context.Context, fileID int64) ([]*models.Version, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+versionMetaColumns+`
		FROM file_versions
		WHERE file_id = $1
		ORDER BY version_number DESC
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	return scanVersionMeta(rows)
}

// DeleteFileCascade removes a file and its entire version chain atomically,
// relying on the ON DELETE CASCADE constraint.
func (db *DB) DeleteFileCascade(ctx context.Context, fileID int64) error {
	err := db.ExecTx(ctx, func(tx pgx.Tx) error {
		var repositoryID int64
		if err := tx.QueryRow(ctx, `
			SELECT repository_id FROM files WHERE id = $1
		`, fileID).Scan(&repositoryID); err != nil {
			return notFound(err, "get file")
		}

		if _, err := tx.Exec(ctx, `DELETE FROM files WHERE id = $1`, fileID); err != nil {
			return fmt.Errorf("delete file: %w", err)
		}

		return touchRepository(ctx, tx, repositoryID)
	})
	if err != nil {
		return fmt.Errorf("delete file cascade: %w", err)
	}

	db.logger.Info().Int64("file_id", fileID).Msg("file and version chain deleted")
	return nil
}

// GetVersionsBatch returns up to limit versions with id greater than afterID,
// content included, in id order. The integrity sweep pages through the whole
// version table with this.
func (db *DB) GetVersionsBatch(ctx context.Context, afterID int64, limit int) ([]*models.Version, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, file_id, version_number, parent_version_id, commit_message,
		       content_text, content_binary, content_hash, mime_type, file_size, created_at
		FROM file_versions
		WHERE id > $1
		ORDER BY id
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("batch versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.Version
	for rows.Next() {
		var v models.Version
		err := rows.Scan(&v.ID, &v.FileID, &v.VersionNumber, &v.ParentVersionID, &v.CommitMessage,
			&v.ContentText, &v.ContentBinary, &v.ContentHash, &v.MIMEType, &v.FileSize, &v.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

func scanVersionMeta(rows pgx.Rows) ([]*models.Version, error) {
	var versions []*models.Version
	for rows.Next() {
		var v models.Version
		err := rows.Scan(&v.ID, &v.FileID, &v.VersionNumber, &v.ParentVersionID, &v.CommitMessage,
			&v.ContentHash, &v.MIMEType, &v.FileSize, &v.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

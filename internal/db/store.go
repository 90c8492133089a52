package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/gitlite/gitlite/internal/models"
	"github.com/gitlite/gitlite/internal/vcs"
	"github.com/jackc/pgx/v5"
)

// notFound maps pgx's no-rows result onto the engine's error taxonomy so
// callers can match with errors.Is across layers.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, vcs.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Repository methods

// CreateRepository persists a new repository, assigning its id and
// timestamps.
func (db *DB) CreateRepository(ctx context.Context, repo *models.Repository) error {
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO repositories (owner_subject, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, repo.OwnerSubject, repo.Name, repo.Description).Scan(&repo.ID, &repo.CreatedAt, &repo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}

	db.logger.Info().Int64("repository_id", repo.ID).Str("name", repo.Name).Msg("repository created")
	return nil
}

// GetRepository returns a repository by id.
func (db *DB) GetRepository(ctx context.Context, id int64) (*models.Repository, error) {
	var repo models.Repository
	err := db.Pool.QueryRow(ctx, `
		SELECT id, owner_subject, name, description, created_at, updated_at
		FROM repositories
		WHERE id = $1
	`, id).Scan(&repo.ID, &repo.OwnerSubject, &repo.Name, &repo.Description, &repo.CreatedAt, &repo.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "get repository")
	}
	return &repo, nil
}

// GetRepositoriesByOwner returns all repositories owned by the given
// subject, newest first.
func (db *DB) GetRepositoriesByOwner(ctx context.Context, ownerSubject string) ([]*models.Repository, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, owner_subject, name, description, created_at, updated_at
		FROM repositories
		WHERE owner_subject = $1
		ORDER BY created_at DESC
	`, ownerSubject)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []*models.Repository
	for rows.Next() {
		var repo models.Repository
		err := rows.Scan(&repo.ID, &repo.OwnerSubject, &repo.Name, &repo.Description, &repo.CreatedAt, &repo.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, &repo)
	}

	return repos, rows.Err()
}

// UpdateRepository updates a repository's name and description.
func (db *DB) UpdateRepository(ctx context.Context, repo *models.Repository) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE repositories
		SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
	`, repo.ID, repo.Name, repo.Description)
	if err != nil {
		return fmt.Errorf("update repository: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update repository: %w", vcs.ErrNotFound)
	}
	return nil
}

// DeleteRepository hard-deletes a repository; files and versions cascade.
func (db *DB) DeleteRepository(ctx context.Context, id int64) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM repositories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete repository: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete repository: %w", vcs.ErrNotFound)
	}

	db.logger.Info().Int64("repository_id", id).Msg("repository deleted")
	return nil
}

// GetRepositoryStats summarizes a repository's files and versions.
func (db *DB) GetRepositoryStats(ctx context.Context, repositoryID int64) (*models.RepositoryStats, error) {
	var stats models.RepositoryStats
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT f.id),
		       COALESCE(SUM(fv.file_size), 0),
		       COUNT(fv.id),
		       MAX(fv.created_at)
		FROM files f
		LEFT JOIN file_versions fv ON fv.file_id = f.id
		WHERE f.repository_id = $1
	`, repositoryID).Scan(&stats.TotalFiles, &stats.TotalSize, &stats.TotalVersions, &stats.LastActivity)
	if err != nil {
		return nil, fmt.Errorf("get repository stats: %w", err)
	}
	return &stats, nil
}

// GetRepositoryActivity returns the most recent version writes across all
// files in a repository, newest first.
func (db *DB) GetRepositoryActivity(ctx context.Context, repositoryID int64, limit int) ([]*models.ActivityEntry, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT fv.file_id, f.filename, fv.version_number, fv.commit_message, fv.created_at
		FROM file_versions fv
		JOIN files f ON f.id = fv.file_id
		WHERE f.repository_id = $1
		ORDER BY fv.created_at DESC, fv.version_number DESC
		LIMIT $2
	`, repositoryID, limit)
	if err != nil {
		return nil, fmt.Errorf("get repository activity: %w", err)
	}
	defer rows.Close()

	var entries []*models.ActivityEntry
	for rows.Next() {
		var e models.ActivityEntry
		err := rows.Scan(&e.FileID, &e.Filename, &e.VersionNumber, &e.CommitMessage, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// CountRepositories returns the total number of repositories.
func (db *DB) CountRepositories(ctx context.Context) (int64, error) {
	return db.countRows(ctx, "repositories")
}

// CountFiles returns the total number of files.
func (db *DB) CountFiles(ctx context.Context) (int64, error) {
	return db.countRows(ctx, "files")
}

// CountVersions returns the total number of versions.
func (db *DB) CountVersions(ctx context.Context) (int64, error) {
	return db.countRows(ctx, "file_versions")
}

func (db *DB) countRows(ctx context.Context, table string) (int64, error) {
	var n int64
	// table names come from the three constants above, never user input
	if err := db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// touchRepository bumps a repository's updated_at inside a transaction.
func touchRepository(ctx context.Context, tx pgx.Tx, repositoryID int64) error {
	if _, err := tx.Exec(ctx, `UPDATE repositories SET updated_at = NOW() WHERE id = $1`, repositoryID); err != nil {
		return fmt.Errorf("touch repository: %w", err)
	}
	return nil
}

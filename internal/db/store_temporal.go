package db

import (
	"context"
	"fmt"
	"time"

	"github.com/gitlite/gitlite/internal/models"
)

// GetVersionsAt returns, for every file in the repository, the latest
// version whose created_at is at or before the given instant. Files created
// after the instant are simply absent from the map. Versions sharing a
// timestamp resolve to the higher version number. Content payloads are not
// loaded.
func (db *DB) GetVersionsAt(ctx context.Context, repositoryID int64, instant time.Time) (map[int64]*models.Version, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT DISTINCT ON (fv.file_id)
		       fv.id, fv.file_id, fv.version_number, fv.parent_version_id, fv.commit_message,
		       fv.content_hash, fv.mime_type, fv.file_size, fv.created_at
		FROM file_versions fv
		JOIN files f ON f.id = fv.file_id
		WHERE f.repository_id = $1 AND fv.created_at <= $2
		ORDER BY fv.file_id, fv.created_at DESC, fv.version_number DESC
	`, repositoryID, instant)
	if err != nil {
		return nil, fmt.Errorf("query state at instant: %w", err)
	}
	defer rows.Close()

	versions, err := scanVersionMeta(rows)
	if err != nil {
		return nil, err
	}

	state := make(map[int64]*models.Version, len(versions))
	for _, v := range versions {
		state[v.FileID] = v
	}
	return state, nil
}

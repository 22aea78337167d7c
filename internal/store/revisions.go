package store

import (
	"context"
	"fmt"
	"strings"

	"assetgate/internal/models"
)

const defaultRevisionLimit = 50

// RecordRevision appends one archived upload to the revision log and sets
// rev.ID.
func (s *Store) RecordRevision(ctx context.Context, rev *models.AssetRevision) error {
	if rev == nil {
		return fmt.Errorf("revision is required")
	}
	if strings.TrimSpace(rev.BlobKey) == "" {
		return fmt.Errorf("blob key is required")
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO asset_revisions (asset_id, key, digest, size_bytes, blob_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rev.AssetID, rev.Key, rev.Digest, rev.SizeBytes, rev.BlobKey, formatTime(rev.CreatedAt))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	rev.ID = id
	return nil
}

// ListRevisions returns the newest revisions of assetID first.
func (s *Store) ListRevisions(ctx context.Context, assetID int64, limit int) ([]models.AssetRevision, error) {
	if limit <= 0 {
		limit = defaultRevisionLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, asset_id, key, digest, size_bytes, blob_key, created_at
		FROM asset_revisions
		WHERE asset_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, assetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	revisions := make([]models.AssetRevision, 0)
	for rows.Next() {
		var rev models.AssetRevision
		var createdAt string
		if err := rows.Scan(&rev.ID, &rev.AssetID, &rev.Key, &rev.Digest, &rev.SizeBytes, &rev.BlobKey, &createdAt); err != nil {
			return nil, err
		}
		parsed, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		rev.CreatedAt = parsed
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return revisions, nil
}

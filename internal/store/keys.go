package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"assetgate/internal/models"
)

var (
	// ErrKeyNotFound is returned when an operation names a key that does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrKeyExists is returned when creating a key that is already stored.
	ErrKeyExists = errors.New("key already exists")
	// ErrAssetClaimed is returned when an asset already belongs to another key.
	ErrAssetClaimed = errors.New("asset belongs to another key")
)

const groupIDPrefix = "grp"

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// KeyExists reports whether key is stored.
func (s *Store) KeyExists(ctx context.Context, key string) (bool, error) {
	return keyExists(ctx, s.db, key)
}

// GetGrant returns the users and assets authorized by key, or nil when the
// key does not exist.
func (s *Store) GetGrant(ctx context.Context, key string) (*models.Grant, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	ok, err := keyExists(ctx, s.db, key)
	if err != nil || !ok {
		return nil, err
	}
	return loadGrant(ctx, s.db, key)
}

// ListGrants returns every key with its users and assets, oldest first.
func (s *Store) ListGrants(ctx context.Context) ([]models.Grant, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM keys ORDER BY created_at ASC, key ASC")
	if err != nil {
		return nil, err
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			_ = rows.Close()
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	grants := make([]models.Grant, 0, len(keys))
	for _, key := range keys {
		grant, err := loadGrant(ctx, s.db, key)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *grant)
	}
	return grants, nil
}

// ListAssetIDs returns every asset id known to any key.
func (s *Store) ListAssetIDs(ctx context.Context) ([]int64, error) {
	return queryInt64s(ctx, s.db, "SELECT asset_id FROM assets ORDER BY key ASC, position ASC")
}

// CreateKey stores a new key with empty user and asset sets.
func (s *Store) CreateKey(ctx context.Context, key string, now time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("key is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists bool
	exists, err = keyExists(ctx, tx, key)
	if err != nil {
		return err
	}
	if exists {
		err = ErrKeyExists
		return err
	}
	if _, err = insertKey(ctx, tx, key, now); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveGrant upserts grant.Key and replaces its user and asset sets. Unknown
// user ids are provisioned. Everything happens in one transaction.
func (s *Store) SaveGrant(ctx context.Context, grant models.Grant, now time.Time) error {
	key := strings.TrimSpace(grant.Key)
	if key == "" {
		return fmt.Errorf("key is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var groupID string
	err = tx.QueryRowContext(ctx, "SELECT group_id FROM keys WHERE key = ?", key).Scan(&groupID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		groupID, err = insertKey(ctx, tx, key, now)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if _, err = tx.ExecContext(ctx, "UPDATE keys SET updated_at = ? WHERE key = ?", formatTime(now), key); err != nil {
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM group_members WHERE group_id = ?", groupID); err != nil {
		return err
	}
	for position, externalID := range dedupeIDs(grant.Users) {
		var userID int64
		userID, err = provisionUser(ctx, tx, externalID, now)
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO group_members (group_id, user_id, position)
			VALUES (?, ?, ?)
		`, groupID, userID, position); err != nil {
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM assets WHERE key = ?", key); err != nil {
		return err
	}
	for position, assetID := range dedupeIDs(grant.Assets) {
		var owner string
		owner, err = assetOwner(ctx, tx, assetID)
		if err != nil {
			return err
		}
		if owner != "" {
			err = fmt.Errorf("%w: %d", ErrAssetClaimed, assetID)
			return err
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO assets (asset_id, key, position, created_at)
			VALUES (?, ?, ?, ?)
		`, assetID, key, position, formatTime(now)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AppendAsset adds assetID to the end of key's asset set. Appending an asset
// the key already holds is a no-op.
func (s *Store) AppendAsset(ctx context.Context, key string, assetID int64, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists bool
	exists, err = keyExists(ctx, tx, key)
	if err != nil {
		return err
	}
	if !exists {
		err = ErrKeyNotFound
		return err
	}

	var owner string
	owner, err = assetOwner(ctx, tx, assetID)
	if err != nil {
		return err
	}
	if owner == key {
		return tx.Commit()
	}
	if owner != "" {
		err = fmt.Errorf("%w: %d", ErrAssetClaimed, assetID)
		return err
	}

	var position int
	if err = tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(position), -1) + 1 FROM assets WHERE key = ?", key).Scan(&position); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO assets (asset_id, key, position, created_at)
		VALUES (?, ?, ?, ?)
	`, assetID, key, position, formatTime(now)); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, "UPDATE keys SET updated_at = ? WHERE key = ?", formatTime(now), key); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteKey removes key together with its group membership and assets.
func (s *Store) DeleteKey(ctx context.Context, key string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var groupID string
	err = tx.QueryRowContext(ctx, "SELECT group_id FROM keys WHERE key = ?", key).Scan(&groupID)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return false, tx.Rollback()
	}
	if err != nil {
		return false, err
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM keys WHERE key = ?", key); err != nil {
		return false, err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", groupID); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func insertKey(ctx context.Context, tx *sql.Tx, key string, now time.Time) (string, error) {
	groupID, err := GenerateID(groupIDPrefix, func(id string) (bool, error) {
		var one int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM groups WHERE id = ? LIMIT 1", id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return err == nil, err
	})
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO groups (id, created_at) VALUES (?, ?)", groupID, formatTime(now)); err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO keys (key, group_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, key, groupID, formatTime(now), formatTime(now)); err != nil {
		return "", err
	}
	return groupID, nil
}

func provisionUser(ctx context.Context, tx *sql.Tx, externalID int64, now time.Time) (int64, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (external_id, created_at)
		VALUES (?, ?)
		ON CONFLICT(external_id) DO NOTHING
	`, externalID, formatTime(now)); err != nil {
		return 0, err
	}
	var id int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM users WHERE external_id = ?", externalID).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func assetOwner(ctx context.Context, q querier, assetID int64) (string, error) {
	var owner string
	err := q.QueryRowContext(ctx, "SELECT key FROM assets WHERE asset_id = ?", assetID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return owner, err
}

func keyExists(ctx context.Context, q querier, key string) (bool, error) {
	var exists int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM keys WHERE key = ? LIMIT 1", key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func loadGrant(ctx context.Context, q querier, key string) (*models.Grant, error) {
	users, err := queryInt64s(ctx, q, `
		SELECT u.external_id
		FROM keys k
		JOIN group_members gm ON gm.group_id = k.group_id
		JOIN users u ON u.id = gm.user_id
		WHERE k.key = ?
		ORDER BY gm.position ASC
	`, key)
	if err != nil {
		return nil, err
	}
	assets, err := queryInt64s(ctx, q, "SELECT asset_id FROM assets WHERE key = ? ORDER BY position ASC", key)
	if err != nil {
		return nil, err
	}
	return &models.Grant{Key: key, Users: users, Assets: assets}, nil
}

func queryInt64s(ctx context.Context, q querier, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make([]int64, 0)
	for rows.Next() {
		var value int64
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

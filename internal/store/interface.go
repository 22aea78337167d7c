package store

import (
	"context"
	"time"

	"assetgate/internal/models"
)

// KeyStore abstracts persistence of key authorization state.
type KeyStore interface {
	KeyExists(ctx context.Context, key string) (bool, error)
	GetGrant(ctx context.Context, key string) (*models.Grant, error)
	ListGrants(ctx context.Context) ([]models.Grant, error)
	ListAssetIDs(ctx context.Context) ([]int64, error)
	CreateKey(ctx context.Context, key string, now time.Time) error
	SaveGrant(ctx context.Context, grant models.Grant, now time.Time) error
	AppendAsset(ctx context.Context, key string, assetID int64, now time.Time) error
	DeleteKey(ctx context.Context, key string) (bool, error)
}

// RevisionStore records archived uploads.
type RevisionStore interface {
	RecordRevision(ctx context.Context, rev *models.AssetRevision) error
	ListRevisions(ctx context.Context, assetID int64, limit int) ([]models.AssetRevision, error)
}

var (
	_ KeyStore      = (*Store)(nil)
	_ RevisionStore = (*Store)(nil)
)

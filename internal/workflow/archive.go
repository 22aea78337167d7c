package workflow

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"assetgate/internal/blobstore"
	"assetgate/internal/clock"
	"assetgate/internal/models"
	"assetgate/internal/store"
)

// Archive keeps a local copy of every uploaded model revision.
type Archive struct {
	blobs     blobstore.BlobStore
	revisions store.RevisionStore
	clock     clock.Clock
	logger    *slog.Logger
}

func NewArchive(blobs blobstore.BlobStore, revisions store.RevisionStore, clk clock.Clock, logger *slog.Logger) *Archive {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{blobs: blobs, revisions: revisions, clock: clk, logger: logger}
}

// Record stores content and logs a revision for assetID.
func (a *Archive) Record(ctx context.Context, key string, assetID int64, content []byte) (*models.AssetRevision, error) {
	put, err := a.blobs.Put(ctx, bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("archive asset %d: %w", assetID, err)
	}
	rev := &models.AssetRevision{
		AssetID:   assetID,
		Key:       key,
		Digest:    put.Digest,
		SizeBytes: put.SizeBytes,
		BlobKey:   put.BlobKey,
		CreatedAt: a.clock.Now().UTC(),
	}
	if err := a.revisions.RecordRevision(ctx, rev); err != nil {
		return nil, fmt.Errorf("record revision of asset %d: %w", assetID, err)
	}
	return rev, nil
}

// Revisions lists archived revisions of assetID, newest first.
func (a *Archive) Revisions(ctx context.Context, assetID int64, limit int) ([]models.AssetRevision, error) {
	return a.revisions.ListRevisions(ctx, assetID, limit)
}

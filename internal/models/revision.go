package models

import "time"

// AssetRevision is one archived upload of an asset's model bytes.
type AssetRevision struct {
	ID        int64     `json:"id"`
	AssetID   int64     `json:"asset_id"`
	Key       string    `json:"key"`
	Digest    string    `json:"digest"`
	SizeBytes int64     `json:"size_bytes"`
	BlobKey   string    `json:"blob_key"`
	CreatedAt time.Time `json:"created_at"`
}

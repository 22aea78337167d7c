package blobstore

import (
	"context"
	"io"
)

// BlobPutResult describes one persisted blob payload. Digest and SizeBytes
// describe the uncompressed content.
type BlobPutResult struct {
	Digest    string
	SizeBytes int64
	BlobKey   string
}

// BlobStore is the byte storage behind the upload archive.
type BlobStore interface {
	Put(ctx context.Context, r io.Reader) (BlobPutResult, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

package workflow

import (
	"context"
	"slices"
	"sync"
)

// InventoryLister lists the assets owned by an account.
type InventoryLister interface {
	ListInventory(ctx context.Context, userID int64) ([]int64, error)
}

// AssetCache tracks every asset the uploader account owns. Its size numbers
// new uploads.
type AssetCache struct {
	mu  sync.Mutex
	ids []int64
}

func NewAssetCache(ids ...int64) *AssetCache {
	return &AssetCache{ids: slices.Clone(ids)}
}

// Seed replaces the cache contents with the uploader's inventory.
func (c *AssetCache) Seed(ctx context.Context, lister InventoryLister, userID int64) error {
	ids, err := lister.ListInventory(ctx, userID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.ids = ids
	c.mu.Unlock()
	return nil
}

func (c *AssetCache) Add(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, id)
}

func (c *AssetCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

func (c *AssetCache) Snapshot() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.ids)
}

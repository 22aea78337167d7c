// Package gate owns key authorization state: which users and assets a bearer
// key speaks for, and how many assets it may hold.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"assetgate/internal/auth"
	"assetgate/internal/clock"
	"assetgate/internal/models"
	"assetgate/internal/store"
)

// DefaultAssetLimit is the number of assets one key may hold.
const DefaultAssetLimit = 5

const keyCreateAttempts = 5

var (
	// ErrQuotaExceeded is returned by CheckQuota when a key is at its limit.
	ErrQuotaExceeded = errors.New("asset limit reached")
	// ErrTooManyAssets is returned when a save names more assets than allowed.
	ErrTooManyAssets = errors.New("too many assets for one key")
	// ErrKeyNotFound is returned by Update for keys that are not stored.
	ErrKeyNotFound = store.ErrKeyNotFound
	// ErrAssetClaimed is returned when a save names an asset another key holds.
	ErrAssetClaimed = store.ErrAssetClaimed
)

// Config configures a Gate.
type Config struct {
	Limit  int
	Clock  clock.Clock
	Logger *slog.Logger
}

// Gate is the only writer of key authorization state.
type Gate struct {
	store  store.KeyStore
	limit  int
	clock  clock.Clock
	logger *slog.Logger
}

func New(keys store.KeyStore, cfg Config) *Gate {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultAssetLimit
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: keys, limit: limit, clock: clk, logger: logger}
}

// Limit returns the per-key asset cap.
func (g *Gate) Limit() int { return g.limit }

// Lookup resolves key to its grant. Malformed and unknown keys both report
// ok=false; malformed keys never reach storage.
func (g *Gate) Lookup(ctx context.Context, key string) (models.Grant, bool, error) {
	if !auth.IsValidKey(key) {
		return models.Grant{}, false, nil
	}
	grant, err := g.store.GetGrant(ctx, key)
	if err != nil {
		return models.Grant{}, false, fmt.Errorf("lookup key: %w", err)
	}
	if grant == nil {
		return models.Grant{}, false, nil
	}
	return *grant, true, nil
}

// CheckQuota fails with ErrQuotaExceeded when grant cannot take another asset.
func (g *Gate) CheckQuota(grant models.Grant) error {
	if len(grant.Assets) >= g.limit {
		return fmt.Errorf("%w: %d of %d", ErrQuotaExceeded, len(grant.Assets), g.limit)
	}
	return nil
}

// Authorizes reports whether grant covers assetID.
func (g *Gate) Authorizes(grant models.Grant, assetID int64) bool {
	return grant.HasAsset(assetID)
}

// Create stores a fresh key with no users or assets and returns it.
func (g *Gate) Create(ctx context.Context) (string, error) {
	for attempt := 0; attempt < keyCreateAttempts; attempt++ {
		key, err := auth.GenerateKey()
		if err != nil {
			return "", err
		}
		err = g.store.CreateKey(ctx, key, g.clock.Now())
		if errors.Is(err, store.ErrKeyExists) {
			continue
		}
		if err != nil {
			return "", err
		}
		g.logger.Info("key created")
		return key, nil
	}
	return "", fmt.Errorf("unable to generate unique key")
}

// Save upserts key with exactly users and assets.
func (g *Gate) Save(ctx context.Context, key string, users, assets []int64) error {
	if !auth.IsValidKey(key) {
		return fmt.Errorf("malformed key")
	}
	if countDistinct(assets) > g.limit {
		return fmt.Errorf("%w: %d > %d", ErrTooManyAssets, countDistinct(assets), g.limit)
	}
	return g.store.SaveGrant(ctx, models.Grant{Key: key, Users: users, Assets: assets}, g.clock.Now())
}

// Update replaces whichever of users and assets is non-nil, keeping the
// stored value for the other. It returns ErrKeyNotFound for unknown keys.
func (g *Gate) Update(ctx context.Context, key string, users, assets []int64) (models.Grant, error) {
	current, ok, err := g.Lookup(ctx, key)
	if err != nil {
		return models.Grant{}, err
	}
	if !ok {
		return models.Grant{}, ErrKeyNotFound
	}
	if users == nil {
		users = current.Users
	}
	if assets == nil {
		assets = current.Assets
	}
	if err := g.Save(ctx, key, users, assets); err != nil {
		return models.Grant{}, err
	}
	updated, _, err := g.Lookup(ctx, key)
	return updated, err
}

// AppendAsset records a newly created asset against key.
func (g *Gate) AppendAsset(ctx context.Context, key string, assetID int64) error {
	return g.store.AppendAsset(ctx, key, assetID, g.clock.Now())
}

// Delete removes key. It reports false when the key did not exist.
func (g *Gate) Delete(ctx context.Context, key string) (bool, error) {
	if !auth.IsValidKey(key) {
		return false, nil
	}
	return g.store.DeleteKey(ctx, key)
}

// List returns every stored key with its grant.
func (g *Gate) List(ctx context.Context) ([]models.Grant, error) {
	return g.store.ListGrants(ctx)
}

// AssetIDs returns every asset id held by any key.
func (g *Gate) AssetIDs(ctx context.Context) ([]int64, error) {
	return g.store.ListAssetIDs(ctx)
}

func countDistinct(ids []int64) int {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return len(slices.Compact(sorted))
}

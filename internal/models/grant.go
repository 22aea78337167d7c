package models

import "slices"

// Grant is the authorization state attached to one key: the external
// users it speaks for and the assets it may upload or modify.
type Grant struct {
	Key    string  `json:"key"`
	Users  []int64 `json:"user_ids"`
	Assets []int64 `json:"asset_ids"`
}

// HasAsset reports whether assetID is in the grant's asset set.
func (g Grant) HasAsset(assetID int64) bool {
	return slices.Contains(g.Assets, assetID)
}

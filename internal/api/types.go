package api

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// KeySummary is one entry of the admin key listing. Both fields are
// comma-separated id lists.
type KeySummary struct {
	UserIDs  string `json:"userIds"`
	AssetIDs string `json:"assetIds"`
}

// KeyListResponse maps each key to its users and assets.
type KeyListResponse map[string]KeySummary

// KeyUpdateRequest replaces a key's users, assets, or both. An omitted or
// null field keeps the stored value.
type KeyUpdateRequest struct {
	UserIDs  *[]int64 `json:"userIds,omitempty"`
	AssetIDs *[]int64 `json:"assetIds,omitempty"`
}

// KeyResponse is the state of one key after a change.
type KeyResponse struct {
	Key      string  `json:"key"`
	UserIDs  []int64 `json:"userIds"`
	AssetIDs []int64 `json:"assetIds"`
}

// KeyDeleteResponse reports a removed key.
type KeyDeleteResponse struct {
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
}

// RevisionResponse is one archived upload of an asset.
type RevisionResponse struct {
	ID        int64  `json:"id"`
	AssetID   int64  `json:"asset_id"`
	Digest    string `json:"digest"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Assets int    `json:"assets"`
}

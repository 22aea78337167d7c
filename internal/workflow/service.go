// Package workflow runs the gated asset upload flow: authorize the bearer key,
// enforce its quota, submit the model to the asset service, wait for the
// operation, then grant the experience permission to use the result.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"assetgate/internal/models"
	"assetgate/internal/updatebody"
	"assetgate/internal/upstream"
)

const (
	stepSubmit  = "Error starting upload"
	stepPoll    = "Error uploading asset"
	stepGrant   = "Error authorising asset"
	stepContent = "Error fetching asset content"

	modelAssetType    = "Model"
	displayNamePrefix = "User Upload "
)

// AssetAPI is the subset of the asset service the workflow drives.
type AssetAPI interface {
	InventoryLister
	CreateAsset(ctx context.Context, form *upstream.AssetForm) (upstream.AssetOperation, error)
	UpdateAsset(ctx context.Context, assetID int64, form *upstream.AssetForm) (upstream.AssetOperation, error)
	WaitForAsset(ctx context.Context, op upstream.AssetOperation) (upstream.AssetResult, error)
	GrantUse(ctx context.Context, universeID, assetID int64) error
	AssetLocation(ctx context.Context, assetID int64) (string, error)
	DownloadContent(ctx context.Context, location string) ([]byte, error)
}

// Keys resolves and mutates key authorization state.
type Keys interface {
	Lookup(ctx context.Context, key string) (models.Grant, bool, error)
	CheckQuota(grant models.Grant) error
	AppendAsset(ctx context.Context, key string, assetID int64) error
}

var _ AssetAPI = (*upstream.Cloud)(nil)

// Config configures a Service.
type Config struct {
	UploaderUserID int64
	UniverseID     int64
	Archive        *Archive
	Logger         *slog.Logger
}

// Service runs asset workflows for bearer keys.
type Service struct {
	api        AssetAPI
	keys       Keys
	cache      *AssetCache
	archive    *Archive
	uploaderID int64
	universeID int64
	logger     *slog.Logger
	newForm    func(metadata any, content []byte) (*upstream.AssetForm, error)
}

func New(api AssetAPI, keys Keys, cache *AssetCache, cfg Config) *Service {
	if cache == nil {
		cache = NewAssetCache()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:        api,
		keys:       keys,
		cache:      cache,
		archive:    cfg.Archive,
		uploaderID: cfg.UploaderUserID,
		universeID: cfg.UniverseID,
		logger:     logger,
		newForm:    upstream.NewAssetForm,
	}
}

// Cache returns the available-assets cache owned by the service.
func (s *Service) Cache() *AssetCache { return s.cache }

// Authorize resolves a bearer key to its grant.
func (s *Service) Authorize(ctx context.Context, bearer string) (models.Grant, error) {
	if bearer == "" {
		return models.Grant{}, newError(KindUnauthorized, "missing bearer key", nil)
	}
	grant, ok, err := s.keys.Lookup(ctx, bearer)
	if err != nil {
		return models.Grant{}, newError(KindInternal, "key lookup failed", err)
	}
	if !ok {
		return models.Grant{}, newError(KindForbidden, "invalid key", ErrInvalidKey)
	}
	return grant, nil
}

// ListAssets returns the asset ids the key may upload to.
func (s *Service) ListAssets(ctx context.Context, bearer string) ([]int64, error) {
	grant, err := s.Authorize(ctx, bearer)
	if err != nil {
		return nil, err
	}
	if grant.Assets == nil {
		return []int64{}, nil
	}
	return grant.Assets, nil
}

// Content downloads the decoded model bytes of an asset the key holds.
func (s *Service) Content(ctx context.Context, bearer string, assetID int64) ([]byte, error) {
	grant, err := s.Authorize(ctx, bearer)
	if err != nil {
		return nil, err
	}
	if !grant.HasAsset(assetID) {
		return nil, newError(KindForbidden, "asset is not authorized for this key", nil)
	}

	location, err := s.api.AssetLocation(ctx, assetID)
	if err != nil {
		return nil, upstreamError(stepContent, err)
	}
	data, err := s.api.DownloadContent(ctx, location)
	if err != nil {
		return nil, upstreamError(stepContent, err)
	}
	return data, nil
}

// Create uploads content as a new asset owned by the uploader account and
// returns its id. The key must be under its asset limit.
func (s *Service) Create(ctx context.Context, bearer string, content []byte) (int64, error) {
	ctx = context.WithoutCancel(ctx)

	grant, err := s.Authorize(ctx, bearer)
	if err != nil {
		return 0, err
	}
	if err := s.keys.CheckQuota(grant); err != nil {
		return 0, newError(KindQuotaExceeded, "asset limit reached for this key", err)
	}

	form, err := s.newForm(upstream.CreateAssetRequest{
		AssetType:   modelAssetType,
		DisplayName: displayNamePrefix + strconv.Itoa(s.cache.Len()),
		Description: joinUsers(grant.Users),
		CreationContext: upstream.CreationContext{
			Creator: upstream.Creator{UserID: s.uploaderID},
		},
	}, content)
	if err != nil {
		return 0, newError(KindInternal, "build upload form", err)
	}

	op, err := s.api.CreateAsset(ctx, form)
	if err != nil {
		return 0, upstreamError(stepSubmit, err)
	}
	result, err := s.api.WaitForAsset(ctx, op)
	if err != nil {
		return 0, upstreamError(stepPoll, err)
	}
	assetID := int64(result.AssetID)
	if assetID <= 0 {
		return 0, newError(KindUpstream, stepPoll+": operation returned no asset id", nil)
	}
	if err := s.api.GrantUse(ctx, s.universeID, assetID); err != nil {
		return 0, upstreamError(stepGrant, err)
	}

	if err := s.keys.AppendAsset(ctx, grant.Key, assetID); err != nil {
		s.logger.Error("created asset could not be recorded", "asset_id", assetID, "error", err)
		return 0, newError(KindInternal, fmt.Sprintf("asset %d created but not recorded", assetID), err)
	}
	s.cache.Add(assetID)
	s.record(ctx, grant.Key, assetID, content)

	s.logger.Info("asset created", "asset_id", assetID, "assets_held", len(grant.Assets)+1)
	return assetID, nil
}

// Update replaces the content of an asset the key holds. body is the 8-byte
// little-endian float64 asset id followed by the model bytes.
func (s *Service) Update(ctx context.Context, bearer string, body []byte) (int64, error) {
	ctx = context.WithoutCancel(ctx)

	grant, err := s.Authorize(ctx, bearer)
	if err != nil {
		return 0, err
	}
	if len(body) < updatebody.PrefixBytes {
		return 0, newError(KindInvalidPayload, fmt.Sprintf("body must start with a %d-byte asset id", updatebody.PrefixBytes), nil)
	}
	assetID, content, ok := updatebody.Split(body)
	if !ok || !grant.HasAsset(assetID) {
		return 0, newError(KindForbidden, "asset is not authorized for this key", nil)
	}

	form, err := s.newForm(upstream.UpdateAssetRequest{
		AssetID:     assetID,
		Description: joinUsers(grant.Users),
	}, content)
	if err != nil {
		return 0, newError(KindInternal, "build upload form", err)
	}

	op, err := s.api.UpdateAsset(ctx, assetID, form)
	if err != nil {
		return 0, upstreamError(stepSubmit, err)
	}
	if _, err := s.api.WaitForAsset(ctx, op); err != nil {
		return 0, upstreamError(stepPoll, err)
	}
	if err := s.api.GrantUse(ctx, s.universeID, assetID); err != nil {
		return 0, upstreamError(stepGrant, err)
	}
	s.record(ctx, grant.Key, assetID, content)

	s.logger.Info("asset updated", "asset_id", assetID)
	return assetID, nil
}

// Revisions lists archived uploads of an asset the key holds.
func (s *Service) Revisions(ctx context.Context, bearer string, assetID int64, limit int) ([]models.AssetRevision, error) {
	grant, err := s.Authorize(ctx, bearer)
	if err != nil {
		return nil, err
	}
	if !grant.HasAsset(assetID) {
		return nil, newError(KindForbidden, "asset is not authorized for this key", nil)
	}
	if s.archive == nil {
		return []models.AssetRevision{}, nil
	}
	revs, err := s.archive.Revisions(ctx, assetID, limit)
	if err != nil {
		return nil, newError(KindInternal, "list revisions", err)
	}
	return revs, nil
}

// record archives content; failures never fail the upload.
func (s *Service) record(ctx context.Context, key string, assetID int64, content []byte) {
	if s.archive == nil {
		return
	}
	if _, err := s.archive.Record(ctx, key, assetID, content); err != nil {
		s.logger.Warn("archive upload failed", "asset_id", assetID, "error", err)
	}
}

func joinUsers(users []int64) string {
	parts := make([]string, len(users))
	for i, id := range users {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// AsError extracts a workflow error from err.
func AsError(err error) (*Error, bool) {
	var wfErr *Error
	if errors.As(err, &wfErr) {
		return wfErr, true
	}
	return nil, false
}

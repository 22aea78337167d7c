package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"assetgate/internal/api"
	"assetgate/internal/gate"
)

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	grants, err := s.gate.List(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := make(api.KeyListResponse, len(grants))
	for _, grant := range grants {
		resp[grant.Key] = api.KeySummary{
			UserIDs:  joinIDs(grant.Users),
			AssetIDs: joinIDs(grant.Assets),
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	key, err := s.gate.Create(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, key)
}

func (s *Server) handleUpdateKey(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("key"))
	_, ok, err := s.gate.Lookup(r.Context(), key)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !ok {
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("key not found"), ErrCodeKeyNotFound))
		return
	}

	var req api.KeyUpdateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	var users, assets []int64
	if req.UserIDs != nil {
		users = nonNil(*req.UserIDs)
	}
	if req.AssetIDs != nil {
		assets = nonNil(*req.AssetIDs)
	}

	grant, err := s.gate.Update(r.Context(), key, users, assets)
	switch {
	case err == nil:
	case errors.Is(err, gate.ErrKeyNotFound):
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("key not found"), ErrCodeKeyNotFound))
		return
	case errors.Is(err, gate.ErrTooManyAssets):
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeTooManyAssets))
		return
	case errors.Is(err, gate.ErrAssetClaimed):
		s.writeErrorReq(w, r, http.StatusConflict, conflictCode(err, ErrCodeAssetClaimed))
		return
	default:
		s.writeStoreError(w, r, err)
		return
	}

	s.log().Info("key updated", "users", len(grant.Users), "assets", len(grant.Assets))
	s.writeJSON(w, http.StatusOK, api.KeyResponse{
		Key:      grant.Key,
		UserIDs:  nonNil(grant.Users),
		AssetIDs: nonNil(grant.Assets),
	})
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("key"))
	deleted, err := s.gate.Delete(r.Context(), key)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !deleted {
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("key not found"), ErrCodeKeyNotFound))
		return
	}
	s.log().Info("key deleted")
	s.writeJSON(w, http.StatusOK, api.KeyDeleteResponse{Key: key, Deleted: true})
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

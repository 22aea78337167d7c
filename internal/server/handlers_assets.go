package server

import (
	"net/http"
	"strconv"
	"time"

	"assetgate/internal/api"
)

const defaultRevisionLimit = 50

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	if !s.allowAuthAttempt(w, r) {
		return
	}
	ids, err := s.workflow.ListAssets(r.Context(), bearerToken(r))
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleAssetContent(w http.ResponseWriter, r *http.Request) {
	assetID, err := pathAssetID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !s.allowAuthAttempt(w, r) {
		return
	}
	data, err := s.workflow.Content(r.Context(), bearerToken(r), assetID)
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log().Debug("write asset content", "asset_id", assetID, "error", err)
	}
}

func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if !s.allowAuthAttempt(w, r) {
		return
	}
	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		assetID, err := s.workflow.Create(r.Context(), bearerToken(r), body)
		if err != nil {
			s.writeWorkflowError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, assetID)
	})
}

func (s *Server) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if !s.allowAuthAttempt(w, r) {
		return
	}
	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		assetID, err := s.workflow.Update(r.Context(), bearerToken(r), body)
		if err != nil {
			s.writeWorkflowError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, assetID)
	})
}

func (s *Server) handleAssetRevisions(w http.ResponseWriter, r *http.Request) {
	assetID, err := pathAssetID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	limit, err := queryIntDefault(r, "limit", defaultRevisionLimit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !s.allowAuthAttempt(w, r) {
		return
	}
	revs, err := s.workflow.Revisions(r.Context(), bearerToken(r), assetID, limit)
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}

	resp := make([]api.RevisionResponse, 0, len(revs))
	for _, rev := range revs {
		resp = append(resp, api.RevisionResponse{
			ID:        rev.ID,
			AssetID:   rev.AssetID,
			Digest:    rev.Digest,
			SizeBytes: rev.SizeBytes,
			CreatedAt: rev.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

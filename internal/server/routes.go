package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /health", s.handleHealth)

	// Assets, authorized by bearer key.
	mux.HandleFunc("GET /assets", s.handleListAssets)
	mux.HandleFunc("POST /assets", s.handleCreateAsset)
	mux.HandleFunc("PATCH /assets", s.handleUpdateAsset)
	mux.HandleFunc("GET /asset-content/{assetId}", s.handleAssetContent)
	mux.HandleFunc("GET /asset-revisions/{assetId}", s.handleAssetRevisions)

	// Key administration, authorized by the admin password.
	mux.HandleFunc("GET /key", s.withAdmin(s.handleListKeys))
	mux.HandleFunc("POST /key", s.withAdmin(s.handleCreateKey))
	mux.HandleFunc("PATCH /key/{key}", s.withAdmin(s.handleUpdateKey))
	mux.HandleFunc("DELETE /key/{key}", s.withAdmin(s.handleDeleteKey))

	return mux
}

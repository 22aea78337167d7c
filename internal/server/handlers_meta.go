package server

import (
	"net/http"

	"assetgate/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok", Assets: s.workflow.Cache().Len()})
}

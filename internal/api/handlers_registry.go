package api

import (
	"net/http"
)

// handleListClusters handles GET /api/clusters
func (s *Server) handleListClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := s.registry.Catalog(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"clusters": clusters})
}

// handleRefreshClusters handles POST /api/clusters/refresh
func (s *Server) handleRefreshClusters(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Invalidate(r.Context()); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/privacy-engine/internal/types"
)

// handleGetSettings handles GET /api/privacy/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	settings, err := s.privacyService.GetSettings(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, settings)
}

// handleUpdateClusterPrivacy handles PUT /api/privacy/clusters/{id}
func (s *Server) handleUpdateClusterPrivacy(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	clusterID := mux.Vars(r)["id"]

	var req struct {
		PrivacyLevel types.PrivacyLevel `json:"privacyLevel"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	result, err := s.privacyService.UpdateClusterPrivacy(r.Context(), userID, clusterID, req.PrivacyLevel)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleToggleCluster handles POST /api/privacy/clusters/{id}/toggle
func (s *Server) handleToggleCluster(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	clusterID := mux.Vars(r)["id"]

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	result, err := s.privacyService.ToggleCluster(r.Context(), userID, clusterID, req.Enabled)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleUpdateSubclusterPrivacy handles PUT /api/privacy/clusters/{id}/subclusters/{sid}
func (s *Server) handleUpdateSubclusterPrivacy(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	clusterID := vars["id"]
	subclusterID := vars["sid"]

	var req struct {
		PrivacyLevel types.PrivacyLevel `json:"privacyLevel"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	result, err := s.privacyService.UpdateSubclusterPrivacy(r.Context(), userID, clusterID, subclusterID, req.PrivacyLevel)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleResetCluster handles POST /api/privacy/clusters/{id}/reset
func (s *Server) handleResetCluster(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	clusterID := mux.Vars(r)["id"]

	result, err := s.privacyService.ResetClusterToDefault(r.Context(), userID, clusterID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleUpdateGlobalPrivacy handles PUT /api/privacy/global
func (s *Server) handleUpdateGlobalPrivacy(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		GlobalPrivacy types.PrivacyLevel `json:"globalPrivacy"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	result, err := s.privacyService.UpdateGlobalPrivacy(r.Context(), userID, req.GlobalPrivacy)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleResolve handles GET /api/privacy/resolve?twinId=&audience=
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var twinID, audienceID *string
	if v := r.URL.Query().Get("twinId"); v != "" {
		twinID = &v
	}
	if v := r.URL.Query().Get("audience"); v != "" {
		audienceID = &v
	}

	matrix, err := s.privacyService.Resolve(r.Context(), userID, twinID, audienceID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, matrix)
}

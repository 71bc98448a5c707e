package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/privacy-engine/internal/service"
)

// handleListTwins handles GET /api/twins
func (s *Server) handleListTwins(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	twins, err := s.twinService.ListTwins(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"twins": twins})
}

// handleCreateTwin handles POST /api/twins
func (s *Server) handleCreateTwin(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req service.CreateTwinInput
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	result, err := s.twinService.CreateTwin(r.Context(), userID, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// handleGetTwin handles GET /api/twins/{id}
func (s *Server) handleGetTwin(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	twinID := mux.Vars(r)["id"]

	twin, err := s.twinService.GetTwin(r.Context(), userID, twinID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, twin)
}

// handleUpdateTwin handles PUT /api/twins/{id}
func (s *Server) handleUpdateTwin(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	twinID := mux.Vars(r)["id"]

	var req service.UpdateTwinInput
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	result, err := s.twinService.UpdateTwin(r.Context(), userID, twinID, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleDeleteTwin handles DELETE /api/twins/{id}
func (s *Server) handleDeleteTwin(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	twinID := mux.Vars(r)["id"]

	auditDegraded, err := s.twinService.DeleteTwin(r.Context(), userID, twinID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"deleted":       true,
		"auditDegraded": auditDegraded,
	})
}

// handleActivateTwin handles POST /api/twins/{id}/activate
func (s *Server) handleActivateTwin(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	twinID := mux.Vars(r)["id"]

	result, err := s.twinService.ActivateTwin(r.Context(), userID, twinID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleDeactivateTwin handles POST /api/twins/deactivate
func (s *Server) handleDeactivateTwin(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	deactivatedID, auditDegraded, err := s.twinService.DeactivateTwin(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"deactivatedTwinId": deactivatedID,
		"auditDegraded":     auditDegraded,
	})
}

// handleGetActivationHistory handles GET /api/twins/{id}/history?limit=
func (s *Server) handleGetActivationHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	twinID := mux.Vars(r)["id"]

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid limit parameter", nil)
			return
		}
		limit = parsed
	}

	history, err := s.twinService.GetActivationHistory(r.Context(), userID, twinID, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

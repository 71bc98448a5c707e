package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/privacy-engine/internal/service"
)

// handleListTemplates handles GET /api/templates
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	templates, err := s.templateService.ListTemplates(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"templates": templates})
}

// handleCreateTemplate handles POST /api/templates
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	template, err := s.templateService.CreateTemplate(r.Context(), userID, req.Name)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, template)
}

// handleDeleteTemplate handles DELETE /api/templates/{id}
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	templateID := mux.Vars(r)["id"]

	if err := s.templateService.DeleteTemplate(r.Context(), userID, templateID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// handleApplyTemplate handles POST /api/templates/{id}/apply
func (s *Server) handleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	templateID := mux.Vars(r)["id"]

	result, err := s.templateService.ApplyTemplate(r.Context(), userID, templateID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleListPresets handles GET /api/presets
func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	presets, err := s.templateService.ListPresets(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"presets": presets})
}

// handleCreatePreset handles POST /api/presets
func (s *Server) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req service.CreatePresetInput
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	preset, err := s.templateService.CreatePreset(r.Context(), userID, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, preset)
}

// handleDeletePreset handles DELETE /api/presets/{key}
func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	key := mux.Vars(r)["key"]

	if err := s.templateService.DeletePreset(r.Context(), userID, key); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// handleApplyPreset handles POST /api/presets/{key}/apply
func (s *Server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	key := mux.Vars(r)["key"]

	result, err := s.templateService.ApplyPreset(r.Context(), userID, key)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

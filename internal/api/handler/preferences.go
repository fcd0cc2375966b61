package handler

import (
	"net/http"

	"github.com/Rrens/flagr/internal/api/middleware"
	"github.com/Rrens/flagr/internal/api/response"
	"github.com/Rrens/flagr/internal/service"
)

type PreferencesHandler struct {
	prefs *service.PreferencesService
}

func NewPreferencesHandler(prefs *service.PreferencesService) *PreferencesHandler {
	return &PreferencesHandler{prefs: prefs}
}

type sidebarState struct {
	Expanded *bool `json:"expanded" validate:"required"`
}

// GetSidebar returns whether the sidebar is expanded
func (h *PreferencesHandler) GetSidebar(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	expanded := h.prefs.SidebarExpanded(r.Context(), userID)
	response.OK(w, sidebarState{Expanded: &expanded})
}

// PutSidebar stores the sidebar state
func (h *PreferencesHandler) PutSidebar(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req sidebarState
	if !decode(w, r, &req) {
		return
	}

	if err := h.prefs.SetSidebarExpanded(r.Context(), userID, *req.Expanded); err != nil {
		response.InternalError(w, "failed to save preference")
		return
	}
	response.OK(w, req)
}

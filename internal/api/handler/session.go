package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Rrens/flagr/internal/api/middleware"
	"github.com/Rrens/flagr/internal/api/response"
	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/service"
	"github.com/Rrens/flagr/internal/session"
)

// SessionList is the session list together with the active selection
type SessionList struct {
	Sessions []domain.ChatSession `json:"sessions"`
	ActiveID string               `json:"activeId"`
}

type SessionHandler struct {
	stores service.StoreLookup
}

func NewSessionHandler(stores service.StoreLookup) *SessionHandler {
	return &SessionHandler{stores: stores}
}

// List returns all sessions of the user, newest first
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	st, ok := h.store(w, r)
	if !ok {
		return
	}
	response.OK(w, listOf(st))
}

// Create starts a new chat and makes it active
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	st, ok := h.store(w, r)
	if !ok {
		return
	}
	response.Created(w, st.Create(r.Context()))
}

// Get returns one session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, ok := h.store(w, r)
	if !ok {
		return
	}

	sess, err := st.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	response.OK(w, sess)
}

// Activate switches the active session
func (h *SessionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	st, ok := h.store(w, r)
	if !ok {
		return
	}

	if err := st.SwitchActive(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeSessionError(w, err)
		return
	}
	response.OK(w, map[string]string{"activeId": st.ActiveID()})
}

// Rename changes a session title
func (h *SessionHandler) Rename(w http.ResponseWriter, r *http.Request) {
	st, ok := h.store(w, r)
	if !ok {
		return
	}

	var req struct {
		Title string `json:"title" validate:"required,max=200"`
	}
	if !decode(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "sessionID")
	if err := st.Rename(r.Context(), id, req.Title); err != nil {
		writeSessionError(w, err)
		return
	}

	sess, err := st.Get(id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	response.OK(w, sess)
}

// Delete removes a session and returns the resulting list
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	st, ok := h.store(w, r)
	if !ok {
		return
	}

	if err := st.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeSessionError(w, err)
		return
	}
	response.OK(w, listOf(st))
}

func (h *SessionHandler) store(w http.ResponseWriter, r *http.Request) (*session.Store, bool) {
	return userStore(w, r, h.stores)
}

func userStore(w http.ResponseWriter, r *http.Request, stores service.StoreLookup) (*session.Store, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return nil, false
	}

	st, ok := stores.Lookup(userID)
	if !ok {
		response.Unauthorized(w, service.ErrSessionsNotLoaded.Error())
		return nil, false
	}
	return st, true
}

func listOf(st *session.Store) SessionList {
	return SessionList{Sessions: st.Sessions(), ActiveID: st.ActiveID()}
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, session.ErrEmptyTitle), errors.Is(err, service.ErrEmptyMessage):
		response.BadRequest(w, err.Error())
	case errors.Is(err, service.ErrSessionBusy):
		response.Conflict(w, err.Error())
	case errors.Is(err, service.ErrSessionsNotLoaded):
		response.Unauthorized(w, err.Error())
	default:
		response.InternalError(w, err.Error())
	}
}

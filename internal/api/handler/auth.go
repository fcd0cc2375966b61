package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/flagr/internal/api/middleware"
	"github.com/Rrens/flagr/internal/api/response"
	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input domain.UserCreate
	if !decode(w, r, &input) {
		return
	}

	user, err := h.authService.Register(r.Context(), input)
	if errors.Is(err, domain.ErrEmailTaken) {
		response.Conflict(w, err.Error())
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("registration failed")
		response.InternalError(w, "failed to register user")
		return
	}

	response.Created(w, user)
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input domain.UserLogin
	if !decode(w, r, &input) {
		return
	}

	tokens, err := h.authService.Login(r.Context(), input)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		response.Unauthorized(w, err.Error())
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("login failed")
		response.InternalError(w, "failed to sign in")
		return
	}

	response.OK(w, tokens)
}

// Refresh handles token refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var input struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	if !decode(w, r, &input) {
		return
	}

	tokens, err := h.authService.Refresh(r.Context(), input.RefreshToken)
	if err != nil {
		response.Unauthorized(w, err.Error())
		return
	}

	response.OK(w, tokens)
}

// Logout drops the caller's loaded sessions
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	h.authService.Logout(r.Context(), userID)
	response.NoContent(w)
}

// Me returns the current authenticated user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	response.OK(w, user)
}

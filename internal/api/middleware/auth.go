package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/flagr/internal/api/response"
	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/repository/redis"
)

type contextKey string

const userKey contextKey = "user"

// Authenticator resolves a bearer token to a signed-in user
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (domain.User, error)
}

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	auth Authenticator
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Authenticate validates the bearer token and stores the user in the
// request context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Unauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			response.Unauthorized(w, "invalid authorization header format")
			return
		}

		user, err := m.auth.Authenticate(r.Context(), parts[1])
		if err != nil {
			response.Unauthorized(w, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// WithUser returns a context carrying user
func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUser gets the authenticated user from context
func GetUser(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userKey).(domain.User)
	return user, ok
}

// GetUserID gets the authenticated user's id from context
func GetUserID(ctx context.Context) (string, bool) {
	user, ok := GetUser(ctx)
	if !ok || user.ID == "" {
		return "", false
	}
	return user.ID, true
}

// Limiter decides whether a request under key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (redis.Decision, error)
}

// RateLimitMiddleware handles rate limiting
type RateLimitMiddleware struct {
	limiter Limiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// Limit applies rate limiting based on user ID
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		if !ok {
			response.Unauthorized(w, "unauthorized")
			return
		}

		decision, err := m.limiter.Allow(r.Context(), userID)
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			response.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

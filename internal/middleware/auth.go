package middleware

import (
	"context"
	"net/http"
	"strings"

	"ecofinds/internal/domain"
	"ecofinds/internal/repository"

	"go.uber.org/zap"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
)

// TokenAuthenticator resolves an opaque bearer token to its user. The token
// is validated by lookup, not by decoding claims.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, tokenKey string) (*domain.User, error)
}

// AuthMiddleware validates opaque bearer tokens against the token store and
// stores the caller identity in the request context
func AuthMiddleware(authenticator TokenAuthenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Debug("Invalid authorization header format")
				RespondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			user, err := authenticator.Authenticate(r.Context(), parts[1])
			if err != nil {
				if err == repository.ErrAuthTokenNotFound || err == repository.ErrUserNotFound {
					logger.Debug("Unknown token presented")
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
					return
				}
				logger.Error("Token lookup failed", zap.Error(err))
				RespondWithError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, user.ID.String())
			ctx = context.WithValue(ctx, UserRoleKey, user.Role)

			logger.Debug("User authenticated",
				zap.String("user_id", user.ID.String()),
				zap.String("role", user.Role),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetUserRole extracts user role from request context
func GetUserRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(UserRoleKey).(string)
	return role, ok
}

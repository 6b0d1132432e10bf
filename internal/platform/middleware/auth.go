// Package middleware holds the HTTP middleware shared by every router.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "podium/pkg/domain"
	"podium/pkg/requestcontext"
)

// AdminClaims is what RequireAdmin needs from a validated token.
type AdminClaims struct {
	AdminID id.AdminID
	Role    string
}

// RoleAdmin is the only role allowed through RequireAdmin.
const RoleAdmin = "admin"

// AdminTokenValidator validates a bearer token.
type AdminTokenValidator interface {
	ValidateToken(tokenString string) (*AdminClaims, error)
}

// RequireAdmin authenticates the moderator and stores their id in the
// request context. Missing or invalid tokens get 401, other roles get 403.
func RequireAdmin(validator AdminTokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token", "request_id", requestID)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}
			if claims.Role != RoleAdmin || claims.AdminID.IsNil() {
				logger.WarnContext(ctx, "forbidden - not an admin",
					"role", claims.Role,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Admin role required")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithAdminID(ctx, claims.AdminID)))
		})
	}
}

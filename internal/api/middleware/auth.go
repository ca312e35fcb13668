package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/nflow-health/nflow/internal/auth"
	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/pkg/errors"
	"github.com/nflow-health/nflow/internal/pkg/utils"
)

// ContextKey is a custom type for context keys
type ContextKey string

const (
	// UserIDKey is the context key for user ID
	UserIDKey ContextKey = "userID"
	// UsernameKey is the context key for the username
	UsernameKey ContextKey = "username"
)

// SessionCookie carries the access token for browser clients
const SessionCookie = "session"

// AccountLookup reads an account from storage
type AccountLookup interface {
	GetByID(ctx context.Context, id int64) (*account.Account, error)
}

// tokenFromRequest prefers a Bearer header and falls back to the session cookie
func tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func withClaims(w http.ResponseWriter, r *http.Request, claims *auth.Claims) *http.Request {
	ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, UsernameKey, claims.Username)

	AddLogField(w, "user_id", claims.UserID)
	return r.WithContext(ctx)
}

// AuthMiddleware returns a middleware that requires a valid session token
func AuthMiddleware(sessionSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := tokenFromRequest(r)
			if tokenStr == "" {
				utils.WriteError(w, errors.Unauthorized("Not authenticated"))
				return
			}

			claims, err := auth.ParseClaims(tokenStr, sessionSecret, auth.KindAccess)
			if err != nil {
				utils.WriteError(w, errors.Unauthorized("Invalid or expired session"))
				return
			}

			next.ServeHTTP(w, withClaims(w, r, claims))
		})
	}
}

// RequireAdmin rejects callers whose stored account is not an active admin.
// The role in the token is not trusted; promotions and demotions apply on
// the next request.
func RequireAdmin(accounts AccountLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r)
			if !ok {
				utils.WriteError(w, errors.Unauthorized("Not authenticated"))
				return
			}

			a, err := accounts.GetByID(r.Context(), userID)
			if err != nil {
				if errors.IsNotFound(err) {
					utils.WriteError(w, errors.Unauthorized("Account no longer exists"))
					return
				}
				utils.WriteErr(w, err)
				return
			}
			if !a.IsActive || !a.IsAdmin() {
				utils.WriteError(w, errors.Forbidden("Admin access required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetUserID extracts the user ID from the request context
func GetUserID(r *http.Request) (int64, bool) {
	userID, ok := r.Context().Value(UserIDKey).(int64)
	return userID, ok
}

// GetUsername extracts the username from the request context
func GetUsername(r *http.Request) (string, bool) {
	username, ok := r.Context().Value(UsernameKey).(string)
	return username, ok
}

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tubestream/backend/internal/auth"
	"github.com/tubestream/backend/internal/logging"
	"github.com/tubestream/backend/internal/models"
	"github.com/tubestream/backend/internal/repositories"
)

// authScheme is the Authorization header prefix. The original API shipped
// with this literal instead of "Bearer"; issuer and verifier agree on it.
const authScheme = "JWT "

// TokenVerifier validates bearer tokens and returns the embedded identity.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// UserResolver loads the live account record behind a verified token.
type UserResolver interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

type identityCtxKey struct{}

// IdentityFromContext returns the authenticated user attached by RequireAuth
// or OptionalAuth. ok is false for anonymous requests.
func IdentityFromContext(ctx context.Context) (models.PublicUser, bool) {
	identity, ok := ctx.Value(identityCtxKey{}).(models.PublicUser)
	return identity, ok
}

// ContextWithIdentity attaches an authenticated identity to the context.
func ContextWithIdentity(ctx context.Context, identity models.PublicUser) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, identity)
}

// RequireAuth rejects requests that do not carry a valid bearer token for a
// live account. On success the password-stripped identity is attached to the
// request context. Exactly one user lookup happens per authenticated request.
func RequireAuth(verifier TokenVerifier, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, errMsg := resolveIdentity(r, verifier, users)
			if errMsg != "" {
				rejectUnauthorized(w, r, errMsg)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// OptionalAuth runs the same verification as RequireAuth but never rejects:
// any failure simply leaves the request anonymous. Used by endpoints whose
// response varies by viewer without requiring login.
func OptionalAuth(verifier TokenVerifier, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, errMsg := resolveIdentity(r, verifier, users)
			if errMsg != "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// resolveIdentity walks the header-scheme-verify-resolve steps shared by both
// variants, returning either an identity or the 401 message to emit.
func resolveIdentity(r *http.Request, verifier TokenVerifier, users UserResolver) (models.PublicUser, string) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, authScheme) {
		return models.PublicUser{}, "No token, authorization denied"
	}

	claims, err := verifier.Verify(strings.TrimPrefix(header, authScheme))
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return models.PublicUser{}, "Token has expired"
		}
		return models.PublicUser{}, "Token is not valid"
	}

	user, err := users.FindByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.PublicUser{}, "Token is not valid"
		}
		logging.FromContext(r.Context()).Error("resolve token identity", "userId", claims.UserID, "error", err)
		return models.PublicUser{}, "Token is not valid"
	}

	return user.PublicProfile(), ""
}

func rejectUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	logging.FromContext(r.Context()).Warn("request rejected", "status", http.StatusUnauthorized, "reason", message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// ABOUTME: Bearer token middleware for the fake CRM Web API.
// ABOUTME: Rejects unauthenticated calls and records the caller identity in the request context.

package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	apierrors "github.com/2389/dataloader/internal/errors"
)

type contextKey string

const callerContextKey contextKey = "caller"

// DefaultCaller is the identity recorded for tokens without a "user:" prefix.
const DefaultCaller = "dataloader"

// Middleware requires a bearer token. When expected is non-empty the token must
// equal it; otherwise any non-empty token is accepted.
func Middleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				apierrors.WriteError(w, http.StatusUnauthorized, apierrors.ErrUnauthorized, "Bearer token is required")
				return
			}
			if expected != "" && subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				apierrors.WriteError(w, http.StatusUnauthorized, apierrors.ErrUnauthorized, "Bearer token is invalid")
				return
			}

			ctx := context.WithValue(r.Context(), callerContextKey, callerFromToken(token))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFromRequest derives the caller from the Authorization header without
// validating it. Request logging runs outside the middleware and uses this.
func CallerFromRequest(r *http.Request) string {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return ""
	}
	return callerFromToken(token)
}

// CallerFromContext returns the authenticated caller, or "" outside the middleware.
func CallerFromContext(ctx context.Context) string {
	caller, _ := ctx.Value(callerContextKey).(string)
	return caller
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// "user:NAME" tokens name the caller explicitly.
func callerFromToken(token string) string {
	if name, ok := strings.CutPrefix(token, "user:"); ok && name != "" {
		return name
	}
	return DefaultCaller
}

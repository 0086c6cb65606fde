package pkg

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/aquamarinepk/aqm"
)

// BearerMatches reports whether r carries "Authorization: Bearer <token>".
// An empty token disables the check.
func BearerMatches(r *http.Request, token string) bool {
	if token == "" {
		return true
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) == 1
}

// RequireBearer rejects requests without the shared terminal token.
func RequireBearer(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !BearerMatches(r, token) {
				aqm.RespondError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cutecleansoaps/api/internal/platform/httpx"
)

// StaticTokenMiddleware guards a route group with a single shared bearer token.
// The admin surface is operated by the shop owner only, so a static credential
// compared in constant time is sufficient; rotation happens via Secret Manager.
func StaticTokenMiddleware(token string) func(http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(token))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				httpx.WriteError(r.Context(), w, httpx.NewError("admin_disabled", "admin access is not configured", http.StatusServiceUnavailable))
				return
			}

			presented, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthorized", "missing or invalid bearer token", http.StatusUnauthorized))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

// Package auth enforces a static bearer token on the API.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/star/tleprop/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// publicPaths never require a token.
var publicPaths = map[string]bool{
	"/healthz":             true,
	"/readyz":              true,
	"/metrics":             true,
	"/api/v1/tle/metadata": true,
}

// queryTokenPrefix marks routes that may pass the token as ?token=, since
// browser websocket clients cannot set headers.
const queryTokenPrefix = "/api/v1/stream/"

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on non-public paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	want := []byte(cfg.Token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok && strings.HasPrefix(r.URL.Path, queryTokenPrefix) {
				token = r.URL.Query().Get("token")
				ok = token != ""
			}
			if !ok || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="tleprop"`)
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package auth

import (
	"net/http"

	authlib "example.com/activities/pkg/auth"
)

// Middleware enforces bearer-token authentication on incoming requests.
type Middleware struct {
	inner authlib.Middleware
}

// NewMiddleware constructs Middleware with validation config. Health and
// metrics endpoints stay public.
func NewMiddleware(cfg Config) Middleware {
	skipper := func(r *http.Request) bool {
		switch r.URL.Path {
		case "/healthz", "/metrics":
			return true
		}
		return false
	}
	return Middleware{inner: authlib.NewMiddleware(cfg, skipper)}
}

// Wrap attaches authentication handling to an http.Handler.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return m.inner.Wrap(next)
}

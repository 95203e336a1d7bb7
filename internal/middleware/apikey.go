package middleware

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyAuth guards the admin surface with a static key checked in constant
// time. An empty configured key locks the surface entirely.
type APIKeyAuth struct {
	key string
}

func NewAPIKeyAuth(key string) *APIKeyAuth {
	return &APIKeyAuth{key: key}
}

func (a *APIKeyAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get("X-API-Key")
		if a.key == "" || presented == "" ||
			subtle.ConstantTimeCompare([]byte(presented), []byte(a.key)) != 1 {
			jsonError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

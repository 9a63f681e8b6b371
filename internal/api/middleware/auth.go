package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/websocket"
)

// Auth requires the X-API-Key header to match apiKey. An empty apiKey
// disables the check. Browsers cannot set headers on a websocket handshake,
// so upgrade requests may pass the key as the api_key query parameter.
func Auth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// preflight requests carry no credentials
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get("X-API-Key")
			if key == "" && websocket.IsWebSocketUpgrade(r) {
				key = r.URL.Query().Get("api_key")
			}
			if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package web

import (
	"net"
	"net/http"

	"github.com/JonMunkholm/gridedit/internal/core"
	"github.com/JonMunkholm/gridedit/internal/logging"
	"github.com/go-chi/chi/v5"
)

// withControlID tags the request context with the control id from the URL
// so every log line of the request, including save batches, carries it.
func withControlID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chi.URLParam(r, "controlID"); id != "" {
			r = r.WithContext(logging.WithControlID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// withRequestMetadata records the client address and user agent for the
// audit log. RemoteAddr has already been rewritten by TrustedRealIP.
func withRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithRequestMetadata(r.Context(), core.RequestMetadata{
			IPAddress: clientIP(r.RemoteAddr),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP strips the port from a host:port address.
func clientIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

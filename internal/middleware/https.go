// Package middleware holds small, composable HTTP wrappers that sit in
// front of the dispatch filter.
package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ForceHTTPS returns middleware that 308-redirects plain-HTTP requests to
// the HTTPS version of the same URL.  Loopback hosts and requests a
// TLS-terminating proxy already marked with X-Forwarded-Proto: https pass
// through unchanged.  With enabled false the middleware is a no-op.
func ForceHTTPS(enabled bool) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		if !enabled {
			return h
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS != nil || isLoopback(stripPort(r.Host)) ||
				strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
				h.ServeHTTP(w, r)
				return
			}

			target := "https://" + r.Host + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusPermanentRedirect)
		})
	}
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// stripPort removes the :port suffix from Host when present.
func stripPort(h string) string {
	if host, _, err := net.SplitHostPort(h); err == nil {
		return strings.Trim(host, "[]")
	}
	return h
}

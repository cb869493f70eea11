package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/sheetflow/internal/core"
)

// clientIP returns the request's client address without the port.
// RemoteAddr was already rewritten by TrustedRealIP for trusted proxies.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// runContext marks the request context as the origin of an HTTP run.
func runContext(r *http.Request) context.Context {
	return core.ContextWithTrigger(r.Context(), core.TriggerHTTP)
}

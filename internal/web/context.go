package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/jsonimport/internal/core"
)

// withRequestMeta adds the client IP and User-Agent to ctx for the import
// audit trail.
func withRequestMeta(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithRequestMeta(ctx, core.RequestMeta{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
}

// clientIP returns the host part of RemoteAddr. TrustedRealIP rewrites
// RemoteAddr for requests from trusted proxies.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

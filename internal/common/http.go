package common

import (
	"net"
	"net/http"
)

// ClientIP returns the host part of RemoteAddr. Proxy headers are not read
// here; chi's middleware.RealIP rewrites RemoteAddr before this runs.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

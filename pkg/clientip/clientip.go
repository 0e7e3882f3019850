// Package clientip derives a coarse client identifier from proxy
// headers. The service runs behind a CDN, so the connection's remote
// address is almost never the real client.
package clientip

import (
	"net/http"
	"strings"
)

// Unknown is returned when no identifying header is present.
const Unknown = "unknown"

// headers in priority order; the first non-empty one wins.
var headers = []string{
	"cf-connecting-ip",
	"x-real-ip",
	"x-forwarded-for",
	"x-client-ip",
}

// FromRequest extracts the client identifier used for rate limiting.
// x-forwarded-for may carry a comma-separated chain; only the first
// entry identifies the client.
func FromRequest(r *http.Request) string {
	for _, h := range headers {
		v := strings.TrimSpace(r.Header.Get(h))
		if v == "" {
			continue
		}
		if i := strings.IndexByte(v, ','); i >= 0 {
			v = strings.TrimSpace(v[:i])
		}
		if v != "" {
			return v
		}
	}
	return Unknown
}

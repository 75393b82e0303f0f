package httputil

import (
	"net"
	"net/http"
)

// ClientIP returns the host portion of the request's remote address.
// RemoteAddr carries an ephemeral port that changes per connection; rate
// limit counters and audit rows must key on the address alone.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package ratelimit

import (
	"net"
	"strings"

	"github.com/dkoretsky/pipegate/internal/pipeline"
)

// FallbackKey buckets requests whose client address cannot be resolved.
const FallbackKey = "127.0.0.1"

// ClientKey derives the rate limit bucket key for a request. By default it
// is the connection's remote IP with the port stripped. In proxy mode the
// first entry of X-Forwarded-For wins when it parses as an IP; otherwise
// the remote IP is used as if the header were absent.
func ClientKey(req *pipeline.Request, proxyMode bool) string {
	if proxyMode {
		if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if first != "" && net.ParseIP(first) != nil {
				return first
			}
		}
	}

	return remoteIP(req.RemoteAddr)
}

// remoteIP strips the port and any IPv6 brackets from an address,
// falling back to the loopback key when nothing usable remains.
func remoteIP(addr string) string {
	if addr == "" {
		return FallbackKey
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")

	if host == "" {
		return FallbackKey
	}

	return host
}

package ratelimit

import (
	"strings"
)

// exempt reports whether a request bypasses rate limiting. Health checks and
// event streams are exempt; a stream is one long-lived request per watcher.
func exempt(path, method string) bool {
	if method != "GET" {
		return false
	}
	return path == "/health" || (strings.HasPrefix(path, "/jobs/") && strings.HasSuffix(path, "/events"))
}

// MatchEndpoint matches a request path and method to an endpoint tier.
// Exempt requests match an unlimited config; nil means the default limit.
// Exact paths win over prefixes, so "/jobs" and "/jobs/{id}/..." are separate tiers.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if exempt(path, method) {
		return &EndpointConfig{Name: "exempt"}
	}

	for i := range configs {
		if configs[i].Method == method && configs[i].Path == path {
			return &configs[i]
		}
	}

	for i := range configs {
		c := &configs[i]
		if c.Method == method && strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			return c
		}
	}

	return nil
}

// Package hostutil normalizes server hosts and builds request URLs.
package hostutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize converts a host string to a full URL.
// - Empty string returns empty
// - localhost/127.0.0.1 defaults to http://
// - Other bare hostnames default to https://
// - Full URLs are used as-is
func Normalize(host string) string {
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	if IsLocalhost(host) {
		return "http://" + host
	}
	return "https://" + host
}

// IsLocalhost returns true if host is localhost, a .localhost subdomain,
// 127.0.0.1, or [::1] (with optional port).
func IsLocalhost(host string) bool {
	hostWithoutPort := host
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		if !strings.HasPrefix(host, "[") || strings.HasPrefix(host, "[::1]:") {
			hostWithoutPort = host[:idx]
		}
	}

	if hostWithoutPort == "localhost" || strings.HasSuffix(hostWithoutPort, ".localhost") {
		return true
	}
	return hostWithoutPort == "127.0.0.1" || hostWithoutPort == "[::1]"
}

// RequireSecureURL rejects plain http:// URLs unless they point at localhost.
// Tokens are only sent over connections that pass this check.
func RequireSecureURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme == "http" && !IsLocalhost(u.Host) {
		return fmt.Errorf("refusing to send credentials over insecure http:// to %s", u.Host)
	}
	return nil
}

// JoinURL joins the base URL, API prefix and request path. Absolute paths
// are returned unchanged, and a path that already carries the prefix is not
// prefixed twice.
func JoinURL(base, prefix, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix != "" && (path == prefix || strings.HasPrefix(path, prefix+"/")) {
		prefix = ""
	}
	return strings.TrimSuffix(base, "/") + prefix + path
}

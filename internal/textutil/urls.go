// internal/textutil/urls.go
package textutil

import (
	"net/url"
	"strings"
)

// Hostname extracts the bare host from a URL or host string, stripping the
// scheme and a leading "www.". Returns "" when nothing host-like remains.
func Hostname(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	parsed, err := url.Parse(candidate)
	if err != nil || parsed.Hostname() == "" {
		// Fall back to manual trimming for values url.Parse rejects
		host := strings.TrimPrefix(strings.TrimPrefix(raw, "http://"), "https://")
		if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
			host = host[:idx]
		}
		return strings.TrimPrefix(strings.ToLower(host), "www.")
	}

	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// NormalizeCitationURL strips the scheme, "www.", query, and fragment from a
// URL while keeping the path. The result is the host plus path form stored on
// citations.
func NormalizeCitationURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	parsed, err := url.Parse(candidate)
	if err != nil || parsed.Hostname() == "" {
		if idx := strings.IndexAny(raw, "?#"); idx >= 0 {
			raw = raw[:idx]
		}
		raw = strings.TrimPrefix(strings.TrimPrefix(raw, "http://"), "https://")
		return strings.TrimSuffix(strings.TrimPrefix(raw, "www."), "/")
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	path := strings.TrimSuffix(parsed.Path, "/")
	return host + path
}

// DistinctHostnames returns the unique hostnames from a list of URLs,
// preserving first-seen order.
func DistinctHostnames(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	var hosts []string
	for _, u := range urls {
		host := Hostname(u)
		if host == "" || seen[host] {
			continue
		}
		seen[host] = true
		hosts = append(hosts, host)
	}
	return hosts
}

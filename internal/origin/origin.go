// Package origin implements browser Origin checks for WebSocket upgrades.
//
// With a configured allowlist an upgrade is admitted when the normalized
// Origin matches an entry (or the entry is "*"). Without an allowlist the
// default policy is same-host: the Origin's host[:port] must equal the
// request's Host header, with default ports treated as equivalent. The
// scheme is deliberately not compared because the relay may sit behind a
// TLS-terminating proxy and observe http while the browser sent https.
package origin

import (
	"net/url"
	"strconv"
	"strings"
)

// Allowed reports whether a request with the given Origin header may be
// upgraded. An empty Origin header is allowed (non-browser clients).
func Allowed(originHeader, requestHost string, allowlist []string) bool {
	trimmed := strings.TrimSpace(originHeader)
	if trimmed == "" {
		return true
	}

	normalized, host, ok := normalize(trimmed)
	if !ok {
		return false
	}

	if len(allowlist) > 0 {
		for _, entry := range allowlist {
			if entry == "*" || entry == normalized {
				return true
			}
		}
		return false
	}

	scheme, _, found := strings.Cut(normalized, "://")
	if !found {
		// "null" origins cannot match a host-based request.
		return false
	}
	reqHost, ok := canonicalHost(requestHost, scheme)
	if !ok {
		return false
	}
	return host == reqHost
}

// normalize validates an Origin header and returns both the normalized
// origin (scheme://host[:port], default ports elided) and its host[:port]
// part. The special value "null" is passed through.
func normalize(originHeader string) (normalized, host string, ok bool) {
	if originHeader == "null" {
		return "null", "", true
	}

	u, err := url.Parse(originHeader)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "", false
	}
	if u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return "", "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false
	}

	host, ok = canonicalHost(u.Host, scheme)
	if !ok {
		return "", "", false
	}
	return scheme + "://" + host, host, true
}

// canonicalHost lowercases a host[:port] authority, validates the port, and
// drops the port when it is the scheme's default. IPv6 literals keep their
// brackets.
func canonicalHost(rawHost, scheme string) (string, bool) {
	hostname, rawPort, ok := splitHostPort(strings.ToLower(strings.TrimSpace(rawHost)))
	if !ok || hostname == "" {
		return "", false
	}

	var port uint64
	if rawPort != "" {
		n, err := strconv.ParseUint(rawPort, 10, 16)
		if err != nil || n == 0 {
			return "", false
		}
		port = n
	}
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		port = 0
	}

	host := hostname
	if strings.Contains(hostname, ":") {
		host = "[" + hostname + "]"
	}
	if port != 0 {
		host += ":" + strconv.FormatUint(port, 10)
	}
	return host, true
}

// splitHostPort splits an authority host[:port]. IPv6 hostnames are returned
// without brackets; the port is returned unvalidated and empty when absent.
func splitHostPort(rawHost string) (hostname, port string, ok bool) {
	if rawHost == "" {
		return "", "", false
	}

	if strings.HasPrefix(rawHost, "[") {
		end := strings.IndexByte(rawHost, ']')
		if end < 0 {
			return "", "", false
		}
		hostname = rawHost[1:end]
		rest := rawHost[end+1:]
		if rest == "" {
			return hostname, "", true
		}
		if !strings.HasPrefix(rest, ":") || len(rest) == 1 {
			return "", "", false
		}
		return hostname, rest[1:], true
	}

	switch strings.Count(rawHost, ":") {
	case 0:
		return rawHost, "", true
	case 1:
		h, p, _ := strings.Cut(rawHost, ":")
		if h == "" || p == "" {
			return "", "", false
		}
		return h, p, true
	default:
		// Unbracketed IPv6 literals are not valid authority components.
		return "", "", false
	}
}

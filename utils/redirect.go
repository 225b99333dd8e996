package utils

import (
	"net"
	"net/url"
	"strings"
)

// IsValidRedirectURL reports whether a click destination is safe to 302 to.
// Only absolute http/https URLs qualify. In production the redirect must not
// become an SSRF-style pivot, so loopback, private and link-local hosts are
// rejected as well.
func IsValidRedirectURL(raw string, production bool) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := u.Hostname()
	if host == "" {
		return false
	}

	if !production {
		return true
	}

	if strings.EqualFold(host, "localhost") {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return false
		}
	}
	return true
}

// AnonymizeIP strips the identifying tail of an address before storage:
// the last octet for IPv4, the trailing 64 bits for IPv6. Values that do
// not parse as an IP (proxy placeholders like "unknown") pass through.
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return ip
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return parsed.Mask(net.CIDRMask(64, 128)).String()
}

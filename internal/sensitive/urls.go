package sensitive

import (
	"net/netip"
	"net/url"
	"strings"
)

// loopbackHostnames are hostname aliases that always resolve to the local
// machine, independent of DNS.
var loopbackHostnames = map[string]bool{
	"localhost":     true,
	"ip6-localhost": true,
	"ip6-loopback":  true,
	"0.0.0.0":       true,
}

// metadataHostnames are well-known cloud metadata service names. Reaching
// them from an agent is a classic credential-exfiltration vector.
var metadataHostnames = map[string]bool{
	"metadata.google.internal": true,
	"metadata.goog":            true,
}

// internalSuffixes mark hostnames that by convention resolve inside the
// local network.
var internalSuffixes = []string{
	".localhost",
	".local",
	".internal",
}

// privateV4Prefixes covers the RFC1918 ranges plus link-local and
// carrier-grade NAT.
var privateV4Prefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("0.0.0.0/8"),
}

// metadataIP is the well-known cloud metadata endpoint shared by AWS, GCP
// and Azure.
var metadataIP = netip.MustParseAddr("169.254.169.254")

// URLReason returns the reason a URL points at an internal or local
// endpoint, or ("", false) for external and unparseable URLs. A parse
// failure here is deliberately "not internal": classification fails open,
// and the execution path fails closed separately (see internal/confirm).
func URLReason(raw string) (string, bool) {
	host := hostnameOf(raw)
	if host == "" {
		return "", false
	}

	if metadataHostnames[host] {
		return "cloud metadata service hostname", true
	}
	if loopbackHostnames[host] {
		return "loopback or localhost alias", true
	}
	for _, suffix := range internalSuffixes {
		if strings.HasSuffix(host, suffix) {
			return "internal hostname suffix " + suffix, true
		}
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// A plain DNS name with no internal markers.
		return "", false
	}
	addr = addr.Unmap()

	if addr == metadataIP {
		return "cloud metadata service address", true
	}
	if addr.IsLoopback() {
		return "loopback address", true
	}
	if addr.Is4() {
		for _, prefix := range privateV4Prefixes {
			if prefix.Contains(addr) {
				return "private or link-local address range", true
			}
		}
		return "", false
	}
	if addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsPrivate() {
		return "private or link-local IPv6 address", true
	}
	if addr == netip.IPv6Unspecified() {
		return "unspecified IPv6 address", true
	}
	return "", false
}

// IsInternalURL reports whether a URL targets a loopback, private-range or
// cloud-metadata endpoint.
func IsInternalURL(raw string) bool {
	_, ok := URLReason(raw)
	return ok
}

// hostnameOf extracts a normalized hostname from a raw URL string. Inputs
// without a scheme ("example.com/path", "10.0.0.1") are accepted, matching
// how agents tend to pass URLs around.
func hostnameOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "http://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Hostname() == "" {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimSuffix(host, ".")
	return host
}

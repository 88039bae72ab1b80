package httpreq

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// outboundValidator guards the http.request node against SSRF and local
// file access via a malicious or malformed target URL: scheme, resolved
// host/IP, and path/query are each checked before a request is dispatched.
type outboundValidator struct {
	allowedSchemes map[string]bool
	blockedHosts   []string
	blockedPaths   []string
}

func newOutboundValidator() *outboundValidator {
	return &outboundValidator{
		allowedSchemes: map[string]bool{"http": true, "https": true},
		blockedHosts: []string{
			"localhost", "127.0.0.1", "::1", "0.0.0.0", "::",
			"::ffff:127.0.0.1", "[::1]", "[::ffff:127.0.0.1]",
		},
		blockedPaths: []string{
			"file://", "../", "..\\", "/etc/", "/proc/", "/sys/",
			"c:/", "c:\\", "\\\\.\\pipe\\",
		},
	}
}

// validate runs the full pipeline: scheme, hostname/resolved-IP, path, and
// query-parameter checks, in that order, short-circuiting on first failure.
func (v *outboundValidator) validate(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if err := v.validateScheme(parsed.Scheme); err != nil {
		return err
	}
	if err := v.validateHost(parsed.Hostname()); err != nil {
		return err
	}
	if err := v.validatePath(parsed.Path); err != nil {
		return err
	}
	for key, values := range parsed.Query() {
		for _, val := range values {
			if err := v.validatePath(val); err != nil {
				return fmt.Errorf("query parameter %q: %w", key, err)
			}
		}
	}
	return nil
}

func (v *outboundValidator) validateScheme(scheme string) error {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme == "" {
		return fmt.Errorf("url scheme is required")
	}
	if !v.allowedSchemes[scheme] {
		return fmt.Errorf("scheme %q is not allowed (only http/https)", scheme)
	}
	return nil
}

func (v *outboundValidator) validateHost(hostname string) error {
	if hostname == "" {
		return fmt.Errorf("url host is required")
	}
	normalized := strings.ToLower(strings.TrimSpace(hostname))
	for _, blocked := range v.blockedHosts {
		if normalized == blocked {
			return fmt.Errorf("host %q is blocked (loopback)", hostname)
		}
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		// DNS failure is left for the actual request to surface.
		return nil
	}
	for _, ip := range ips {
		if err := validateIP(ip); err != nil {
			return err
		}
	}
	return nil
}

func validateIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("ip %s is blocked (loopback)", ip)
	case ip.IsPrivate():
		return fmt.Errorf("ip %s is blocked (private network)", ip)
	case ip.IsLinkLocalUnicast():
		return fmt.Errorf("ip %s is blocked (link-local)", ip)
	case ip.IsMulticast():
		return fmt.Errorf("ip %s is blocked (multicast)", ip)
	case ip.IsUnspecified():
		return fmt.Errorf("ip %s is blocked (unspecified)", ip)
	}
	return nil
}

func (v *outboundValidator) validatePath(p string) error {
	if p == "" {
		return nil
	}
	normalized := strings.ToLower(p)
	for _, pattern := range v.blockedPaths {
		if strings.Contains(normalized, pattern) {
			return fmt.Errorf("path contains blocked pattern %q", pattern)
		}
	}
	for _, encoded := range []string{"%2e%2e/", "%2e%2e%2f", "..%2f", "%2e%2e\\", "%2e%2e%5c", "..%5c"} {
		if strings.Contains(normalized, encoded) {
			return fmt.Errorf("path contains an encoded traversal pattern")
		}
	}
	return nil
}

// Package urlvalidation guards outbound callback URLs against SSRF.
package urlvalidation

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// Resolver maps a host name to its addresses.
type Resolver func(ctx context.Context, host string) ([]netip.Addr, error)

// Option configures URL validation behavior.
type Option func(*validationConfig)

type validationConfig struct {
	allowPrivate bool
	resolve      Resolver
}

// AllowPrivateIPs disables the private IP check. Use only in tests.
func AllowPrivateIPs() Option {
	return func(c *validationConfig) {
		c.allowPrivate = true
	}
}

// WithResolver replaces DNS resolution.
func WithResolver(r Resolver) Option {
	return func(c *validationConfig) {
		c.resolve = r
	}
}

func defaultResolve(ctx context.Context, host string) ([]netip.Addr, error) {
	return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
}

// ValidateCallbackURL checks that a URL is safe to POST results to. Only
// http and https are allowed and every resolved address must be public.
func ValidateCallbackURL(ctx context.Context, rawURL string, opts ...Option) error {
	cfg := validationConfig{resolve: defaultResolve}
	for _, opt := range opts {
		opt(&cfg)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "https" && scheme != "http" {
		return fmt.Errorf("URL scheme %q not allowed; use http or https", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("URL must have a hostname")
	}
	if cfg.allowPrivate {
		return nil
	}

	var addrs []netip.Addr
	if ip, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{ip}
	} else {
		addrs, err = cfg.resolve(ctx, host)
		if err != nil {
			return fmt.Errorf("cannot resolve hostname %q: %w", host, err)
		}
	}

	for _, ip := range addrs {
		if IsPrivate(ip) {
			return fmt.Errorf("URL resolves to private/reserved IP %s", ip)
		}
	}
	return nil
}

var reserved = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("100.64.0.0/10"), // CGN
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// IsPrivate reports whether ip is loopback, private, link-local or otherwise
// reserved. IPv4-mapped IPv6 addresses are checked as IPv4.
func IsPrivate(ip netip.Addr) bool {
	ip = ip.Unmap()
	if ip.IsUnspecified() {
		return true
	}
	for _, p := range reserved {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// DefaultMaxBodyBytes caps ad-hoc request bodies.
const DefaultMaxBodyBytes = 1 << 20

// AdhocOptions controls POST /api/v1/scrape.
type AdhocOptions struct {
	Enabled bool
	// AllowedHosts, when set, is the complete list of hosts ad-hoc sites may
	// point at. When empty, any host that resolves to a public address is
	// accepted.
	AllowedHosts []string
	MaxBodyBytes int64
	// LookupIP defaults to net.DefaultResolver.LookupIPAddr.
	LookupIP func(ctx context.Context, host string) ([]net.IPAddr, error)
}

var errHostBlocked = errors.New("host not allowed")

// Ranges net.IP has no predicate for.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("240.0.0.0/4"),
}

// hostGuard keeps caller-supplied URLs away from the host's own network.
type hostGuard struct {
	allowed map[string]bool
	lookup  func(ctx context.Context, host string) ([]net.IPAddr, error)
}

func newHostGuard(opts AdhocOptions) *hostGuard {
	g := &hostGuard{lookup: opts.LookupIP}
	if g.lookup == nil {
		g.lookup = net.DefaultResolver.LookupIPAddr
	}
	for _, h := range opts.AllowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if g.allowed == nil {
			g.allowed = make(map[string]bool)
		}
		g.allowed[h] = true
	}
	return g
}

// Check returns an error wrapping errHostBlocked when rawURL may not be
// loaded.
func (g *hostGuard) Check(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", errHostBlocked, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", errHostBlocked, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", errHostBlocked)
	}

	if g.allowed != nil {
		if !g.allowed[host] {
			return fmt.Errorf("%w: %q is not in the allowlist", errHostBlocked, host)
		}
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if internalIP(ip) {
			return fmt.Errorf("%w: %q is an internal address", errHostBlocked, host)
		}
		return nil
	}

	addrs, err := g.lookup(ctx, host)
	if err != nil {
		return fmt.Errorf("%w: cannot resolve %q: %v", errHostBlocked, host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("%w: %q has no addresses", errHostBlocked, host)
	}
	for _, addr := range addrs {
		if internalIP(addr.IP) {
			return fmt.Errorf("%w: %q resolves to internal address %s", errHostBlocked, host, addr.IP)
		}
	}
	return nil
}

func internalIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return true
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return true
	}
	addr = addr.Unmap()
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Package netguard implements the SSRF defense applied to every HTTP(S)
// URL the pipeline reaches — evidence fetches in the classifier and
// every redirect hop the HTTP acquire strategy follows.
package netguard

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Allowlist is the internal-mirror allowlist: hostnames (a leading "."
// means suffix match), literal IPs, and CIDR blocks that are exempted
// from the global-unicast requirement.
type Allowlist struct {
	hostSuffixes []string
	exactHosts   map[string]bool
	nets         []*net.IPNet
	ips          map[string]bool
}

// NewAllowlist parses a list of entries as described above.
func NewAllowlist(entries []string) *Allowlist {
	a := &Allowlist{exactHosts: map[string]bool{}, ips: map[string]bool{}}
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if strings.HasPrefix(e, ".") {
			a.hostSuffixes = append(a.hostSuffixes, e)
			continue
		}
		if _, ipnet, err := net.ParseCIDR(e); err == nil {
			a.nets = append(a.nets, ipnet)
			continue
		}
		if ip := net.ParseIP(e); ip != nil {
			a.ips[ip.String()] = true
			continue
		}
		a.exactHosts[e] = true
	}
	return a
}

// AllowsHost reports whether host (already lowercased) is exempted by
// name.
func (a *Allowlist) AllowsHost(host string) bool {
	if a == nil {
		return false
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if a.exactHosts[host] {
		return true
	}
	for _, suf := range a.hostSuffixes {
		if strings.HasSuffix(host, suf) || host == strings.TrimPrefix(suf, ".") {
			return true
		}
	}
	return false
}

// AllowsIP reports whether ip is exempted by literal match or CIDR
// membership.
func (a *Allowlist) AllowsIP(ip net.IP) bool {
	if a == nil {
		return false
	}
	if a.ips[ip.String()] {
		return true
	}
	for _, n := range a.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// BlockedError is returned by CheckURL when a URL or one of its resolved
// addresses is blocked, matching the result shape callers require
// acquire handlers to surface.
type BlockedError struct {
	URL    string
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked_url: %s (%s)", e.URL, e.Reason)
}

// Resolver abstracts DNS resolution so tests can inject fixed results
// without touching the network.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// CheckURL resolves and validates a single URL (the
// caller is responsible for invoking this again for every redirect
// hop). allowNonGlobal corresponds to
// --allow-non-global-download-hosts and disables the check entirely
// when true.
func CheckURL(ctx context.Context, resolver Resolver, rawURL string, allow *Allowlist, allowNonGlobal bool) error {
	if allowNonGlobal {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return &BlockedError{URL: rawURL, Reason: "unparseable_url"}
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return &BlockedError{URL: rawURL, Reason: "missing_host"}
	}

	if allow.AllowsHost(host) {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if isGlobalUnicast(ip) || allow.AllowsIP(ip) {
			return nil
		}
		return &BlockedError{URL: rawURL, Reason: fmt.Sprintf("blocked_ip:%s:not_global_unicast", ip)}
	}

	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		return &BlockedError{URL: rawURL, Reason: fmt.Sprintf("blocked_host:%s:dns_resolution_failed", host)}
	}
	for _, a := range addrs {
		if isGlobalUnicast(a.IP) || allow.AllowsIP(a.IP) {
			return nil
		}
	}
	return &BlockedError{URL: rawURL, Reason: fmt.Sprintf("blocked_ip:%s:not_global_unicast", addrs[0].IP)}
}

// isGlobalUnicast rejects loopback, link-local, private, and other
// non-globally-routable addresses — the core of the SSRF defense.
func isGlobalUnicast(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() || ip.IsUnspecified() || ip.IsPrivate() {
		return false
	}
	if !ip.IsGlobalUnicast() {
		return false
	}
	return true
}

// StdResolver uses net.DefaultResolver.
type StdResolver struct{}

func (StdResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	return net.DefaultResolver.LookupIPAddr(ctx, host)
}

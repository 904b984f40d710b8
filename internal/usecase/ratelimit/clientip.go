package ratelimit

import (
	"fmt"
	"net"
	"strings"
)

// UnknownClient is the identity used when no valid address can be derived.
const UnknownClient = "unknown"

// ClientIPResolver derives the rate-limit identity of a request.
// Forwarding headers are honoured only when the immediate peer is a trusted proxy:
// a loopback or private-network address, or one inside a configured CIDR.
type ClientIPResolver struct {
	trusted []*net.IPNet
}

// NewClientIPResolver parses the trusted proxy CIDRs.
func NewClientIPResolver(trustedCIDRs []string) (*ClientIPResolver, error) {
	r := &ClientIPResolver{}
	for _, c := range trustedCIDRs {
		_, n, err := net.ParseCIDR(strings.TrimSpace(c))
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", c, err)
		}
		r.trusted = append(r.trusted, n)
	}
	return r, nil
}

// Resolve returns the client IP for a request with the given peer address and
// X-Forwarded-For / X-Real-IP header values. Malformed addresses are ignored.
func (r *ClientIPResolver) Resolve(remoteAddr, forwardedFor, realIP string) string {
	peer := parseIP(hostOnly(remoteAddr))
	if peer == nil {
		return UnknownClient
	}
	if !r.isTrusted(peer) {
		return peer.String()
	}

	// Walk right to left: the rightmost untrusted hop is the first one not under our control.
	if forwardedFor != "" {
		hops := strings.Split(forwardedFor, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			ip := parseIP(hops[i])
			if ip == nil {
				break
			}
			if !r.isTrusted(ip) || i == 0 {
				return ip.String()
			}
		}
	}

	if ip := parseIP(realIP); ip != nil {
		return ip.String()
	}
	return peer.String()
}

func (r *ClientIPResolver) isTrusted(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() {
		return true
	}
	for _, n := range r.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func parseIP(s string) net.IP {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return net.ParseIP(s)
}

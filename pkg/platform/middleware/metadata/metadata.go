package metadata

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"nietos/pkg/requestcontext"
)

// Resolver derives the client address for a request. Forwarding headers are
// only honoured when the direct peer is one of the trusted proxies.
type Resolver struct {
	trusted []netip.Prefix
}

// NewResolver returns a Resolver that trusts forwarding headers from peers
// inside the given prefixes. With no prefixes the peer address is always used.
func NewResolver(trusted []netip.Prefix) *Resolver {
	return &Resolver{trusted: trusted}
}

// ClientMetadata extracts client IP address and User-Agent from the request
// and adds them to the context for rate limiting and audit events.
// This middleware should be applied early in the chain.
func (res *Resolver) ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), res.ClientIP(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the address the request came from. Behind a trusted proxy
// the X-Forwarded-For chain is walked from the right, skipping trusted hops.
func (res *Resolver) ClientIP(r *http.Request) string {
	peer := peerAddr(r.RemoteAddr)
	if peer == "" {
		return "unknown"
	}
	if !res.isTrusted(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if _, err := netip.ParseAddr(hop); err != nil {
				return peer
			}
			if !res.isTrusted(hop) || i == 0 {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}
	return peer
}

func (res *Resolver) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range res.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func peerAddr(addr string) string {
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// ClientMetadata is the Resolver middleware with no trusted proxies.
func ClientMetadata(next http.Handler) http.Handler {
	return NewResolver(nil).ClientMetadata(next)
}

// ClientIPFromRequest returns the direct peer address, ignoring forwarding headers.
func ClientIPFromRequest(r *http.Request) string {
	return NewResolver(nil).ClientIP(r)
}

// AnonymizeIP truncates an address to its network prefix (/24 for IPv4, /48 for IPv6)
// so logs and audit events never carry a full client address.
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}

package http

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// TrustedProxies is a parsed set of proxy networks whose forwarding headers are believed.
type TrustedProxies []*net.IPNet

// ParseTrustedProxies parses CIDR ranges, failing on the first invalid entry.
func ParseTrustedProxies(cidrs []string) (TrustedProxies, error) {
	nets := make(TrustedProxies, 0, len(cidrs))
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", cidr, err)
		}
		nets = append(nets, ipNet)
	}
	return nets, nil
}

func (tp TrustedProxies) contains(ip net.IP) bool {
	for _, n := range tp {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the client address of r. X-Forwarded-For and X-Real-IP are
// only honored when the direct peer is a trusted proxy.
func ClientIP(r *http.Request, trusted TrustedProxies) string {
	remote := remoteAddr(r)

	peer := net.ParseIP(remote)
	if peer == nil || !trusted.contains(peer) {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, ip := range strings.Split(xff, ",") {
			ip = strings.TrimSpace(ip)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}

	return remote
}

func remoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

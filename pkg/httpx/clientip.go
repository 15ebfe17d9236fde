package httpx

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies lists the networks allowed to speak for the client through
// X-Forwarded-For. The zero value trusts nobody and keys on the peer address.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies accepts CIDRs or bare addresses. Blank entries are
// skipped.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var out TrustedProxies
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func (tp TrustedProxies) trusts(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range tp {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the address rate limits are keyed on. Forwarding headers
// are only read when the peer is a trusted proxy, and then the right-most
// hop that is not itself trusted wins; everything left of it is client
// supplied.
func (tp TrustedProxies) ClientIP(r *http.Request) string {
	peer := remoteIP(r)
	addr, err := netip.ParseAddr(peer)
	if err != nil || !tp.trusts(addr) {
		return peer
	}

	client := addr.Unmap()
	hops := forwardedHops(r)
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		client = hop.Unmap()
		if !tp.trusts(client) {
			break
		}
	}
	return client.String()
}

// forwardedHops flattens every X-Forwarded-For header in order.
func forwardedHops(r *http.Request) []string {
	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(v, ",")...)
	}
	return hops
}

func remoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

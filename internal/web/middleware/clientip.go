package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/JonMunkholm/dataimport/internal/logging"
)

// proxySet holds the networks whose forwarding headers are believed.
type proxySet []netip.Prefix

func parseProxies(entries []string) proxySet {
	var set proxySet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			set = append(set, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			slog.Warn("ignoring invalid trusted proxy", "entry", entry, "error", err)
			continue
		}
		set = append(set, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return set
}

func (s proxySet) contains(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range s {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// resolve returns the client address of r. Forwarding headers are only read
// when the connection comes from a trusted proxy. X-Forwarded-For is walked
// from the right, skipping hops that are themselves trusted proxies.
func (s proxySet) resolve(r *http.Request) netip.Addr {
	peer := parseHost(r.RemoteAddr)
	if !s.contains(peer) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			if !s.contains(hop) {
				return hop.Unmap()
			}
		}
	}

	if ip, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return ip.Unmap()
	}
	return peer
}

func parseHost(remoteAddr string) netip.Addr {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}

// ClientIP resolves the address of the client behind any trusted proxies and
// stores it on the request context, where logging.FromContext picks it up as
// client_ip. Requests from untrusted peers keep their connection address.
func ClientIP(trustedProxies []string) func(http.Handler) http.Handler {
	proxies := parseProxies(trustedProxies)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := proxies.resolve(r)
			if !addr.IsValid() {
				next.ServeHTTP(w, r)
				return
			}
			ctx := logging.WithClientIP(r.Context(), addr.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

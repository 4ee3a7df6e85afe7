// SPDX-License-Identifier: MIT

package playback

import (
	"net/url"
	"strings"
)

// ProxyPolicy rewrites plain-http stream URLs through a CORS proxy before
// they are handed to the playback primitive. Several candidate endpoints are
// configured but only the first is ever used; the extras are kept for manual
// failover by operators, not as an automatic fallback chain.
type ProxyPolicy struct {
	// Endpoints are proxy URL prefixes; the original URL is appended
	// query-encoded. Only Endpoints[0] is consulted.
	Endpoints []string
	// KnownHosts are substrings identifying URLs that already point at a
	// proxy and must pass through unchanged.
	KnownHosts []string
}

// DefaultProxyPolicy mirrors the public CORS proxies the viewer ships with.
func DefaultProxyPolicy() ProxyPolicy {
	return ProxyPolicy{
		Endpoints: []string{
			"https://corsproxy.io/?",
			"https://api.allorigins.win/raw?url=",
			"https://cors-anywhere.herokuapp.com/",
		},
		KnownHosts: []string{"corsproxy", "cors-anywhere", "allorigins"},
	}
}

// Rewrite applies the proxy policy to a stream URL. URLs already referencing
// a known proxy, and any scheme other than plain http, pass through
// unchanged.
func (p ProxyPolicy) Rewrite(raw string) string {
	if raw == "" || len(p.Endpoints) == 0 {
		return raw
	}
	for _, host := range p.KnownHosts {
		if strings.Contains(raw, host) {
			return raw
		}
	}
	if strings.HasPrefix(raw, "http://") {
		return p.Endpoints[0] + url.QueryEscape(raw)
	}
	return raw
}

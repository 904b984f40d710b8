package browser

import (
	"net/url"
	"strings"

	"github.com/chromedp/cdproto/network"
)

// DefaultBlockedDomains are analytics and ad hosts that never carry listing data.
var DefaultBlockedDomains = []string{
	"google-analytics.com",
	"googletagmanager.com",
	"doubleclick.net",
	"googlesyndication.com",
	"facebook.net",
	"connect.facebook.net",
	"hotjar.com",
	"segment.io",
	"segment.com",
	"mixpanel.com",
	"amplitude.com",
	"newrelic.com",
	"nr-data.net",
	"criteo.com",
	"taboola.com",
	"branch.io",
}

// RequestFilter decides which page sub-requests are aborted.
type RequestFilter struct {
	domains []string
}

// NewRequestFilter blocks heavy resource types plus the given domains and their subdomains.
func NewRequestFilter(domains []string) RequestFilter {
	f := RequestFilter{domains: make([]string, 0, len(domains))}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(d, ".")))
		if d != "" {
			f.domains = append(f.domains, d)
		}
	}
	return f
}

// Blocked reports whether a request of the given type to rawURL should be aborted.
func (f RequestFilter) Blocked(resourceType network.ResourceType, rawURL string) bool {
	switch resourceType {
	case network.ResourceTypeImage, network.ResourceTypeFont,
		network.ResourceTypeStylesheet, network.ResourceTypeMedia:
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range f.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

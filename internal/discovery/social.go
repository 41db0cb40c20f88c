package discovery

import (
	"net/url"
	"strings"
)

// socialPlatformDomains maps platform names to the domains the places source
// sometimes returns in the website field instead of a real site.
var socialPlatformDomains = map[string][]string{
	"facebook":  {"facebook.com", "fb.com", "fb.me"},
	"instagram": {"instagram.com"},
	"linkedin":  {"linkedin.com"},
	"twitter":   {"twitter.com", "x.com"},
	"yelp":      {"yelp.com"},
	"tiktok":    {"tiktok.com"},
	"youtube":   {"youtube.com", "youtu.be"},
	"pinterest": {"pinterest.com"},
}

// detectSocialPlatform returns the platform name when rawURL points at a
// known social network, or ("", false) for real websites.
func detectSocialPlatform(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")

	for platform, domains := range socialPlatformDomains {
		for _, d := range domains {
			if host == d || strings.HasSuffix(host, "."+d) {
				return platform, true
			}
		}
	}
	return "", false
}

// Package crawl discovers the set of pages that exist under a business
// website: the sitemap.xml entries, sitemaps declared in robots.txt, and the
// links on the home page. The result feeds page selection.
package crawl

import (
	"bufio"
	"context"
	"encoding/xml"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/model"
)

const (
	userAgent        = "Mozilla/5.0 (compatible; ProspectBot/1.0)"
	maxSitemapBytes  = 2 * 1024 * 1024
	maxHomePageBytes = 512 * 1024
)

// Discoverer builds a Sitemap for a root URL over plain HTTP.
type Discoverer struct {
	http           *http.Client
	limiter        *rate.Limiter
	maxSitemapURLs int
	maxNavLinks    int
	maxPagesTotal  int
}

// NewDiscoverer creates a Discoverer from crawl settings.
func NewDiscoverer(cfg config.CrawlConfig) *Discoverer {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.PerHostRPS
	if rps <= 0 {
		rps = 2
	}
	d := &Discoverer{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter:        rate.NewLimiter(rate.Limit(rps), 1),
		maxSitemapURLs: cfg.MaxSitemapURLs,
		maxNavLinks:    cfg.MaxNavLinks,
		maxPagesTotal:  cfg.MaxPagesTotal,
	}
	if d.maxSitemapURLs <= 0 {
		d.maxSitemapURLs = 50
	}
	if d.maxNavLinks <= 0 {
		d.maxNavLinks = 50
	}
	if d.maxPagesTotal <= 0 {
		d.maxPagesTotal = 100
	}
	return d
}

// NewDiscovererWithClient creates a Discoverer using the given HTTP client,
// for tests.
func NewDiscovererWithClient(cfg config.CrawlConfig, client *http.Client) *Discoverer {
	d := NewDiscoverer(cfg)
	d.http = client
	return d
}

// Discover returns the deduplicated, type-tagged set of same-host pages found
// under rootURL. The home page is always the first entry. Sitemap and
// robots.txt failures are non-fatal: the home page's own links are enough.
func (d *Discoverer) Discover(ctx context.Context, rootURL string) (model.Sitemap, error) {
	root, err := normalizeRoot(rootURL)
	if err != nil {
		return model.Sitemap{}, eris.Wrap(err, "crawl: parse root url")
	}

	log := zap.L().With(zap.String("root", root.String()))
	sitemap := model.Sitemap{Root: root.String()}
	seen := map[string]bool{}

	add := func(p model.DiscoveredPage) bool {
		key := canonicalKey(p.URL)
		if seen[key] || len(sitemap.Pages) >= d.maxPagesTotal {
			return false
		}
		seen[key] = true
		sitemap.Pages = append(sitemap.Pages, p)
		return true
	}

	// The home page anchors everything downstream and is never dropped.
	add(model.DiscoveredPage{URL: root.String(), Type: model.PageTypeHome, Depth: 0})

	sitemapURLs := d.sitemapLocations(ctx, root)
	fromSitemaps := 0
	for _, smURL := range sitemapURLs {
		if fromSitemaps >= d.maxSitemapURLs {
			break
		}
		for _, loc := range d.fetchSitemap(ctx, smURL, root) {
			if fromSitemaps >= d.maxSitemapURLs {
				break
			}
			if add(model.DiscoveredPage{URL: loc, Type: ClassifyPage(loc, ""), Depth: 1}) {
				fromSitemaps++
			}
		}
	}

	navLinks := d.homeLinks(ctx, root)
	fromNav := 0
	for _, link := range navLinks {
		if fromNav >= d.maxNavLinks {
			break
		}
		if add(model.DiscoveredPage{
			URL:        link.href,
			Type:       ClassifyPage(link.href, link.text),
			AnchorText: link.text,
			Depth:      1,
		}) {
			fromNav++
		}
	}

	log.Info("crawl: page discovery complete",
		zap.Int("pages", len(sitemap.Pages)),
		zap.Int("from_sitemaps", fromSitemaps),
		zap.Int("from_nav", fromNav),
	)
	return sitemap, nil
}

// sitemapLocations returns the sitemap URLs to fetch: any declared in
// robots.txt, plus the conventional /sitemap.xml.
func (d *Discoverer) sitemapLocations(ctx context.Context, root *url.URL) []string {
	base := root.Scheme + "://" + root.Host
	locations := []string{}
	declared := map[string]bool{}

	body, err := d.fetch(ctx, base+"/robots.txt", maxSitemapBytes)
	if err == nil {
		scanner := bufio.NewScanner(strings.NewReader(string(body)))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(strings.ToLower(line), "sitemap:") {
				continue
			}
			loc := strings.TrimSpace(line[len("sitemap:"):])
			if loc == "" || declared[loc] {
				continue
			}
			declared[loc] = true
			locations = append(locations, loc)
		}
	}

	fallback := base + "/sitemap.xml"
	if !declared[fallback] {
		locations = append(locations, fallback)
	}
	return locations
}

// sitemapURLSet represents a sitemap.xml <urlset> document.
type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapLoc `xml:"url"`
}

// sitemapIndex represents a <sitemapindex> of child sitemaps.
type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// fetchSitemap fetches one sitemap document and returns its same-host page
// URLs. A <sitemapindex> is followed one level deep.
func (d *Discoverer) fetchSitemap(ctx context.Context, sitemapURL string, root *url.URL) []string {
	body, err := d.fetch(ctx, sitemapURL, maxSitemapBytes)
	if err != nil {
		zap.L().Debug("crawl: sitemap fetch failed",
			zap.String("sitemap", sitemapURL),
			zap.Error(err),
		)
		return nil
	}

	var urlSet sitemapURLSet
	if err := xml.Unmarshal(body, &urlSet); err == nil && len(urlSet.URLs) > 0 {
		return sameHostLocs(urlSet.URLs, root)
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err != nil || len(index.Sitemaps) == 0 {
		return nil
	}
	var urls []string
	for _, child := range sameHostLocs(index.Sitemaps, root) {
		childBody, err := d.fetch(ctx, child, maxSitemapBytes)
		if err != nil {
			continue
		}
		var childSet sitemapURLSet
		if err := xml.Unmarshal(childBody, &childSet); err != nil {
			continue
		}
		urls = append(urls, sameHostLocs(childSet.URLs, root)...)
		if len(urls) >= d.maxSitemapURLs {
			break
		}
	}
	return urls
}

func sameHostLocs(entries []sitemapLoc, root *url.URL) []string {
	var out []string
	for _, e := range entries {
		loc := strings.TrimSpace(e.Loc)
		if loc == "" {
			continue
		}
		u, err := url.Parse(loc)
		if err != nil || !sameHost(u, root) {
			continue
		}
		out = append(out, loc)
	}
	return out
}

type navLink struct {
	href string
	text string
}

// anchorRe captures href and inner markup of each anchor tag.
var anchorRe = regexp.MustCompile(`(?is)<a\s[^>]*href\s*=\s*["']([^"']+)["'][^>]*>(.*?)</a>`)

// tagRe strips nested markup from anchor text.
var tagRe = regexp.MustCompile(`<[^>]*>`)

// homeLinks fetches the home page and extracts its same-host links with
// anchor text.
func (d *Discoverer) homeLinks(ctx context.Context, root *url.URL) []navLink {
	body, err := d.fetch(ctx, root.String(), maxHomePageBytes)
	if err != nil {
		zap.L().Debug("crawl: home page fetch failed",
			zap.String("root", root.String()),
			zap.Error(err),
		)
		return nil
	}

	var links []navLink
	for _, m := range anchorRe.FindAllStringSubmatch(string(body), -1) {
		href := strings.TrimSpace(m[1])
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			continue
		}
		rel, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := root.ResolveReference(rel)
		if !sameHost(abs, root) {
			continue
		}
		abs.Fragment = ""
		text := strings.TrimSpace(tagRe.ReplaceAllString(m[2], " "))
		text = strings.Join(strings.Fields(text), " ")
		links = append(links, navLink{href: abs.String(), text: text})
	}
	return links
}

func (d *Discoverer) fetch(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "crawl: create request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "crawl: execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("crawl: fetch %s: status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

func sameHost(u, root *url.URL) bool {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	rootHost := strings.TrimPrefix(strings.ToLower(root.Hostname()), "www.")
	return host != "" && host == rootHost
}

// canonicalKey normalizes a URL for dedup: lowercase host, no www prefix, no
// trailing slash, no fragment.
func canonicalKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.TrimSuffix(u.Path, "/")
	key := host + path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

func normalizeRoot(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, eris.New("empty url")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, eris.New("url has no host")
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.Fragment = ""
	return u, nil
}

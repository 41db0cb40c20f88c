// Package pageselect chooses which discovered pages are worth visiting. An
// AI selector ranks pages against the extraction goal; a deterministic
// priority fallback guarantees a usable selection when the model is
// unavailable or answers badly.
package pageselect

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/pkg/anthropic"
)

const selectorSystemPrompt = `You select which pages of a small-business website are most likely to contain contact details, service descriptions, pricing, and team information. You receive the business category, a priority hint for that category, and a numbered list of discovered pages with their URL, inferred type, and anchor text. Choose the most valuable pages only. Respond with a valid JSON object and nothing else:
{"urls": ["<url>", ...], "rationale": "<one sentence>"}
Rules: only use URLs from the provided list, never invent URLs. Apply the priority hint for the business category.`

// fallbackPriority orders page types for the deterministic selection path.
var fallbackPriority = []model.PageType{
	model.PageTypeHome,
	model.PageTypeAbout,
	model.PageTypePricing,
	model.PageTypeTeam,
	model.PageTypeCareers,
	model.PageTypeServices,
	model.PageTypePortfolio,
	model.PageTypeContact,
	model.PageTypeLocations,
	model.PageTypeProducts,
}

// Selector picks at most maxPages pages from a sitemap.
type Selector struct {
	ai       anthropic.Client
	model    string
	maxPages int
}

// NewSelector creates a Selector. ai may be nil to force the deterministic
// path.
func NewSelector(ai anthropic.Client, modelID string, maxPages int) *Selector {
	if maxPages <= 0 {
		maxPages = 7
	}
	return &Selector{ai: ai, model: modelID, maxPages: maxPages}
}

// Select returns the pages to visit for a business of the given category.
// The home page is always included and the result never exceeds the
// configured maximum. The AI path is attempted first; any failure falls back
// to the priority ordering and is recorded on the returned selection rather
// than returned as an error.
func (s *Selector) Select(ctx context.Context, sitemap model.Sitemap, category string) (model.PageSelection, error) {
	if len(sitemap.Pages) == 0 {
		return model.PageSelection{Path: model.PathFailed, FallbackReason: "no pages discovered"},
			eris.New("pageselect: empty sitemap")
	}

	if s.ai == nil {
		sel := s.fallbackSelect(sitemap)
		sel.FallbackReason = "no ai client configured"
		return sel, nil
	}

	sel, err := s.aiSelect(ctx, sitemap, category)
	if err != nil {
		zap.L().Warn("pageselect: ai selection failed, using priority fallback",
			zap.String("root", sitemap.Root),
			zap.Error(err),
		)
		fb := s.fallbackSelect(sitemap)
		fb.FallbackReason = err.Error()
		fb.Cost = sel.Cost // keep whatever the failed attempt spent
		return fb, nil
	}
	return sel, nil
}

type selectorReply struct {
	URLs      []string `json:"urls"`
	Rationale string   `json:"rationale"`
}

func (s *Selector) aiSelect(ctx context.Context, sitemap model.Sitemap, category string) (model.PageSelection, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Site: %s\n", sitemap.Root)
	if category != "" {
		fmt.Fprintf(&sb, "Business category: %s\n", category)
	}
	fmt.Fprintf(&sb, "Priority hint: %s\n", priorityHint(category))
	fmt.Fprintf(&sb, "Select up to %d pages.\n\nDiscovered pages:\n", s.maxPages)
	for i, p := range sitemap.Pages {
		fmt.Fprintf(&sb, "%d. url=%s type=%s", i+1, p.URL, p.Type)
		if p.AnchorText != "" {
			fmt.Fprintf(&sb, " anchor=%q", p.AnchorText)
		}
		sb.WriteString("\n")
	}

	var resp *anthropic.MessageResponse
	err := resilience.Do(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) error {
		var innerErr error
		resp, innerErr = s.ai.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     s.model,
			MaxTokens: 1024,
			System:    anthropic.BuildCachedSystemBlocks(selectorSystemPrompt),
			Messages:  []anthropic.Message{{Role: "user", Content: sb.String()}},
		})
		return innerErr
	})
	if err != nil {
		return model.PageSelection{}, eris.Wrap(err, "pageselect: create message")
	}

	cost := model.SelectionCost{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		EstimatedUSD: resp.Usage.EstimateCost(s.model),
	}
	resp.Usage.LogCost(s.model, "pageselect")

	var reply selectorReply
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(resp.Text())), &reply); err != nil {
		return model.PageSelection{Cost: cost}, eris.Wrap(err, "pageselect: parse selector reply")
	}

	known := sitemap.URLSet()
	var pages []model.DiscoveredPage
	chosen := map[string]bool{}
	for _, u := range reply.URLs {
		page, ok := known[strings.TrimSpace(u)]
		if !ok {
			// Invented URLs are dropped, not fatal.
			zap.L().Debug("pageselect: selector returned unknown url",
				zap.String("url", u),
			)
			continue
		}
		if chosen[page.URL] {
			continue
		}
		chosen[page.URL] = true
		pages = append(pages, page)
	}
	if len(pages) == 0 {
		return model.PageSelection{Cost: cost}, eris.New("pageselect: selector chose no known urls")
	}

	pages = s.ensureHomeFirst(pages, sitemap)
	if len(pages) > s.maxPages {
		pages = pages[:s.maxPages]
	}

	return model.PageSelection{
		Pages:     pages,
		Rationale: reply.Rationale,
		Path:      model.PathSucceeded,
		Cost:      cost,
	}, nil
}

// priorityHint phrases which page types matter most for the business
// category, so the selector ranks a service shop's portfolio ahead of its
// blog archive and a retailer's product pages ahead of its press releases.
func priorityHint(category string) string {
	c := strings.ToLower(category)
	switch {
	case containsAny(c, "agency", "consultant", "marketing", "design", "studio"):
		return "service business: pricing, team, and portfolio pages outrank blog and legal pages"
	case containsAny(c, "contractor", "plumb", "electric", "hvac", "roof", "repair", "cleaning"):
		return "trade business: services, pricing, and contact pages outrank blog and legal pages"
	case containsAny(c, "store", "shop", "retail", "boutique"):
		return "retail business: products, locations, and contact pages outrank blog and legal pages"
	case containsAny(c, "restaurant", "cafe", "bar", "bakery"):
		return "food business: locations, contact, and about pages outrank blog and legal pages"
	default:
		return "about, contact, pricing, services, and team pages outrank blog and legal pages"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// fallbackSelect picks pages by type priority, then shallowest-first for the
// remaining budget.
func (s *Selector) fallbackSelect(sitemap model.Sitemap) model.PageSelection {
	byType := map[model.PageType][]model.DiscoveredPage{}
	for _, p := range sitemap.Pages {
		byType[p.Type] = append(byType[p.Type], p)
	}

	var pages []model.DiscoveredPage
	chosen := map[string]bool{}
	for _, pt := range fallbackPriority {
		for _, p := range byType[pt] {
			if len(pages) >= s.maxPages {
				break
			}
			if chosen[p.URL] {
				continue
			}
			chosen[p.URL] = true
			pages = append(pages, p)
		}
	}

	if len(pages) < s.maxPages {
		rest := make([]model.DiscoveredPage, 0, len(sitemap.Pages))
		for _, p := range sitemap.Pages {
			if !chosen[p.URL] {
				rest = append(rest, p)
			}
		}
		sort.SliceStable(rest, func(i, j int) bool { return rest[i].Depth < rest[j].Depth })
		for _, p := range rest {
			if len(pages) >= s.maxPages {
				break
			}
			chosen[p.URL] = true
			pages = append(pages, p)
		}
	}

	pages = s.ensureHomeFirst(pages, sitemap)
	if len(pages) > s.maxPages {
		pages = pages[:s.maxPages]
	}

	return model.PageSelection{
		Pages:     pages,
		Rationale: "priority order by page type",
		Path:      model.PathFellBack,
	}
}

// ensureHomeFirst moves the home page to the front, inserting it if the
// selection omitted it.
func (s *Selector) ensureHomeFirst(pages []model.DiscoveredPage, sitemap model.Sitemap) []model.DiscoveredPage {
	home, ok := sitemap.Home()
	if !ok {
		return pages
	}
	out := []model.DiscoveredPage{home}
	for _, p := range pages {
		if p.URL == home.URL {
			continue
		}
		out = append(out, p)
	}
	return out
}

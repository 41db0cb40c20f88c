package crawl

import (
	"net/url"
	"strings"

	"github.com/sells-group/prospect-cli/internal/model"
)

// pathPatterns maps URL path segments to page types. The path is cleaned
// (lowercase, stripped of leading/trailing slashes) before matching.
var pathPatterns = map[string]model.PageType{
	"about":          model.PageTypeAbout,
	"about-us":       model.PageTypeAbout,
	"about_us":       model.PageTypeAbout,
	"aboutus":        model.PageTypeAbout,
	"who-we-are":     model.PageTypeAbout,
	"our-story":      model.PageTypeAbout,
	"story":          model.PageTypeAbout,
	"pricing":        model.PageTypePricing,
	"prices":         model.PageTypePricing,
	"rates":          model.PageTypePricing,
	"plans":          model.PageTypePricing,
	"contact":        model.PageTypeContact,
	"contact-us":     model.PageTypeContact,
	"contact_us":     model.PageTypeContact,
	"contactus":      model.PageTypeContact,
	"team":           model.PageTypeTeam,
	"our-team":       model.PageTypeTeam,
	"leadership":     model.PageTypeTeam,
	"staff":          model.PageTypeTeam,
	"people":         model.PageTypeTeam,
	"services":       model.PageTypeServices,
	"our-services":   model.PageTypeServices,
	"what-we-do":     model.PageTypeServices,
	"service":        model.PageTypeServices,
	"portfolio":      model.PageTypePortfolio,
	"work":           model.PageTypePortfolio,
	"our-work":       model.PageTypePortfolio,
	"projects":       model.PageTypePortfolio,
	"gallery":        model.PageTypePortfolio,
	"case-studies":   model.PageTypePortfolio,
	"careers":        model.PageTypeCareers,
	"jobs":           model.PageTypeCareers,
	"join-us":        model.PageTypeCareers,
	"locations":      model.PageTypeLocations,
	"location":       model.PageTypeLocations,
	"find-us":        model.PageTypeLocations,
	"directions":     model.PageTypeLocations,
	"products":       model.PageTypeProducts,
	"shop":           model.PageTypeProducts,
	"store":          model.PageTypeProducts,
	"menu":           model.PageTypeProducts,
	"blog":           model.PageTypeBlog,
	"news":           model.PageTypeBlog,
	"articles":       model.PageTypeBlog,
	"resources":      model.PageTypeBlog,
	"legal":          model.PageTypeLegal,
	"privacy":        model.PageTypeLegal,
	"privacy-policy": model.PageTypeLegal,
	"terms":          model.PageTypeLegal,
	"terms-of-use":   model.PageTypeLegal,
	"cookies":        model.PageTypeLegal,
}

// anchorPatterns are checked against link text when the URL path gives no
// signal. Order matters: more specific phrases first.
var anchorPatterns = []struct {
	phrase string
	pt     model.PageType
}{
	{"about us", model.PageTypeAbout},
	{"about", model.PageTypeAbout},
	{"pricing", model.PageTypePricing},
	{"contact us", model.PageTypeContact},
	{"contact", model.PageTypeContact},
	{"get in touch", model.PageTypeContact},
	{"our team", model.PageTypeTeam},
	{"meet the team", model.PageTypeTeam},
	{"services", model.PageTypeServices},
	{"what we do", model.PageTypeServices},
	{"portfolio", model.PageTypePortfolio},
	{"our work", model.PageTypePortfolio},
	{"careers", model.PageTypeCareers},
	{"locations", model.PageTypeLocations},
	{"products", model.PageTypeProducts},
	{"blog", model.PageTypeBlog},
}

// ClassifyPage infers a page type from the URL path, falling back to the
// anchor text the link was found under. Only the first path segment is
// matched to avoid false positives on deep paths like /blog/about-our-team.
func ClassifyPage(rawURL, anchorText string) model.PageType {
	u, err := url.Parse(rawURL)
	if err == nil {
		path := strings.Trim(u.Path, "/")
		if path == "" {
			return model.PageTypeHome
		}
		if idx := strings.Index(path, "/"); idx > 0 {
			path = path[:idx]
		}
		path = strings.ToLower(path)
		// Drop an .html/.php style suffix before matching.
		if dot := strings.LastIndex(path, "."); dot > 0 {
			path = path[:dot]
		}
		if pt, ok := pathPatterns[path]; ok {
			return pt
		}
	}

	anchor := strings.ToLower(strings.TrimSpace(anchorText))
	if anchor != "" {
		for _, p := range anchorPatterns {
			if strings.Contains(anchor, p.phrase) {
				return p.pt
			}
		}
	}
	return model.PageTypeOther
}

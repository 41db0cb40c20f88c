package extract

import (
	"regexp"
	"strings"

	"github.com/sells-group/prospect-cli/internal/model"
)

var (
	mailtoRe = regexp.MustCompile(`(?i)href\s*=\s*["']mailto:([^"'?]+)`)
	telRe    = regexp.MustCompile(`(?i)href\s*=\s*["']tel:([^"']+)["']`)

	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// North-American phone shapes: (206) 555-0101, 206-555-0101, 206.555.0101,
	// +1 206 555 0101.
	phoneRe = regexp.MustCompile(`(?:\+?1[\s.\-]?)?\(?\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4}`)

	metaDescRe = regexp.MustCompile(`(?is)<meta[^>]+name\s*=\s*["']description["'][^>]*content\s*=\s*["']([^"']+)["']`)
	ogDescRe   = regexp.MustCompile(`(?is)<meta[^>]+property\s*=\s*["']og:description["'][^>]*content\s*=\s*["']([^"']+)["']`)

	listItemRe    = regexp.MustCompile(`(?is)<li[^>]*>(.*?)</li>`)
	headingRe     = regexp.MustCompile(`(?is)<h[1-3][^>]*>(.*?)</h[1-3]>`)
	stripMarkupRe = regexp.MustCompile(`<[^>]*>`)
)

// bogusEmailSuffixes filter regex matches that are actually asset filenames.
var bogusEmailSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".css", ".js"}

// serviceHeadings are the section titles whose list items are read as service
// names.
var serviceHeadings = []string{
	"services", "what we do", "what we offer", "our offerings",
	"specialties", "treatments", "practice areas", "menu",
}

const (
	maxServicesPerPage = 15
	maxServiceNameLen  = 60
	maxDescriptionLen  = 500
)

// extractFromMarkup runs the non-structured strategy ladder over one page.
// Each field is filled by the highest-priority strategy that finds it:
// mailto/tel links beat plain-text regex, meta description beats headings.
func extractFromMarkup(html, text string) model.PagePatch {
	var patch model.PagePatch

	if m := mailtoRe.FindStringSubmatch(html); m != nil {
		if email := cleanEmail(m[1]); email != "" {
			patch.Email = email
			patch.Source = "mailto"
		}
	}
	if patch.Email == "" {
		for _, m := range emailRe.FindAllString(text, 10) {
			if email := cleanEmail(m); email != "" {
				patch.Email = email
				patch.Source = "regex"
				break
			}
		}
	}

	if m := telRe.FindStringSubmatch(html); m != nil {
		patch.Phone = strings.TrimSpace(m[1])
	}
	if patch.Phone == "" {
		if m := phoneRe.FindString(text); m != "" {
			patch.Phone = strings.TrimSpace(m)
		}
	}

	patch.Description = extractDescription(html, text)
	patch.Services = extractServices(html)

	return patch
}

func cleanEmail(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if !emailRe.MatchString(email) {
		return ""
	}
	for _, suffix := range bogusEmailSuffixes {
		if strings.HasSuffix(email, suffix) {
			return ""
		}
	}
	return email
}

// extractDescription prefers the meta description, then og:description, then
// the first substantial paragraph of visible text.
func extractDescription(html, text string) string {
	if m := metaDescRe.FindStringSubmatch(html); m != nil {
		if desc := tidyText(m[1]); len(desc) >= 30 {
			return clipText(desc, maxDescriptionLen)
		}
	}
	if m := ogDescRe.FindStringSubmatch(html); m != nil {
		if desc := tidyText(m[1]); len(desc) >= 30 {
			return clipText(desc, maxDescriptionLen)
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = tidyText(line)
		// Skip nav crumbs and headlines; a real description reads like a
		// sentence.
		if len(line) >= 80 && strings.Contains(line, " ") {
			return clipText(line, maxDescriptionLen)
		}
	}
	return ""
}

// extractServices reads list items that follow a services-like heading.
func extractServices(html string) []string {
	lower := strings.ToLower(html)
	start := -1
	for _, loc := range headingRe.FindAllStringSubmatchIndex(lower, -1) {
		heading := tidyText(stripMarkupRe.ReplaceAllString(lower[loc[2]:loc[3]], " "))
		for _, sh := range serviceHeadings {
			if strings.Contains(heading, sh) {
				start = loc[1]
				break
			}
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return nil
	}

	section := html[start:]
	// Stop at the next heading so unrelated lists are not swept in.
	if loc := headingRe.FindStringIndex(section); loc != nil {
		section = section[:loc[0]]
	}

	var services []string
	for _, m := range listItemRe.FindAllStringSubmatch(section, maxServicesPerPage) {
		name := tidyText(stripMarkupRe.ReplaceAllString(m[1], " "))
		if name == "" || len(name) > maxServiceNameLen {
			continue
		}
		services = append(services, name)
	}
	return services
}

func tidyText(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

func clipText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	clipped := s[:max]
	if idx := strings.LastIndex(clipped, " "); idx > max/2 {
		clipped = clipped[:idx]
	}
	return clipped
}

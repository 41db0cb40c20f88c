// Package intel derives business-maturity and budget signals from the raw
// text of crawled pages. The signals ride along with the extraction record;
// they are advisory and never block a candidate.
package intel

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
)

// PageBody is one visited page's text, tagged with its type.
type PageBody struct {
	Type model.PageType
	Text string
}

var (
	employeeRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d{1,4})\+?\s+employees\b`),
		regexp.MustCompile(`(?i)\bteam\s+of\s+(\d{1,4})\b`),
		regexp.MustCompile(`(?i)\bstaff\s+of\s+(\d{1,4})\b`),
	}
	foundedRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bsince\s+(\d{4})\b`),
		regexp.MustCompile(`(?i)\bfounded\s+(?:in\s+)?(\d{4})\b`),
		regexp.MustCompile(`(?i)\bestablished\s+(?:in\s+)?(\d{4})\b`),
		regexp.MustCompile(`(?i)\best\.?\s+(\d{4})\b`),
	}
	yearsRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d{1,3})\+?\s+years\s+(?:of\s+experience|in\s+business|serving)\b`),
		regexp.MustCompile(`(?i)\bover\s+(\d{1,3})\s+years\b`),
	}
	priceRe = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d{2})?`)
	yearRe  = regexp.MustCompile(`\b(20\d{2})\b`)
)

// Aggregator derives a BusinessIntelligence block from page bodies.
type Aggregator struct {
	now func() time.Time
}

// NewAggregator creates an Aggregator using wall-clock time.
func NewAggregator() *Aggregator {
	return &Aggregator{now: time.Now}
}

// NewAggregatorAt pins the clock, for tests.
func NewAggregatorAt(now time.Time) *Aggregator {
	return &Aggregator{now: func() time.Time { return now }}
}

// Aggregate scans every page body for maturity signals. It cannot fail: pages
// with nothing to offer simply contribute nothing.
func (a *Aggregator) Aggregate(pages []PageBody) *model.BusinessIntelligence {
	bi := &model.BusinessIntelligence{}
	currentYear := a.now().Year()

	for _, page := range pages {
		text := page.Text
		if text == "" {
			continue
		}

		if bi.EmployeeCountHint == 0 {
			bi.EmployeeCountHint = firstNumber(employeeRes, text, 1, 10000)
		}
		if bi.FoundedYear == 0 {
			bi.FoundedYear = firstNumber(foundedRes, text, 1800, currentYear)
		}
		if bi.YearsInBusiness == 0 {
			bi.YearsInBusiness = firstNumber(yearsRes, text, 1, 200)
		}

		switch page.Type {
		case model.PageTypePricing:
			bi.PricingVisible = true
		case model.PageTypeBlog:
			bi.HasBlog = true
		}
		if !bi.PricingVisible && strings.Count(text, "$") >= 2 && priceRe.MatchString(text) {
			bi.PricingVisible = true
		}

		for _, m := range yearRe.FindAllStringSubmatch(text, -1) {
			if y, err := strconv.Atoi(m[1]); err == nil && y <= currentYear && y > bi.LatestContentYear {
				bi.LatestContentYear = y
			}
		}
	}

	if bi.FoundedYear > 0 && bi.YearsInBusiness == 0 {
		bi.YearsInBusiness = currentYear - bi.FoundedYear
	}
	bi.ContentFresh = bi.LatestContentYear >= currentYear-1

	zap.L().Debug("intel: aggregation complete",
		zap.Int("employee_hint", bi.EmployeeCountHint),
		zap.Int("founded_year", bi.FoundedYear),
		zap.Bool("pricing_visible", bi.PricingVisible),
		zap.Bool("content_fresh", bi.ContentFresh),
	)
	return bi
}

// firstNumber returns the first capture across the patterns that parses into
// [min, max].
func firstNumber(patterns []*regexp.Regexp, text string, min, max int) int {
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, 5) {
			n, err := strconv.Atoi(m[1])
			if err == nil && n >= min && n <= max {
				return n
			}
		}
	}
	return 0
}

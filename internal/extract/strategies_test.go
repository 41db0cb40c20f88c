package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFromMarkup_MailtoBeatsRegex(t *testing.T) {
	html := `<a href="mailto:owner@acme.example?subject=hi">Email us</a>`
	text := "Questions? Write to support@other.example any time."

	patch := extractFromMarkup(html, text)
	assert.Equal(t, "owner@acme.example", patch.Email)
	assert.Equal(t, "mailto", patch.Source)
}

func TestExtractFromMarkup_RegexEmailFallback(t *testing.T) {
	patch := extractFromMarkup("<html></html>", "Reach us at Hello@Acme.Example today")
	assert.Equal(t, "hello@acme.example", patch.Email)
	assert.Equal(t, "regex", patch.Source)
}

func TestExtractFromMarkup_AssetFilenameNotAnEmail(t *testing.T) {
	patch := extractFromMarkup("", "see logo@2x.png for details")
	assert.Empty(t, patch.Email)
}

func TestExtractFromMarkup_TelLinkBeatsRegex(t *testing.T) {
	html := `<a href="tel:+12065550101">Call</a>`
	text := "Or dial 425-555-0202 instead."

	patch := extractFromMarkup(html, text)
	assert.Equal(t, "+12065550101", patch.Phone)
}

func TestExtractFromMarkup_PhoneRegex(t *testing.T) {
	patch := extractFromMarkup("", "Call us: (206) 555-0101 weekdays")
	assert.Equal(t, "(206) 555-0101", patch.Phone)
}

func TestExtractDescription_MetaWins(t *testing.T) {
	html := `<meta name="description" content="Family-owned plumbing company serving Tacoma for over 20 years.">`
	text := "Some long paragraph about the company that would otherwise be picked up as the description text."

	desc := extractDescription(html, text)
	assert.Contains(t, desc, "Family-owned plumbing")
}

func TestExtractDescription_ParagraphFallback(t *testing.T) {
	text := "Home\nAbout\nWe are a family-owned plumbing company that has served the greater Tacoma area with honest pricing since 2003.\n"
	desc := extractDescription("", text)
	assert.Contains(t, desc, "family-owned plumbing")
}

func TestExtractDescription_ShortMetaIgnored(t *testing.T) {
	html := `<meta name="description" content="Welcome!">`
	assert.Empty(t, extractDescription(html, ""))
}

func TestExtractServices_ListAfterHeading(t *testing.T) {
	html := `<h2>Our Services</h2>
<ul>
  <li>Drain Cleaning</li>
  <li><strong>Water Heater</strong> Repair</li>
  <li>Emergency Plumbing</li>
</ul>
<h2>Testimonials</h2>
<ul><li>Great work! - A Customer</li></ul>`

	services := extractServices(html)
	assert.Equal(t, []string{"Drain Cleaning", "Water Heater Repair", "Emergency Plumbing"}, services)
}

func TestExtractServices_NoHeadingNoServices(t *testing.T) {
	html := `<ul><li>Home</li><li>About</li></ul>`
	assert.Empty(t, extractServices(html))
}

func TestClipText(t *testing.T) {
	long := "word "
	for len(long) < 600 {
		long += "word "
	}
	clipped := clipText(long, 500)
	assert.LessOrEqual(t, len(clipped), 500)
}

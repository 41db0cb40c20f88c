package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONLD_LocalBusiness(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "LocalBusiness",
  "name": "Roast House",
  "email": "mailto:hello@roasthouse.example",
  "telephone": "(206) 555-0101",
  "description": "Seattle's neighborhood coffee roaster since 2012.",
  "makesOffer": [
    {"itemOffered": {"name": "Espresso"}},
    {"itemOffered": {"name": "Cold Brew"}}
  ]
}
</script></head></html>`

	patch := extractJSONLD(html)
	assert.True(t, patch.Structured)
	assert.Equal(t, "hello@roasthouse.example", patch.Email)
	assert.Equal(t, "(206) 555-0101", patch.Phone)
	assert.Contains(t, patch.Description, "coffee roaster")
	assert.Equal(t, []string{"Espresso", "Cold Brew"}, patch.Services)
}

func TestExtractJSONLD_TypeArrayAndGraph(t *testing.T) {
	html := `<script type="application/ld+json">
{"@graph": [
  {"@type": ["Organization", "Brand"], "telephone": "206-555-0199",
   "contactPoint": {"email": "info@acme.example", "name": "Dana Reyes"}}
]}
</script>`

	patch := extractJSONLD(html)
	assert.True(t, patch.Structured)
	assert.Equal(t, "info@acme.example", patch.Email)
	assert.Equal(t, "206-555-0199", patch.Phone)
	assert.Equal(t, "Dana Reyes", patch.ContactName)
}

func TestExtractJSONLD_IgnoresNonBusinessTypes(t *testing.T) {
	html := `<script type="application/ld+json">
{"@type": "BreadcrumbList", "email": "nope@nope.example"}
</script>`

	patch := extractJSONLD(html)
	assert.False(t, patch.Structured)
	assert.Empty(t, patch.Email)
}

func TestExtractJSONLD_MalformedBlockSkipped(t *testing.T) {
	html := `<script type="application/ld+json">{not json</script>
<script type="application/ld+json">{"@type":"Store","telephone":"206 555 0102"}</script>`

	patch := extractJSONLD(html)
	assert.Equal(t, "206 555 0102", patch.Phone)
}

func TestExtractJSONLD_TopLevelArray(t *testing.T) {
	html := `<script type="application/ld+json">
[{"@type": "ProfessionalService", "email": "book@studio.example"}]
</script>`

	patch := extractJSONLD(html)
	assert.Equal(t, "book@studio.example", patch.Email)
}

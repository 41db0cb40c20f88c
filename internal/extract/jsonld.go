package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/sells-group/prospect-cli/internal/model"
)

// jsonLDScriptRe pulls the bodies of ld+json script tags out of a document.
var jsonLDScriptRe = regexp.MustCompile(`(?is)<script[^>]+type\s*=\s*["']application/ld\+json["'][^>]*>(.*?)</script>`)

// jsonLDEntity is the subset of schema.org LocalBusiness/Organization fields
// the extractor cares about. Unknown fields are ignored.
type jsonLDEntity struct {
	Type            jsonLDType      `json:"@type"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Telephone       string          `json:"telephone"`
	Description     string          `json:"description"`
	ContactPoint    json.RawMessage `json:"contactPoint"`
	MakesOffer      json.RawMessage `json:"makesOffer"`
	HasOfferCatalog *offerCatalog   `json:"hasOfferCatalog"`
	Graph           []jsonLDEntity  `json:"@graph"`
}

type offerCatalog struct {
	ItemListElement json.RawMessage `json:"itemListElement"`
}

type offer struct {
	Name        string `json:"name"`
	ItemOffered *struct {
		Name string `json:"name"`
	} `json:"itemOffered"`
}

type contactPoint struct {
	Email     string `json:"email"`
	Telephone string `json:"telephone"`
	Name      string `json:"name"`
}

// jsonLDType tolerates both "LocalBusiness" and ["LocalBusiness", ...].
type jsonLDType []string

func (t *jsonLDType) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = jsonLDType{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*t = jsonLDType(many)
		return nil
	}
	// Non-string types happen in the wild; treat as absent.
	*t = nil
	return nil
}

// businessTypes are the schema.org types worth reading contact data from.
var businessTypes = map[string]bool{
	"localbusiness":           true,
	"organization":            true,
	"store":                   true,
	"restaurant":              true,
	"professionalservice":     true,
	"homeandconstruction":     true,
	"medicalorganization":     true,
	"legalservice":            true,
	"financialservice":        true,
	"foodestablishment":       true,
	"healthandbeautybusiness": true,
}

func (t jsonLDType) isBusiness() bool {
	for _, v := range t {
		key := strings.ToLower(strings.TrimSpace(v))
		if businessTypes[key] || strings.HasSuffix(key, "business") || strings.HasSuffix(key, "service") {
			return true
		}
	}
	return false
}

// extractJSONLD reads structured-data blocks out of page markup. Structured
// data is authoritative when present, so it runs ahead of every other
// strategy. Malformed blocks are skipped silently.
func extractJSONLD(html string) (patch model.PagePatch) {
	for _, m := range jsonLDScriptRe.FindAllStringSubmatch(html, -1) {
		var entity jsonLDEntity
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &entity); err != nil {
			// Some sites wrap multiple entities in a top-level array.
			var entities []jsonLDEntity
			if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &entities); err != nil {
				continue
			}
			for _, e := range entities {
				mergeEntity(&patch, e)
			}
			continue
		}
		mergeEntity(&patch, entity)
		for _, e := range entity.Graph {
			mergeEntity(&patch, e)
		}
	}
	return patch
}

func mergeEntity(patch *model.PagePatch, e jsonLDEntity) {
	if !e.Type.isBusiness() {
		return
	}
	patch.Structured = true
	if patch.Email == "" && e.Email != "" {
		patch.Email = strings.TrimSpace(strings.TrimPrefix(e.Email, "mailto:"))
	}
	if patch.Phone == "" && e.Telephone != "" {
		patch.Phone = strings.TrimSpace(e.Telephone)
	}
	if patch.Description == "" && e.Description != "" {
		patch.Description = strings.TrimSpace(e.Description)
	}

	for _, cp := range decodeContactPoints(e.ContactPoint) {
		if patch.Email == "" && cp.Email != "" {
			patch.Email = strings.TrimSpace(cp.Email)
		}
		if patch.Phone == "" && cp.Telephone != "" {
			patch.Phone = strings.TrimSpace(cp.Telephone)
		}
		if patch.ContactName == "" && cp.Name != "" {
			patch.ContactName = strings.TrimSpace(cp.Name)
		}
	}

	patch.Services = append(patch.Services, decodeOfferNames(e.MakesOffer)...)
	if e.HasOfferCatalog != nil {
		patch.Services = append(patch.Services, decodeOfferNames(e.HasOfferCatalog.ItemListElement)...)
	}
}

// decodeContactPoints tolerates both a single object and an array.
func decodeContactPoints(raw json.RawMessage) []contactPoint {
	if len(raw) == 0 {
		return nil
	}
	var one contactPoint
	if err := json.Unmarshal(raw, &one); err == nil {
		return []contactPoint{one}
	}
	var many []contactPoint
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}

func decodeOfferNames(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var offers []offer
	if err := json.Unmarshal(raw, &offers); err != nil {
		var one offer
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil
		}
		offers = []offer{one}
	}
	var names []string
	for _, o := range offers {
		name := o.Name
		if name == "" && o.ItemOffered != nil {
			name = o.ItemOffered.Name
		}
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

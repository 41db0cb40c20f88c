package anthropic

import "strings"

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint set to a 1-hour TTL. Selector and scorer prompts are identical
// across candidates within a run, so the warm cache pays for itself after the
// first candidate.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "1h",
			},
		},
	}
}

// CleanJSON strips markdown code fences that models occasionally wrap around
// JSON payloads despite instructions.
func CleanJSON(text string) string {
	out := strings.TrimSpace(text)
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}

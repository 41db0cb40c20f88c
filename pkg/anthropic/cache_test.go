package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildCachedSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("system prompt")
	assert.Len(t, blocks, 1)
	assert.Equal(t, "system prompt", blocks[0].Text)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"  \n{\"a\": 1}\n  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanJSON(tt.in))
	}
}

func TestTokenUsageAddAndEstimate(t *testing.T) {
	u := TokenUsage{InputTokens: 1000, OutputTokens: 500}
	u.Add(TokenUsage{InputTokens: 1000, OutputTokens: 500, CacheReadInputTokens: 2000})

	assert.Equal(t, int64(2000), u.InputTokens)
	assert.Equal(t, int64(1000), u.OutputTokens)
	assert.Equal(t, int64(2000), u.CacheReadInputTokens)

	assert.Zero(t, u.EstimateCost("unknown-model"))
	assert.Greater(t, u.EstimateCost("claude-haiku-4-5-20251001"), 0.0)
}

func TestMessageResponseText(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "hello "},
		{Type: "text", Text: "world"},
	}}
	assert.Equal(t, "hello world", resp.Text())
}

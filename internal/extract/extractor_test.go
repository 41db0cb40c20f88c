package extract

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/pkg/anthropic"
	aimocks "github.com/sells-group/prospect-cli/pkg/anthropic/mocks"
)

// fakePage serves canned HTML per URL and records navigations.
type fakePage struct {
	pages      map[string]string
	screenshot []byte
	navigated  []string
	failURL    string
}

func (f *fakePage) Navigate(ctx context.Context, url string) error {
	if url == f.failURL {
		return fmt.Errorf("net::ERR_CONNECTION_RESET")
	}
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakePage) HTML(ctx context.Context) (string, error) {
	if len(f.navigated) == 0 {
		return "", fmt.Errorf("no page loaded")
	}
	return f.pages[f.navigated[len(f.navigated)-1]], nil
}

func (f *fakePage) Text(ctx context.Context) (string, error) {
	html, err := f.HTML(ctx)
	if err != nil {
		return "", err
	}
	return stripMarkupRe.ReplaceAllString(html, "\n"), nil
}

func (f *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	if f.screenshot == nil {
		return nil, fmt.Errorf("screenshot unavailable")
	}
	return f.screenshot, nil
}

func selection(urls ...string) model.PageSelection {
	sel := model.PageSelection{Path: model.PathSucceeded}
	for i, u := range urls {
		pt := model.PageTypeOther
		if i == 0 {
			pt = model.PageTypeHome
		}
		sel.Pages = append(sel.Pages, model.DiscoveredPage{URL: u, Type: pt, Depth: 1})
	}
	return sel
}

func testOpts() Options {
	return Options{
		Weights:             model.DefaultConfidenceWeights(),
		EscalationThreshold: 50,
		PageTimeout:         time.Second,
		VisionTimeout:       time.Second,
		VisionModel:         "sonnet-test",
	}
}

func TestExtract_FoldsAcrossPages(t *testing.T) {
	page := &fakePage{pages: map[string]string{
		"https://acme.example/": `<html><a href="mailto:first@acme.example">email</a>
<p>We are a family-owned plumbing company that has served the greater Tacoma area with honest pricing since 2003.</p></html>`,
		"https://acme.example/contact": `<html><a href="mailto:second@acme.example">email</a>
<a href="tel:+12065550101">call</a></html>`,
	}}

	e := New(page, nil, testOpts())
	record, _, err := e.Extract(context.Background(), selection(
		"https://acme.example/", "https://acme.example/contact",
	))
	require.NoError(t, err)

	// Sticky: first page's email survives the second page's different one.
	assert.Equal(t, "first@acme.example", record.Email)
	assert.Equal(t, "+12065550101", record.Phone)
	assert.NotEmpty(t, record.Description)
	assert.Equal(t, []model.PageType{model.PageTypeHome, model.PageTypeOther}, record.PagesVisited)
	// email 30 + phone 25 + description 20
	assert.Equal(t, 75, record.Confidence)
	assert.False(t, record.VisionUsed)
}

func TestExtract_PageFailureNonFatal(t *testing.T) {
	page := &fakePage{
		pages: map[string]string{
			"https://acme.example/contact": `<a href="mailto:hi@acme.example">x</a><a href="tel:+12065550101">c</a>` +
				`<p>A long description paragraph about the business that is certainly over eighty characters in length.</p>`,
		},
		failURL: "https://acme.example/",
	}

	e := New(page, nil, testOpts())
	record, _, err := e.Extract(context.Background(), selection(
		"https://acme.example/", "https://acme.example/contact",
	))
	require.NoError(t, err)
	assert.Equal(t, "hi@acme.example", record.Email)
	assert.Len(t, record.PagesVisited, 1)
}

func TestExtract_VisionEscalationFillsGaps(t *testing.T) {
	page := &fakePage{
		pages:      map[string]string{"https://acme.example/": "<html><body>nothing useful</body></html>"},
		screenshot: []byte{0x89, 0x50, 0x4e, 0x47},
	}
	ai := aimocks.NewMockClient(t)
	ai.On("CreateVisionMessage", mock.Anything, mock.MatchedBy(func(req anthropic.VisionRequest) bool {
		return req.ImageMediaType == "image/png" && len(req.ImageData) > 0
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: `{"email":"seen@acme.example","phone":"(206) 555-0101","contact_name":"","description":"","services":[]}`}},
		Usage:   anthropic.TokenUsage{InputTokens: 900, OutputTokens: 40},
	}, nil).Once()

	e := New(page, ai, testOpts())
	record, usage, err := e.Extract(context.Background(), selection("https://acme.example/"))
	require.NoError(t, err)

	assert.True(t, record.VisionUsed)
	assert.Equal(t, "seen@acme.example", record.Email)
	assert.Equal(t, 55, record.Confidence)
	assert.Equal(t, int64(900), usage.InputTokens)
}

func TestExtract_NoEscalationAboveThreshold(t *testing.T) {
	page := &fakePage{pages: map[string]string{
		"https://acme.example/": `<a href="mailto:hi@acme.example">x</a><a href="tel:+12065550101">c</a>`,
	}}
	ai := aimocks.NewMockClient(t) // no expectations: any vision call fails the test

	e := New(page, ai, testOpts())
	record, _, err := e.Extract(context.Background(), selection("https://acme.example/"))
	require.NoError(t, err)
	assert.Equal(t, 55, record.Confidence)
	assert.False(t, record.VisionUsed)
}

func TestExtract_VisionFailureLeavesRecordUsable(t *testing.T) {
	page := &fakePage{
		pages: map[string]string{"https://acme.example/": "<html>bare</html>"},
		// no screenshot available
	}
	ai := aimocks.NewMockClient(t)

	e := New(page, ai, testOpts())
	record, _, err := e.Extract(context.Background(), selection("https://acme.example/"))
	require.NoError(t, err)
	assert.True(t, record.VisionUsed, "escalation attempt is recorded even when it yields nothing")
	assert.Empty(t, record.Email)
}

func TestExtract_EmptySelection(t *testing.T) {
	e := New(&fakePage{}, nil, testOpts())
	_, _, err := e.Extract(context.Background(), model.PageSelection{})
	require.Error(t, err)
}

func TestExtract_StructuredDataWins(t *testing.T) {
	page := &fakePage{pages: map[string]string{
		"https://acme.example/": `<script type="application/ld+json">{"@type":"LocalBusiness","email":"ld@acme.example","telephone":"206-555-0100"}</script>
<a href="mailto:other@acme.example">contact</a><a href="tel:+1999">z</a>` +
			`<p>A long description paragraph about the business that is certainly over eighty characters in length.</p>`,
	}}

	e := New(page, nil, testOpts())
	record, _, err := e.Extract(context.Background(), selection("https://acme.example/"))
	require.NoError(t, err)
	assert.Equal(t, "ld@acme.example", record.Email)
	assert.Equal(t, "206-555-0100", record.Phone)
}

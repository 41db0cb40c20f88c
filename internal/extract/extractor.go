// Package extract visits selected pages in a browser session and folds what
// each page yields into one ExtractionRecord. Structured data wins, cheaper
// text strategies fill the gaps, and a single vision call on the homepage
// screenshot is the escalation of last resort.
package extract

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/browser"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/pkg/anthropic"
)

const visionSystemPrompt = `You read a screenshot of a small-business website homepage and extract contact information. Respond with a valid JSON object and nothing else:
{"email": "", "phone": "", "contact_name": "", "description": "", "services": []}
Leave a field empty when the screenshot does not show it. Never guess.`

// Options configures an Extractor.
type Options struct {
	Weights             model.ConfidenceWeights
	EscalationThreshold int
	PageTimeout         time.Duration
	VisionTimeout       time.Duration
	VisionModel         string
}

// Extractor drives page visits for one candidate.
type Extractor struct {
	page    Page
	ai      anthropic.Client
	opts    Options
	visited []VisitedPage
}

// VisitedPage is the visible text of one successfully loaded page, kept so
// downstream intelligence aggregation does not re-fetch.
type VisitedPage struct {
	Type model.PageType
	Text string
}

// Page is the browser surface the extractor needs. *browser.Session
// satisfies it.
type Page interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

var _ Page = (*browser.Session)(nil)

// New creates an Extractor. ai may be nil to disable vision escalation.
func New(page Page, ai anthropic.Client, opts Options) *Extractor {
	if opts.EscalationThreshold <= 0 {
		opts.EscalationThreshold = 50
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 25 * time.Second
	}
	if opts.VisionTimeout <= 0 {
		opts.VisionTimeout = 45 * time.Second
	}
	if opts.Weights == (model.ConfidenceWeights{}) {
		opts.Weights = model.DefaultConfidenceWeights()
	}
	return &Extractor{page: page, ai: ai, opts: opts}
}

// Extract visits the selected pages in order and returns the folded record
// plus any vision-call token usage. A failed page visit is logged and skipped;
// the record keeps whatever earlier pages produced. Confidence is recomputed
// after every page, and once more after the optional vision escalation.
func (e *Extractor) Extract(ctx context.Context, sel model.PageSelection) (model.ExtractionRecord, anthropic.TokenUsage, error) {
	var record model.ExtractionRecord
	var usage anthropic.TokenUsage
	e.visited = nil

	if len(sel.Pages) == 0 {
		return record, usage, eris.New("extract: empty page selection")
	}

	for _, page := range sel.Pages {
		if err := ctx.Err(); err != nil {
			return record, usage, err
		}
		patch, text, err := e.visitPage(ctx, page)
		if err != nil {
			zap.L().Warn("extract: page visit failed",
				zap.String("url", page.URL),
				zap.String("page_type", string(page.Type)),
				zap.Error(err),
			)
			continue
		}
		e.visited = append(e.visited, VisitedPage{Type: page.Type, Text: text})
		record.Apply(patch)
		record.Recompute(e.opts.Weights)
		zap.L().Debug("extract: page folded",
			zap.String("url", page.URL),
			zap.Int("confidence", record.Confidence),
			zap.Bool("structured", patch.Structured),
		)
	}

	if record.Confidence < e.opts.EscalationThreshold && e.ai != nil {
		visionUsage := e.escalate(ctx, sel, &record)
		usage.Add(visionUsage)
		record.Recompute(e.opts.Weights)
	}

	return record, usage, nil
}

// Visited returns the visible text of the pages the last Extract call loaded
// successfully, in visit order.
func (e *Extractor) Visited() []VisitedPage {
	return e.visited
}

// visitPage loads one URL and runs the strategy ladder over its content.
func (e *Extractor) visitPage(ctx context.Context, page model.DiscoveredPage) (model.PagePatch, string, error) {
	vctx, cancel := context.WithTimeout(ctx, e.opts.PageTimeout)
	defer cancel()

	if err := e.page.Navigate(vctx, page.URL); err != nil {
		return model.PagePatch{}, "", err
	}
	html, err := e.page.HTML(vctx)
	if err != nil {
		return model.PagePatch{}, "", err
	}
	text, err := e.page.Text(vctx)
	if err != nil {
		// Visible text is a fallback input only; markup alone still works.
		text = ""
	}

	patch := extractJSONLD(html)
	fallback := extractFromMarkup(html, text)
	if patch.Email == "" {
		patch.Email = fallback.Email
	}
	if patch.Phone == "" {
		patch.Phone = fallback.Phone
	}
	if patch.ContactName == "" {
		patch.ContactName = fallback.ContactName
	}
	if patch.Description == "" {
		patch.Description = fallback.Description
	}
	if len(patch.Services) == 0 {
		patch.Services = fallback.Services
	}
	if patch.Source == "" {
		if patch.Structured {
			patch.Source = "jsonld"
		} else {
			patch.Source = fallback.Source
		}
	}
	patch.PageType = page.Type

	return patch, text, nil
}

type visionReply struct {
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	ContactName string   `json:"contact_name"`
	Description string   `json:"description"`
	Services    []string `json:"services"`
}

// escalate takes one homepage screenshot and asks the vision model to fill
// the remaining gaps. It runs at most once per candidate and marks the record
// even when the call yields nothing, so the spend is attributable.
func (e *Extractor) escalate(ctx context.Context, sel model.PageSelection, record *model.ExtractionRecord) anthropic.TokenUsage {
	var usage anthropic.TokenUsage
	record.VisionUsed = true

	vctx, cancel := context.WithTimeout(ctx, e.opts.VisionTimeout)
	defer cancel()

	home := sel.Pages[0]
	if err := e.page.Navigate(vctx, home.URL); err != nil {
		zap.L().Warn("extract: vision navigation failed", zap.Error(err))
		return usage
	}
	shot, err := e.page.Screenshot(vctx)
	if err != nil {
		zap.L().Warn("extract: screenshot failed", zap.Error(err))
		return usage
	}

	resp, err := e.ai.CreateVisionMessage(vctx, anthropic.VisionRequest{
		Model:          e.opts.VisionModel,
		MaxTokens:      1024,
		System:         []anthropic.SystemBlock{{Text: visionSystemPrompt}},
		Prompt:         "Extract the business contact details visible in this homepage screenshot.",
		ImageMediaType: "image/png",
		ImageData:      shot,
	})
	if err != nil {
		zap.L().Warn("extract: vision call failed", zap.Error(err))
		return usage
	}
	usage = resp.Usage
	resp.Usage.LogCost(e.opts.VisionModel, "extract_vision")

	var reply visionReply
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(resp.Text())), &reply); err != nil {
		zap.L().Warn("extract: vision reply not parseable", zap.Error(err))
		return usage
	}

	record.Apply(model.PagePatch{
		Email:       reply.Email,
		Phone:       reply.Phone,
		ContactName: reply.ContactName,
		Description: reply.Description,
		Services:    reply.Services,
		Source:      "vision",
	})
	return usage
}

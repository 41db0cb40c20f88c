// Package cost attributes run spend across providers: Anthropic token usage
// by model, plus flat-rate place search fees.
package cost

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/pkg/anthropic"
)

// Tracker accumulates spend for one discovery run. Safe for concurrent use by
// pipeline workers.
type Tracker struct {
	rates config.PricingConfig

	mu       sync.Mutex
	byModel  map[string]anthropic.TokenUsage
	searches int
}

// NewTracker creates a Tracker priced by cfg.
func NewTracker(cfg config.PricingConfig) *Tracker {
	return &Tracker{
		rates:   cfg,
		byModel: map[string]anthropic.TokenUsage{},
	}
}

// AddUsage records Anthropic token usage attributed to a model.
func (t *Tracker) AddUsage(model string, usage anthropic.TokenUsage) {
	if model == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.byModel[model]
	u.Add(usage)
	t.byModel[model] = u
}

// AddSearches records n text-search requests against the places API.
func (t *Tracker) AddSearches(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.searches += n
}

// TotalUSD prices everything recorded so far.
func (t *Tracker) TotalUSD() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := float64(t.searches) * t.rates.PlacesPerSearch
	for model, usage := range t.byModel {
		total += t.priceModel(model, usage)
	}
	return total
}

// priceModel prices one model's usage from the configured rates, falling back
// to the client's built-in table for models absent from config.
func (t *Tracker) priceModel(model string, u anthropic.TokenUsage) float64 {
	rate, ok := t.rates.Anthropic[model]
	if !ok {
		return u.EstimateCost(model)
	}
	inCost := (float64(u.InputTokens) / 1e6) * rate.Input
	outCost := (float64(u.OutputTokens) / 1e6) * rate.Output
	cacheWrite := (float64(u.CacheCreationInputTokens) / 1e6) * rate.Input * rate.CacheWriteMul
	cacheRead := (float64(u.CacheReadInputTokens) / 1e6) * rate.Input * rate.CacheReadMul
	return inCost + outCost + cacheWrite + cacheRead
}

// LogSummary emits one structured line per model plus the run total.
func (t *Tracker) LogSummary() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for model, usage := range t.byModel {
		zap.L().Info("run spend by model",
			zap.String("model", model),
			zap.Int64("input_tokens", usage.InputTokens),
			zap.Int64("output_tokens", usage.OutputTokens),
			zap.Float64("cost_usd", t.priceModel(model, usage)),
		)
	}

	total := float64(t.searches) * t.rates.PlacesPerSearch
	for model, usage := range t.byModel {
		total += t.priceModel(model, usage)
	}
	zap.L().Info("run spend total",
		zap.Int("place_searches", t.searches),
		zap.Float64("search_cost_usd", float64(t.searches)*t.rates.PlacesPerSearch),
		zap.Float64("total_usd", total),
	)
}

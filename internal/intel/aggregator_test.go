package intel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/prospect-cli/internal/model"
)

func fixedAggregator() *Aggregator {
	return NewAggregatorAt(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
}

func TestAggregate_EmployeeAndFoundedSignals(t *testing.T) {
	bi := fixedAggregator().Aggregate([]PageBody{
		{Type: model.PageTypeAbout, Text: "Our team of 12 has been proudly serving Tacoma since 2008."},
	})

	assert.Equal(t, 12, bi.EmployeeCountHint)
	assert.Equal(t, 2008, bi.FoundedYear)
	assert.Equal(t, 18, bi.YearsInBusiness, "derived from founded year")
}

func TestAggregate_ExplicitYearsBeatsDerivation(t *testing.T) {
	bi := fixedAggregator().Aggregate([]PageBody{
		{Type: model.PageTypeAbout, Text: "Founded in 2010. Over 20 years of combined experience."},
	})
	assert.Equal(t, 2010, bi.FoundedYear)
	assert.Equal(t, 20, bi.YearsInBusiness)
}

func TestAggregate_PricingVisibility(t *testing.T) {
	byPage := fixedAggregator().Aggregate([]PageBody{
		{Type: model.PageTypePricing, Text: "Plans start here."},
	})
	assert.True(t, byPage.PricingVisible)

	byDollar := fixedAggregator().Aggregate([]PageBody{
		{Type: model.PageTypeHome, Text: "Haircuts from $35, color from $120."},
	})
	assert.True(t, byDollar.PricingVisible)

	none := fixedAggregator().Aggregate([]PageBody{
		{Type: model.PageTypeHome, Text: "Call for a quote."},
	})
	assert.False(t, none.PricingVisible)
}

func TestAggregate_ContentFreshness(t *testing.T) {
	fresh := fixedAggregator().Aggregate([]PageBody{
		{Type: model.PageTypeBlog, Text: "Posted January 2026: our winter maintenance guide."},
	})
	assert.True(t, fresh.HasBlog)
	assert.Equal(t, 2026, fresh.LatestContentYear)
	assert.True(t, fresh.ContentFresh)

	stale := fixedAggregator().Aggregate([]PageBody{
		{Type: model.PageTypeBlog, Text: "Copyright 2019. All rights reserved."},
	})
	assert.Equal(t, 2019, stale.LatestContentYear)
	assert.False(t, stale.ContentFresh)
}

func TestAggregate_FutureYearIgnored(t *testing.T) {
	bi := fixedAggregator().Aggregate([]PageBody{
		{Type: model.PageTypeHome, Text: "Book ahead for 2099 events. Updated 2025."},
	})
	assert.Equal(t, 2025, bi.LatestContentYear)
}

func TestAggregate_EmptyInput(t *testing.T) {
	bi := fixedAggregator().Aggregate(nil)
	assert.NotNil(t, bi)
	assert.Zero(t, bi.EmployeeCountHint)
	assert.False(t, bi.ContentFresh)
}

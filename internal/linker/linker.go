// Package linker applies campaign-scoped deduplication. Prospects are global
// (one row per place ID); campaigns attach to them through links. The linker
// decides, per candidate, whether to create, reuse, or skip.
package linker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/store"
)

// Decision is the linker's pre-enrichment verdict for one candidate.
type Decision struct {
	Outcome model.LinkOutcome
	// Existing is the stored prospect when the place was seen before.
	Existing *model.Prospect
	// ReuseEnrichment reports that Existing carries extraction data fresh
	// enough to reuse instead of re-crawling the site.
	ReuseEnrichment bool
}

// Linker resolves candidates against the store and creates campaign links.
// Safe for concurrent use by pipeline workers.
type Linker struct {
	store    store.Store
	reuseTTL time.Duration
	now      func() time.Time
	caser    cases.Caser

	mu    sync.Mutex
	known map[string]map[string]struct{} // campaign ID -> linked place IDs
}

// New creates a Linker. A non-positive reuse TTL falls back to 30 days.
func New(st store.Store, cfg config.DedupeConfig) *Linker {
	ttl := time.Duration(cfg.ReuseTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 720 * time.Hour
	}
	return &Linker{
		store:    st,
		reuseTTL: ttl,
		now:      time.Now,
		caser:    cases.Fold(),
		known:    map[string]map[string]struct{}{},
	}
}

// Resolve classifies a candidate before any enrichment spend:
//
//   - place already linked to this campaign: skip
//   - place known but not in this campaign: reuse the prospect, and reuse
//     its extraction too when it is fresher than the TTL
//   - place never seen: create
func (l *Linker) Resolve(ctx context.Context, campaignID string, cand model.Candidate) (*Decision, error) {
	if cand.PlaceID == "" {
		return nil, eris.New("linker: candidate without place_id")
	}

	linked, err := l.linkedInCampaign(ctx, campaignID, cand.PlaceID)
	if err != nil {
		return nil, err
	}
	if linked {
		return &Decision{Outcome: model.LinkSkippedExisting}, nil
	}

	existing, err := l.store.GetProspectByPlaceID(ctx, cand.PlaceID)
	if err != nil {
		return nil, eris.Wrapf(err, "linker: lookup place %s", cand.PlaceID)
	}
	if existing == nil {
		return &Decision{Outcome: model.LinkCreatedProspect}, nil
	}

	if existing.Name != cand.Name && l.normalizeName(existing.Name) == l.normalizeName(cand.Name) {
		zap.L().Debug("prospect name drift",
			zap.String("place_id", cand.PlaceID),
			zap.String("stored", existing.Name),
			zap.String("candidate", cand.Name))
	}

	fresh := existing.EnrichedAt != nil && l.now().Sub(*existing.EnrichedAt) <= l.reuseTTL
	return &Decision{
		Outcome:         model.LinkReusedAndLinked,
		Existing:        existing,
		ReuseEnrichment: fresh,
	}, nil
}

// Commit upserts the prospect and links it to the campaign. The returned bool
// reports whether a new link was created; false means another worker or an
// earlier run linked the same pair first.
func (l *Linker) Commit(ctx context.Context, campaignID string, p *model.Prospect) (*model.Prospect, bool, error) {
	persisted, err := l.store.UpsertProspect(ctx, p)
	if err != nil {
		return nil, false, eris.Wrapf(err, "linker: upsert prospect %s", p.PlaceID)
	}
	linked, err := l.store.LinkProspect(ctx, campaignID, persisted.ID)
	if err != nil {
		return nil, false, eris.Wrapf(err, "linker: link prospect %s", persisted.ID)
	}

	l.mu.Lock()
	if set, ok := l.known[campaignID]; ok {
		set[persisted.PlaceID] = struct{}{}
	}
	l.mu.Unlock()
	return persisted, linked, nil
}

// linkedInCampaign reports whether the place is already linked to the
// campaign, loading the campaign's place-ID set from the store on first use.
// The membership check happens under the same lock Commit updates the set
// with, so concurrent workers never read the map bare.
func (l *Linker) linkedInCampaign(ctx context.Context, campaignID, placeID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.known[campaignID]
	if !ok {
		ids, err := l.store.ListCampaignPlaceIDs(ctx, campaignID)
		if err != nil {
			return false, eris.Wrapf(err, "linker: load campaign %s", campaignID)
		}
		set = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		l.known[campaignID] = set
	}
	_, linked := set[placeID]
	return linked, nil
}

// normalizeName case-folds and collapses whitespace so cosmetic listing edits
// do not read as different businesses.
func (l *Linker) normalizeName(name string) string {
	return strings.Join(strings.Fields(l.caser.String(name)), " ")
}

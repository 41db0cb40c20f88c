// Package store persists prospects, campaign links, and discovery runs.
// Postgres is the production backend; SQLite serves single-user setups.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/model"
)

// ProspectFilter narrows ListProspects.
type ProspectFilter struct {
	CampaignID   string
	RelevantOnly bool
	Limit        int
	Offset       int
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	CampaignID string
	Status     model.RunStatus
	Limit      int
}

// Store is the persistence interface for the discovery pipeline.
type Store interface {
	// Prospects. One row per external place ID, shared across campaigns.
	UpsertProspect(ctx context.Context, p *model.Prospect) (*model.Prospect, error)
	GetProspectByPlaceID(ctx context.Context, placeID string) (*model.Prospect, error)
	ListProspects(ctx context.Context, filter ProspectFilter) ([]model.Prospect, error)

	// Campaign links. LinkProspect reports false when the (campaign,
	// prospect) pair already exists; that outcome is not an error.
	LinkProspect(ctx context.Context, campaignID, prospectID string) (bool, error)
	ListCampaignPlaceIDs(ctx context.Context, campaignID string) ([]string, error)

	// Runs bookkeeping.
	CreateRun(ctx context.Context, campaignID, query string) (*model.DiscoveryRun, error)
	FinishRun(ctx context.Context, run *model.DiscoveryRun) error
	GetRun(ctx context.Context, runID string) (*model.DiscoveryRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.DiscoveryRun, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}

// New opens the backend named by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres", "":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		})
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}

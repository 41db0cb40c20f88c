package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/db"
	"github.com/sells-group/prospect-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations.
var preparedStatements = map[string]string{
	"get_prospect_by_place": `SELECT id, place_id, name, categories, address, rating, review_count, last_review_at, website, website_status, social_profiles, extraction, relevance, enriched_at, created_at, updated_at FROM prospects WHERE place_id = $1`,
	"link_prospect":         `INSERT INTO campaign_links (id, campaign_id, prospect_id, status, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (campaign_id, prospect_id) DO NOTHING`,
	"list_campaign_places":  `SELECT p.place_id FROM prospects p JOIN campaign_links cl ON cl.prospect_id = p.id WHERE cl.campaign_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS prospects (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	place_id        TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL,
	categories      JSONB,
	address         JSONB NOT NULL DEFAULT '{}',
	rating          DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_count    INTEGER NOT NULL DEFAULT 0,
	last_review_at  TIMESTAMPTZ,
	website         TEXT NOT NULL DEFAULT '',
	website_status  TEXT NOT NULL DEFAULT '',
	social_profiles JSONB,
	extraction      JSONB,
	relevance       JSONB,
	enriched_at     TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_prospects_place_id ON prospects(place_id);

CREATE TABLE IF NOT EXISTS campaign_links (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	campaign_id TEXT NOT NULL,
	prospect_id TEXT NOT NULL REFERENCES prospects(id),
	status      TEXT NOT NULL DEFAULT 'new',
	notes       TEXT,
	score_override INTEGER,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (campaign_id, prospect_id)
);

CREATE INDEX IF NOT EXISTS idx_campaign_links_campaign ON campaign_links(campaign_id);

CREATE TABLE IF NOT EXISTS discovery_runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	campaign_id TEXT NOT NULL,
	query       TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	discovered  INTEGER NOT NULL DEFAULT 0,
	enriched    INTEGER NOT NULL DEFAULT 0,
	linked      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	discarded   INTEGER NOT NULL DEFAULT 0,
	cost_usd    DOUBLE PRECISION NOT NULL DEFAULT 0,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_discovery_runs_campaign ON discovery_runs(campaign_id);
CREATE INDEX IF NOT EXISTS idx_discovery_runs_status ON discovery_runs(status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const prospectColumns = `id, place_id, name, categories, address, rating, review_count, last_review_at, website, website_status, social_profiles, extraction, relevance, enriched_at, created_at, updated_at`

// UpsertProspect inserts a prospect or refreshes the existing row for the
// same place ID. The returned prospect carries the persisted ID and
// timestamps.
func (s *PostgresStore) UpsertProspect(ctx context.Context, p *model.Prospect) (*model.Prospect, error) {
	if p.PlaceID == "" {
		return nil, eris.New("postgres: prospect without place_id")
	}
	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	categories, err := marshalNullable(p.Categories)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal categories")
	}
	address, err := json.Marshal(p.Address)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal address")
	}
	social, err := marshalNullable(p.SocialProfiles)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal social profiles")
	}
	extraction, err := marshalNullable(p.Extraction)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal extraction")
	}
	relevance, err := marshalNullable(p.Relevance)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal relevance")
	}

	var persistedID string
	var createdAt time.Time
	err = s.pool.QueryRow(ctx,
		`INSERT INTO prospects (id, place_id, name, categories, address, rating, review_count, last_review_at, website, website_status, social_profiles, extraction, relevance, enriched_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		 ON CONFLICT (place_id) DO UPDATE SET
		   name = $3, categories = $4, address = $5, rating = $6, review_count = $7,
		   last_review_at = $8, website = $9, website_status = $10, social_profiles = $11,
		   extraction = COALESCE($12, prospects.extraction),
		   relevance = COALESCE($13, prospects.relevance),
		   enriched_at = COALESCE($14, prospects.enriched_at),
		   updated_at = $15
		 RETURNING id, created_at`,
		id, p.PlaceID, p.Name, categories, address, p.Rating, p.ReviewCount,
		p.LastReviewAt, p.Website, string(p.WebsiteStatus), social,
		extraction, relevance, p.EnrichedAt, now,
	).Scan(&persistedID, &createdAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert prospect %s", p.PlaceID)
	}

	out := *p
	out.ID = persistedID
	out.CreatedAt = createdAt
	out.UpdatedAt = now
	return &out, nil
}

// GetProspectByPlaceID returns (nil, nil) when no prospect exists.
func (s *PostgresStore) GetProspectByPlaceID(ctx context.Context, placeID string) (*model.Prospect, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+prospectColumns+` FROM prospects WHERE place_id = $1`,
		placeID,
	)
	p, err := scanProspect(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get prospect %s", placeID)
	}
	return p, nil
}

func (s *PostgresStore) ListProspects(ctx context.Context, filter ProspectFilter) ([]model.Prospect, error) {
	query := `SELECT ` + prospectColumnsPrefixed("p") + ` FROM prospects p`
	args := []any{}
	argIdx := 1

	if filter.CampaignID != "" {
		query += fmt.Sprintf(` JOIN campaign_links cl ON cl.prospect_id = p.id AND cl.campaign_id = $%d`, argIdx)
		args = append(args, filter.CampaignID)
		argIdx++
	}
	query += ` WHERE true`
	if filter.RelevantOnly {
		query += ` AND (p.relevance->>'relevant')::boolean = true`
	}
	query += ` ORDER BY p.updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list prospects")
	}
	defer rows.Close()

	var prospects []model.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan prospect")
		}
		prospects = append(prospects, *p)
	}
	return prospects, eris.Wrap(rows.Err(), "postgres: list prospects iterate")
}

// LinkProspect atomically creates the (campaign, prospect) link. The unique
// constraint is the source of truth for "already linked": a conflicting
// insert affects zero rows and returns false.
func (s *PostgresStore) LinkProspect(ctx context.Context, campaignID, prospectID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO campaign_links (id, campaign_id, prospect_id, status, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (campaign_id, prospect_id) DO NOTHING`,
		uuid.New().String(), campaignID, prospectID, "new", time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: link prospect %s to campaign %s", prospectID, campaignID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListCampaignPlaceIDs(ctx context.Context, campaignID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.place_id FROM prospects p JOIN campaign_links cl ON cl.prospect_id = p.id WHERE cl.campaign_id = $1`,
		campaignID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list campaign place ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan place id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list campaign place ids iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context, campaignID, query string) (*model.DiscoveryRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO discovery_runs (id, campaign_id, query, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, campaignID, query, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.DiscoveryRun{
		ID:         id,
		CampaignID: campaignID,
		Query:      query,
		Status:     model.RunStatusRunning,
		StartedAt:  now,
	}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *model.DiscoveryRun) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE discovery_runs SET status = $1, discovered = $2, enriched = $3, linked = $4, skipped = $5, discarded = $6, cost_usd = $7, finished_at = $8 WHERE id = $9`,
		string(run.Status), run.Discovered, run.Enriched, run.Linked,
		run.Skipped, run.Discarded, run.CostUSD, now, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", run.ID)
	}
	run.FinishedAt = &now
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.DiscoveryRun, error) {
	var r model.DiscoveryRun
	err := s.pool.QueryRow(ctx,
		`SELECT id, campaign_id, query, status, discovered, enriched, linked, skipped, discarded, cost_usd, started_at, finished_at FROM discovery_runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.CampaignID, &r.Query, &r.Status, &r.Discovered, &r.Enriched,
		&r.Linked, &r.Skipped, &r.Discarded, &r.CostUSD, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.DiscoveryRun, error) {
	query := `SELECT id, campaign_id, query, status, discovered, enriched, linked, skipped, discarded, cost_usd, started_at, finished_at FROM discovery_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.CampaignID != "" {
		query += fmt.Sprintf(` AND campaign_id = $%d`, argIdx)
		args = append(args, filter.CampaignID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.DiscoveryRun
	for rows.Next() {
		var r model.DiscoveryRun
		if err := rows.Scan(&r.ID, &r.CampaignID, &r.Query, &r.Status, &r.Discovered,
			&r.Enriched, &r.Linked, &r.Skipped, &r.Discarded, &r.CostUSD,
			&r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// --- row helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProspect(row rowScanner) (*model.Prospect, error) {
	var p model.Prospect
	var categories, address, social, extraction, relevance []byte
	var status string

	err := row.Scan(&p.ID, &p.PlaceID, &p.Name, &categories, &address, &p.Rating,
		&p.ReviewCount, &p.LastReviewAt, &p.Website, &status, &social,
		&extraction, &relevance, &p.EnrichedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.WebsiteStatus = model.WebsiteStatus(status)

	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &p.Categories); err != nil {
			return nil, eris.Wrap(err, "unmarshal categories")
		}
	}
	if len(address) > 0 {
		if err := json.Unmarshal(address, &p.Address); err != nil {
			return nil, eris.Wrap(err, "unmarshal address")
		}
	}
	if len(social) > 0 {
		if err := json.Unmarshal(social, &p.SocialProfiles); err != nil {
			return nil, eris.Wrap(err, "unmarshal social profiles")
		}
	}
	if len(extraction) > 0 {
		p.Extraction = &model.ExtractionRecord{}
		if err := json.Unmarshal(extraction, p.Extraction); err != nil {
			return nil, eris.Wrap(err, "unmarshal extraction")
		}
	}
	if len(relevance) > 0 {
		p.Relevance = &model.RelevanceResult{}
		if err := json.Unmarshal(relevance, p.Relevance); err != nil {
			return nil, eris.Wrap(err, "unmarshal relevance")
		}
	}
	return &p, nil
}

// marshalNullable returns nil for nil values so the column stays NULL instead
// of holding the string "null".
func marshalNullable(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []string:
		if val == nil {
			return nil, nil
		}
	case map[string]string:
		if val == nil {
			return nil, nil
		}
	case *model.ExtractionRecord:
		if val == nil {
			return nil, nil
		}
	case *model.RelevanceResult:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func prospectColumnsPrefixed(alias string) string {
	return alias + ".id, " + alias + ".place_id, " + alias + ".name, " + alias + ".categories, " +
		alias + ".address, " + alias + ".rating, " + alias + ".review_count, " + alias + ".last_review_at, " +
		alias + ".website, " + alias + ".website_status, " + alias + ".social_profiles, " +
		alias + ".extraction, " + alias + ".relevance, " + alias + ".enriched_at, " +
		alias + ".created_at, " + alias + ".updated_at"
}

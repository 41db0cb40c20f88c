package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospect-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS prospects (
	id              TEXT PRIMARY KEY,
	place_id        TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL,
	categories      TEXT,
	address         TEXT NOT NULL DEFAULT '{}',
	rating          REAL NOT NULL DEFAULT 0,
	review_count    INTEGER NOT NULL DEFAULT 0,
	last_review_at  DATETIME,
	website         TEXT NOT NULL DEFAULT '',
	website_status  TEXT NOT NULL DEFAULT '',
	social_profiles TEXT,
	extraction      TEXT,
	relevance       TEXT,
	enriched_at     DATETIME,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_prospects_place_id ON prospects(place_id);

CREATE TABLE IF NOT EXISTS campaign_links (
	id          TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL,
	prospect_id TEXT NOT NULL REFERENCES prospects(id),
	status      TEXT NOT NULL DEFAULT 'new',
	notes       TEXT,
	score_override INTEGER,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (campaign_id, prospect_id)
);

CREATE INDEX IF NOT EXISTS idx_campaign_links_campaign ON campaign_links(campaign_id);

CREATE TABLE IF NOT EXISTS discovery_runs (
	id          TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL,
	query       TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	discovered  INTEGER NOT NULL DEFAULT 0,
	enriched    INTEGER NOT NULL DEFAULT 0,
	linked      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	discarded   INTEGER NOT NULL DEFAULT 0,
	cost_usd    REAL NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_discovery_runs_campaign ON discovery_runs(campaign_id);
CREATE INDEX IF NOT EXISTS idx_discovery_runs_status ON discovery_runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertProspect(ctx context.Context, p *model.Prospect) (*model.Prospect, error) {
	if p.PlaceID == "" {
		return nil, eris.New("sqlite: prospect without place_id")
	}
	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	categories, err := marshalNullable(p.Categories)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal categories")
	}
	address, err := json.Marshal(p.Address)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal address")
	}
	social, err := marshalNullable(p.SocialProfiles)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal social profiles")
	}
	extraction, err := marshalNullable(p.Extraction)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal extraction")
	}
	relevance, err := marshalNullable(p.Relevance)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal relevance")
	}

	var persistedID string
	var createdAt time.Time
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO prospects (id, place_id, name, categories, address, rating, review_count, last_review_at, website, website_status, social_profiles, extraction, relevance, enriched_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (place_id) DO UPDATE SET
		   name = excluded.name, categories = excluded.categories,
		   address = excluded.address, rating = excluded.rating,
		   review_count = excluded.review_count, last_review_at = excluded.last_review_at,
		   website = excluded.website, website_status = excluded.website_status,
		   social_profiles = excluded.social_profiles,
		   extraction = COALESCE(excluded.extraction, prospects.extraction),
		   relevance = COALESCE(excluded.relevance, prospects.relevance),
		   enriched_at = COALESCE(excluded.enriched_at, prospects.enriched_at),
		   updated_at = excluded.updated_at
		 RETURNING id, created_at`,
		id, p.PlaceID, p.Name, nullableBytes(categories), string(address), p.Rating,
		p.ReviewCount, p.LastReviewAt, p.Website, string(p.WebsiteStatus),
		nullableBytes(social), nullableBytes(extraction), nullableBytes(relevance),
		p.EnrichedAt, now, now,
	).Scan(&persistedID, &createdAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert prospect %s", p.PlaceID)
	}

	out := *p
	out.ID = persistedID
	out.CreatedAt = createdAt
	out.UpdatedAt = now
	return &out, nil
}

func (s *SQLiteStore) GetProspectByPlaceID(ctx context.Context, placeID string) (*model.Prospect, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+prospectColumns+` FROM prospects WHERE place_id = ?`,
		placeID,
	)
	p, err := scanProspect(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get prospect %s", placeID)
	}
	return p, nil
}

func (s *SQLiteStore) ListProspects(ctx context.Context, filter ProspectFilter) ([]model.Prospect, error) {
	query := `SELECT ` + prospectColumnsPrefixed("p") + ` FROM prospects p`
	args := []any{}

	if filter.CampaignID != "" {
		query += ` JOIN campaign_links cl ON cl.prospect_id = p.id AND cl.campaign_id = ?`
		args = append(args, filter.CampaignID)
	}
	query += ` WHERE 1=1`
	if filter.RelevantOnly {
		query += ` AND json_extract(p.relevance, '$.relevant') = 1`
	}
	query += ` ORDER BY p.updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prospects")
	}
	defer rows.Close()

	var prospects []model.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prospect")
		}
		prospects = append(prospects, *p)
	}
	return prospects, eris.Wrap(rows.Err(), "sqlite: list prospects iterate")
}

func (s *SQLiteStore) LinkProspect(ctx context.Context, campaignID, prospectID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO campaign_links (id, campaign_id, prospect_id, status, created_at)
		 VALUES (?, ?, ?, 'new', ?)
		 ON CONFLICT (campaign_id, prospect_id) DO NOTHING`,
		uuid.New().String(), campaignID, prospectID, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: link prospect %s to campaign %s", prospectID, campaignID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: link rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListCampaignPlaceIDs(ctx context.Context, campaignID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.place_id FROM prospects p JOIN campaign_links cl ON cl.prospect_id = p.id WHERE cl.campaign_id = ?`,
		campaignID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list campaign place ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan place id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list campaign place ids iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, campaignID, query string) (*model.DiscoveryRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO discovery_runs (id, campaign_id, query, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, campaignID, query, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.DiscoveryRun{
		ID:         id,
		CampaignID: campaignID,
		Query:      query,
		Status:     model.RunStatusRunning,
		StartedAt:  now,
	}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.DiscoveryRun) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE discovery_runs SET status = ?, discovered = ?, enriched = ?, linked = ?, skipped = ?, discarded = ?, cost_usd = ?, finished_at = ? WHERE id = ?`,
		string(run.Status), run.Discovered, run.Enriched, run.Linked,
		run.Skipped, run.Discarded, run.CostUSD, now, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: finish run rows affected")
	}
	if n == 0 {
		return eris.Errorf("run not found: %s", run.ID)
	}
	run.FinishedAt = &now
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.DiscoveryRun, error) {
	var r model.DiscoveryRun
	err := s.db.QueryRowContext(ctx,
		`SELECT id, campaign_id, query, status, discovered, enriched, linked, skipped, discarded, cost_usd, started_at, finished_at FROM discovery_runs WHERE id = ?`,
		runID,
	).Scan(&r.ID, &r.CampaignID, &r.Query, &r.Status, &r.Discovered, &r.Enriched,
		&r.Linked, &r.Skipped, &r.Discarded, &r.CostUSD, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.DiscoveryRun, error) {
	query := `SELECT id, campaign_id, query, status, discovered, enriched, linked, skipped, discarded, cost_usd, started_at, finished_at FROM discovery_runs WHERE 1=1`
	args := []any{}

	if filter.CampaignID != "" {
		query += ` AND campaign_id = ?`
		args = append(args, filter.CampaignID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.DiscoveryRun
	for rows.Next() {
		var r model.DiscoveryRun
		if err := rows.Scan(&r.ID, &r.CampaignID, &r.Query, &r.Status, &r.Discovered,
			&r.Enriched, &r.Linked, &r.Skipped, &r.Discarded, &r.CostUSD,
			&r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// nullableBytes converts empty JSON payloads to a typed nil so database/sql
// writes NULL.
func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

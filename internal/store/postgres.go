package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/wellness-engine/internal/model"
	"github.com/sells-group/wellness-engine/internal/resilience"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool; tests inject pgxmock here.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS risk_scores (
	id            UUID PRIMARY KEY,
	member_id     TEXT NOT NULL,
	value         DOUBLE PRECISION NOT NULL,
	category      TEXT NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	model_version TEXT NOT NULL,
	input_hash    TEXT NOT NULL,
	payload       JSONB NOT NULL,
	calculated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS cost_predictions (
	id          UUID PRIMARY KEY,
	member_id   TEXT NOT NULL,
	point       NUMERIC(12,2) NOT NULL,
	lower       NUMERIC(12,2) NOT NULL,
	upper       NUMERIC(12,2) NOT NULL,
	score_value DOUBLE PRECISION NOT NULL,
	scored_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS period_summaries (
	id          UUID PRIMARY KEY,
	period      TEXT NOT NULL,
	scope       TEXT NOT NULL,
	member_id   TEXT,
	payload     JSONB NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS recommendations (
	id         UUID PRIMARY KEY,
	member_id  TEXT NOT NULL,
	program_id TEXT NOT NULL,
	state      TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS dlq (
	id             UUID PRIMARY KEY,
	kind           TEXT NOT NULL,
	member_id      TEXT,
	payload        JSONB NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	last_failed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_risk_scores_member ON risk_scores(member_id, calculated_at DESC);
CREATE INDEX IF NOT EXISTS idx_predictions_member ON cost_predictions(member_id);
CREATE INDEX IF NOT EXISTS idx_summaries_period ON period_summaries(period, scope);
CREATE INDEX IF NOT EXISTS idx_recommendations_member ON recommendations(member_id);
CREATE INDEX IF NOT EXISTS idx_recommendations_state ON recommendations(state);
CREATE INDEX IF NOT EXISTS idx_dlq_kind ON dlq(kind);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveScore(ctx context.Context, score *model.RiskScore) error {
	payload, err := json.Marshal(score)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal score")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO risk_scores (id, member_id, value, category, confidence, model_version, input_hash, payload, calculated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.NewString(), score.MemberID, score.Value, string(score.Category),
		score.Confidence, score.ModelVersion, score.InputHash, payload, score.CalculatedAt,
	)
	return eris.Wrapf(err, "postgres: insert score for %s", score.MemberID)
}

func (s *PostgresStore) LatestScore(ctx context.Context, memberID string) (*model.RiskScore, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT payload FROM risk_scores WHERE member_id = $1 ORDER BY calculated_at DESC LIMIT 1`,
		memberID,
	)

	var payload []byte
	err := row.Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest score for %s", memberID)
	}

	var score model.RiskScore
	if err := json.Unmarshal(payload, &score); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal score")
	}
	return &score, nil
}

func (s *PostgresStore) SavePrediction(ctx context.Context, pred *model.CostPrediction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cost_predictions (id, member_id, point, lower, upper, score_value, scored_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), pred.MemberID, pred.Point, pred.Lower, pred.Upper,
		pred.ScoreValue, pred.ScoredAt,
	)
	return eris.Wrapf(err, "postgres: insert prediction for %s", pred.MemberID)
}

func (s *PostgresStore) SaveMemberSummary(ctx context.Context, summary *model.FinancialPeriodSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO period_summaries (id, period, scope, member_id, payload, computed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), summary.Period, string(summary.Scope),
		nullable(summary.MemberID), payload, summary.ComputedAt,
	)
	return eris.Wrapf(err, "postgres: insert summary for period %s", summary.Period)
}

func (s *PostgresStore) SavePoolSummary(ctx context.Context, pool *model.PoolSummary) error {
	payload, err := json.Marshal(pool)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal pool summary")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO period_summaries (id, period, scope, member_id, payload, computed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), pool.Summary.Period, string(model.ScopePool),
		nil, payload, pool.Summary.ComputedAt,
	)
	return eris.Wrapf(err, "postgres: insert pool summary for period %s", pool.Summary.Period)
}

func (s *PostgresStore) SaveRecommendations(ctx context.Context, recs []model.InterventionRecommendation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx)

	for i := range recs {
		rec := &recs[i]
		payload, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal recommendation")
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO recommendations (id, member_id, program_id, state, payload, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rec.ID, rec.Candidate.MemberID, rec.Candidate.ProgramID,
			string(rec.State), payload, rec.CreatedAt, rec.UpdatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert recommendation %s", rec.ID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit recommendations")
}

func (s *PostgresStore) UpdateRecommendationState(ctx context.Context, id string, state model.RecommendationState) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE recommendations
		 SET state = $1, updated_at = $2,
		     payload = jsonb_set(jsonb_set(payload, '{state}', to_jsonb($1::text)), '{updated_at}', to_jsonb($2::timestamptz))
		 WHERE id = $3`,
		string(state), now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update recommendation %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("recommendation not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) ListRecommendations(ctx context.Context, filter RecommendationFilter) ([]model.InterventionRecommendation, error) {
	query := `SELECT payload FROM recommendations WHERE 1=1`
	var args []any

	if filter.MemberID != "" {
		args = append(args, filter.MemberID)
		query += ` AND member_id = $` + strconv.Itoa(len(args))
	}
	if filter.State != "" {
		args = append(args, string(filter.State))
		query += ` AND state = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recommendations")
	}
	defer rows.Close()

	var recs []model.InterventionRecommendation
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan recommendation")
		}
		var rec model.InterventionRecommendation
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal recommendation")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list recommendations iterate")
}

// GetRecommendation loads one recommendation by ID. A missing ID returns
// nil without error.
func (s *PostgresStore) GetRecommendation(ctx context.Context, id string) (*model.InterventionRecommendation, error) {
	row := s.pool.QueryRow(ctx, `SELECT payload FROM recommendations WHERE id = $1`, id)

	var payload []byte
	err := row.Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get recommendation %s", id)
	}

	var rec model.InterventionRecommendation
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal recommendation")
	}
	return &rec, nil
}

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry *resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dlq (id, kind, member_id, payload, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, string(entry.Kind), nullable(entry.MemberID), []byte(entry.Payload),
		entry.Error, entry.ErrorType, entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrapf(err, "postgres: enqueue dlq entry %s", entry.ID)
}

func (s *PostgresStore) ListDLQ(ctx context.Context, limit int) ([]resilience.DLQEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, member_id, payload, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at
		 FROM dlq ORDER BY created_at LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var memberID *string
		var payload []byte
		err := rows.Scan(&e.ID, &e.Kind, &memberID, &payload, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		if memberID != nil {
			e.MemberID = *memberID
		}
		e.Payload = json.RawMessage(payload)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list dlq iterate")
}

func (s *PostgresStore) DLQDepth(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dlq`).Scan(&n)
	return n, eris.Wrap(err, "postgres: dlq depth")
}

func (s *PostgresStore) CategoryCounts(ctx context.Context) (model.RiskDistribution, error) {
	var dist model.RiskDistribution
	rows, err := s.pool.Query(ctx,
		`SELECT category, COUNT(*) FROM (
			SELECT DISTINCT ON (member_id) member_id, category
			FROM risk_scores ORDER BY member_id, calculated_at DESC
		 ) latest GROUP BY category`,
	)
	if err != nil {
		return dist, eris.Wrap(err, "postgres: category counts")
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return dist, eris.Wrap(err, "postgres: scan category count")
		}
		addCategoryCount(&dist, category, n)
	}
	return dist, eris.Wrap(rows.Err(), "postgres: category counts iterate")
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/wellness-engine/internal/model"
	"github.com/sells-group/wellness-engine/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS risk_scores (
	id            TEXT PRIMARY KEY,
	member_id     TEXT NOT NULL,
	value         REAL NOT NULL,
	category      TEXT NOT NULL,
	confidence    REAL NOT NULL,
	model_version TEXT NOT NULL,
	input_hash    TEXT NOT NULL,
	payload       TEXT NOT NULL,
	calculated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS cost_predictions (
	id          TEXT PRIMARY KEY,
	member_id   TEXT NOT NULL,
	point       TEXT NOT NULL,
	lower       TEXT NOT NULL,
	upper       TEXT NOT NULL,
	score_value REAL NOT NULL,
	scored_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS period_summaries (
	id          TEXT PRIMARY KEY,
	period      TEXT NOT NULL,
	scope       TEXT NOT NULL,
	member_id   TEXT,
	payload     TEXT NOT NULL,
	computed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS recommendations (
	id         TEXT PRIMARY KEY,
	member_id  TEXT NOT NULL,
	program_id TEXT NOT NULL,
	state      TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS dlq (
	id             TEXT PRIMARY KEY,
	kind           TEXT NOT NULL,
	member_id      TEXT,
	payload        TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL,
	last_failed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_risk_scores_member ON risk_scores(member_id, calculated_at);
CREATE INDEX IF NOT EXISTS idx_predictions_member ON cost_predictions(member_id);
CREATE INDEX IF NOT EXISTS idx_summaries_period ON period_summaries(period, scope);
CREATE INDEX IF NOT EXISTS idx_recommendations_member ON recommendations(member_id);
CREATE INDEX IF NOT EXISTS idx_recommendations_state ON recommendations(state);
CREATE INDEX IF NOT EXISTS idx_dlq_kind ON dlq(kind);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveScore(ctx context.Context, score *model.RiskScore) error {
	payload, err := json.Marshal(score)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal score")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO risk_scores (id, member_id, value, category, confidence, model_version, input_hash, payload, calculated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), score.MemberID, score.Value, string(score.Category),
		score.Confidence, score.ModelVersion, score.InputHash, string(payload), score.CalculatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert score for %s", score.MemberID)
}

func (s *SQLiteStore) LatestScore(ctx context.Context, memberID string) (*model.RiskScore, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM risk_scores WHERE member_id = ? ORDER BY calculated_at DESC LIMIT 1`,
		memberID,
	)

	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest score for %s", memberID)
	}

	var score model.RiskScore
	if err := json.Unmarshal([]byte(payload), &score); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal score")
	}
	return &score, nil
}

func (s *SQLiteStore) SavePrediction(ctx context.Context, pred *model.CostPrediction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cost_predictions (id, member_id, point, lower, upper, score_value, scored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), pred.MemberID, pred.Point.String(), pred.Lower.String(),
		pred.Upper.String(), pred.ScoreValue, pred.ScoredAt,
	)
	return eris.Wrapf(err, "sqlite: insert prediction for %s", pred.MemberID)
}

func (s *SQLiteStore) SaveMemberSummary(ctx context.Context, summary *model.FinancialPeriodSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO period_summaries (id, period, scope, member_id, payload, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), summary.Period, string(summary.Scope),
		nullable(summary.MemberID), string(payload), summary.ComputedAt,
	)
	return eris.Wrapf(err, "sqlite: insert summary for period %s", summary.Period)
}

func (s *SQLiteStore) SavePoolSummary(ctx context.Context, pool *model.PoolSummary) error {
	payload, err := json.Marshal(pool)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal pool summary")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO period_summaries (id, period, scope, member_id, payload, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), pool.Summary.Period, string(model.ScopePool),
		nil, string(payload), pool.Summary.ComputedAt,
	)
	return eris.Wrapf(err, "sqlite: insert pool summary for period %s", pool.Summary.Period)
}

func (s *SQLiteStore) SaveRecommendations(ctx context.Context, recs []model.InterventionRecommendation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	for i := range recs {
		rec := &recs[i]
		payload, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal recommendation")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO recommendations (id, member_id, program_id, state, payload, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Candidate.MemberID, rec.Candidate.ProgramID,
			string(rec.State), string(payload), rec.CreatedAt, rec.UpdatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert recommendation %s", rec.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit recommendations")
}

func (s *SQLiteStore) UpdateRecommendationState(ctx context.Context, id string, state model.RecommendationState) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE recommendations
		 SET state = ?, updated_at = ?,
		     payload = json_set(json_set(payload, '$.state', ?), '$.updated_at', ?)
		 WHERE id = ?`,
		string(state), now, string(state), now.Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update recommendation %s", id)
	}
	return checkRowsAffected(res, "recommendation", id)
}

func (s *SQLiteStore) ListRecommendations(ctx context.Context, filter RecommendationFilter) ([]model.InterventionRecommendation, error) {
	query := `SELECT payload FROM recommendations WHERE 1=1`
	var args []any

	if filter.MemberID != "" {
		query += ` AND member_id = ?`
		args = append(args, filter.MemberID)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	query += ` ORDER BY created_at DESC`

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
		return nil, eris.Wrap(err, "sqlite: list recommendations")
	}
	defer rows.Close()

	var recs []model.InterventionRecommendation
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan recommendation")
		}
		var rec model.InterventionRecommendation
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal recommendation")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list recommendations iterate")
}

// GetRecommendation loads one recommendation by ID. A missing ID returns
// nil without error.
func (s *SQLiteStore) GetRecommendation(ctx context.Context, id string) (*model.InterventionRecommendation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM recommendations WHERE id = ?`, id)

	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get recommendation %s", id)
	}

	var rec model.InterventionRecommendation
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal recommendation")
	}
	return &rec, nil
}

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry *resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dlq (id, kind, member_id, payload, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.Kind), nullable(entry.MemberID), string(entry.Payload),
		entry.Error, entry.ErrorType, entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrapf(err, "sqlite: enqueue dlq entry %s", entry.ID)
}

func (s *SQLiteStore) ListDLQ(ctx context.Context, limit int) ([]resilience.DLQEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, member_id, payload, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at
		 FROM dlq ORDER BY created_at LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var memberID sql.NullString
		var payload string
		err := rows.Scan(&e.ID, &e.Kind, &memberID, &payload, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		e.MemberID = memberID.String
		e.Payload = json.RawMessage(payload)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list dlq iterate")
}

func (s *SQLiteStore) DLQDepth(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dlq`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: dlq depth")
}

// CategoryCounts tallies each member's latest score by risk category.
func (s *SQLiteStore) CategoryCounts(ctx context.Context) (model.RiskDistribution, error) {
	var dist model.RiskDistribution
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM (
			SELECT member_id, category, MAX(calculated_at)
			FROM risk_scores GROUP BY member_id
		 ) GROUP BY category`,
	)
	if err != nil {
		return dist, eris.Wrap(err, "sqlite: category counts")
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return dist, eris.Wrap(err, "sqlite: scan category count")
		}
		addCategoryCount(&dist, category, n)
	}
	return dist, eris.Wrap(rows.Err(), "sqlite: category counts iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func addCategoryCount(dist *model.RiskDistribution, category string, n int) {
	switch model.RiskCategory(category) {
	case model.RiskLow:
		dist.Low += n
	case model.RiskModerate:
		dist.Moderate += n
	case model.RiskHigh:
		dist.High += n
	case model.RiskCritical:
		dist.Critical += n
	}
}

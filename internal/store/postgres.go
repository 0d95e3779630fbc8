package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/claims-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

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
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	total      INTEGER NOT NULL DEFAULT 0,
	succeeded  INTEGER NOT NULL DEFAULT 0,
	failed     INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS claim_results (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL REFERENCES runs(id),
	claim_id      TEXT NOT NULL,
	decision      TEXT NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	fraud_score   DOUBLE PRECISION NOT NULL,
	anomaly_score DOUBLE PRECISION NOT NULL,
	risk_bucket   TEXT NOT NULL,
	hitl_required BOOLEAN NOT NULL DEFAULT FALSE,
	error         TEXT,
	state         JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_claim_results_run_id ON claim_results(run_id);
CREATE INDEX IF NOT EXISTS idx_claim_results_claim_id ON claim_results(claim_id);
`

// Migrate creates the schema if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// CreateRun inserts a new batch run.
func (s *PostgresStore) CreateRun(ctx context.Context, source string, total int) (*model.Run, error) {
	now := time.Now().UTC()
	run := &model.Run{
		ID:        uuid.NewString(),
		Source:    source,
		Status:    model.RunStatusRunning,
		Total:     total,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, status, total, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Source, string(run.Status), run.Total, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create run")
	}
	return run, nil
}

// CompleteRun finalizes a run's counters and status.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, succeeded, failed int) error {
	status := model.RunStatusComplete
	if succeeded == 0 && failed > 0 {
		status = model.RunStatusFailed
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, succeeded = $2, failed = $3, updated_at = $4 WHERE id = $5`,
		string(status), succeeded, failed, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	return nil
}

// GetRun fetches one run by id.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, status, total, succeeded, failed, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	var run model.Run
	if err := row.Scan(&run.ID, &run.Source, &run.Status, &run.Total, &run.Succeeded, &run.Failed, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, status, total, succeeded, failed, created_at, updated_at FROM runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var run model.Run
		if err := rows.Scan(&run.ID, &run.Source, &run.Status, &run.Total, &run.Succeeded, &run.Failed, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveClaimResult persists one finalized claim state.
func (s *PostgresStore) SaveClaimResult(ctx context.Context, runID string, st *model.ClaimState) error {
	stateJSON, err := json.Marshal(st)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal claim state")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO claim_results
			(id, run_id, claim_id, decision, confidence, fraud_score, anomaly_score, risk_bucket, hitl_required, error, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.NewString(), runID, st.Claim.DisplayID(),
		string(st.Decision.Outcome), st.Decision.Confidence,
		st.Fraud.Score, st.Anomaly.Score, string(st.Anomaly.Bucket),
		st.Escalation.Required, nullable(st.Error),
		string(stateJSON), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save claim result %s", st.Claim.DisplayID())
	}
	return nil
}

// ListClaimResults returns all finalized states for a run, oldest first.
func (s *PostgresStore) ListClaimResults(ctx context.Context, runID string) ([]model.ClaimState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT state FROM claim_results WHERE run_id = $1 ORDER BY created_at ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list claim results %s", runID)
	}
	defer rows.Close()

	var states []model.ClaimState
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan claim result")
		}
		var st model.ClaimState
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal claim state")
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

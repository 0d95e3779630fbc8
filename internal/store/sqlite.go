package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/claims-cli/internal/model"
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
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	total      INTEGER NOT NULL DEFAULT 0,
	succeeded  INTEGER NOT NULL DEFAULT 0,
	failed     INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS claim_results (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL REFERENCES runs(id),
	claim_id      TEXT NOT NULL,
	decision      TEXT NOT NULL,
	confidence    REAL NOT NULL,
	fraud_score   REAL NOT NULL,
	anomaly_score REAL NOT NULL,
	risk_bucket   TEXT NOT NULL,
	hitl_required INTEGER NOT NULL DEFAULT 0,
	error         TEXT,
	state         TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_claim_results_run_id ON claim_results(run_id);
CREATE INDEX IF NOT EXISTS idx_claim_results_claim_id ON claim_results(claim_id);
`

// Migrate creates the schema if needed.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// CreateRun inserts a new batch run.
func (s *SQLiteStore) CreateRun(ctx context.Context, source string, total int) (*model.Run, error) {
	now := time.Now().UTC()
	run := &model.Run{
		ID:        uuid.NewString(),
		Source:    source,
		Status:    model.RunStatusRunning,
		Total:     total,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, total, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, string(run.Status), run.Total, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create run")
	}
	return run, nil
}

// CompleteRun finalizes a run's counters and status.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, succeeded, failed int) error {
	status := model.RunStatusComplete
	if succeeded == 0 && failed > 0 {
		status = model.RunStatusFailed
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, succeeded = ?, failed = ?, updated_at = ? WHERE id = ?`,
		string(status), succeeded, failed, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return nil
}

// GetRun fetches one run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, status, total, succeeded, failed, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	var run model.Run
	if err := row.Scan(&run.ID, &run.Source, &run.Status, &run.Total, &run.Succeeded, &run.Failed, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, status, total, succeeded, failed, created_at, updated_at FROM runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var run model.Run
		if err := rows.Scan(&run.ID, &run.Source, &run.Status, &run.Total, &run.Succeeded, &run.Failed, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveClaimResult persists one finalized claim state.
func (s *SQLiteStore) SaveClaimResult(ctx context.Context, runID string, st *model.ClaimState) error {
	stateJSON, err := json.Marshal(st)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal claim state")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO claim_results
			(id, run_id, claim_id, decision, confidence, fraud_score, anomaly_score, risk_bucket, hitl_required, error, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), runID, st.Claim.DisplayID(),
		string(st.Decision.Outcome), st.Decision.Confidence,
		st.Fraud.Score, st.Anomaly.Score, string(st.Anomaly.Bucket),
		boolToInt(st.Escalation.Required), nullable(st.Error),
		string(stateJSON), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save claim result %s", st.Claim.DisplayID())
	}
	return nil
}

// ListClaimResults returns all finalized states for a run, oldest first.
func (s *SQLiteStore) ListClaimResults(ctx context.Context, runID string) ([]model.ClaimState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state FROM claim_results WHERE run_id = ? ORDER BY created_at ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list claim results %s", runID)
	}
	defer rows.Close()

	var states []model.ClaimState
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan claim result")
		}
		var st model.ClaimState
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal claim state")
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

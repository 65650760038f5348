package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/pathsplit/pathsplit/internal/stats"
	"github.com/pathsplit/pathsplit/internal/templates"
	"github.com/pathsplit/pathsplit/internal/variant"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")

	// ErrUnknownPath is returned when an outcome names a path the
	// experiment has never had.
	ErrUnknownPath = errors.New("unknown path")
)

type SQLiteStore struct {
	db *sql.DB

	// outcomes serializes the read-modify-write of variant stats.
	outcomes sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    variants TEXT NOT NULL,
    state TEXT NOT NULL DEFAULT 'running',
    winner TEXT,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_experiments_state ON experiments(state);

CREATE TABLE IF NOT EXISTS variant_stats (
    experiment TEXT NOT NULL,
    path_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    executions INTEGER NOT NULL DEFAULT 0,
    conversions INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (experiment, path_id),
    FOREIGN KEY (experiment) REFERENCES experiments(name)
);

CREATE TABLE IF NOT EXISTS outcomes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    experiment TEXT NOT NULL,
    path_id TEXT NOT NULL,
    conversion INTEGER NOT NULL DEFAULT 0,
    visitor_id TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    FOREIGN KEY (experiment) REFERENCES experiments(name)
);

CREATE INDEX IF NOT EXISTS idx_outcomes_experiment ON outcomes(experiment);

CREATE TABLE IF NOT EXISTS templates (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    variables TEXT NOT NULL,
    metadata TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    created_ms INTEGER NOT NULL,
    updated_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_templates_active ON templates(active, updated_ms);

CREATE TABLE IF NOT EXISTS segments (
    id TEXT PRIMARY KEY,
    priority INTEGER NOT NULL DEFAULT 0,
    body TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS template_tests (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    start_ms INTEGER NOT NULL,
    body TEXT NOT NULL
);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps transactions and the WAL pragma on one handle.
	db.SetMaxOpenConns(1)

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Debug().Str("path", dbPath).Msg("database opened")
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateExperiment(ctx context.Context, name, description string, variants []variant.Variant) (*Experiment, error) {
	variantsJSON, err := json.Marshal(variants)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variants: %w", err)
	}

	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO experiments (name, description, variants, state, created_at, updated_at)
		 VALUES (?, ?, ?, 'running', ?, ?)`,
		name, description, string(variantsJSON), now, now,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("experiment %q: %w", name, ErrExists)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert experiment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return &Experiment{
		ID:          id,
		Name:        name,
		Description: description,
		Variants:    variants,
		State:       StateRunning,
		CreatedAt:   time.Unix(now, 0),
		UpdatedAt:   time.Unix(now, 0),
	}, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const experimentColumns = `id, name, description, variants, state, winner, created_at, updated_at`

func scanExperiment(row rowScanner) (*Experiment, error) {
	var e Experiment
	var variantsJSON string
	var winner sql.NullString
	var createdAt, updatedAt int64

	if err := row.Scan(&e.ID, &e.Name, &e.Description, &variantsJSON, &e.State, &winner, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(variantsJSON), &e.Variants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variants: %w", err)
	}
	e.Winner = winner.String
	e.CreatedAt = time.Unix(createdAt, 0)
	e.UpdatedAt = time.Unix(updatedAt, 0)
	return &e, nil
}

func (s *SQLiteStore) GetExperiment(ctx context.Context, name string) (*Experiment, error) {
	e, err := scanExperiment(s.db.QueryRowContext(ctx,
		`SELECT `+experimentColumns+` FROM experiments WHERE name = ?`, name,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) ListExperiments(ctx context.Context) ([]*Experiment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+experimentColumns+` FROM experiments ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	var experiments []*Experiment
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		experiments = append(experiments, e)
	}
	return experiments, rows.Err()
}

// UpdateVariants replaces the stored variant set. Callers normalize first.
func (s *SQLiteStore) UpdateVariants(ctx context.Context, name string, variants []variant.Variant) error {
	variantsJSON, err := json.Marshal(variants)
	if err != nil {
		return fmt.Errorf("failed to marshal variants: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE experiments SET variants = ?, updated_at = ? WHERE name = ?`,
		string(variantsJSON), time.Now().Unix(), name,
	)
	if err != nil {
		return fmt.Errorf("failed to update variants: %w", err)
	}
	return requireRow(result)
}

// UpdateExperimentState sets the state. An empty winner leaves the stored
// winner untouched.
func (s *SQLiteStore) UpdateExperimentState(ctx context.Context, name string, state ExperimentState, winner string) error {
	now := time.Now().Unix()

	var result sql.Result
	var err error

	if winner != "" {
		result, err = s.db.ExecContext(ctx,
			`UPDATE experiments SET state = ?, winner = ?, updated_at = ? WHERE name = ?`,
			string(state), winner, now, name,
		)
	} else {
		result, err = s.db.ExecContext(ctx,
			`UPDATE experiments SET state = ?, updated_at = ? WHERE name = ?`,
			string(state), now, name,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to update experiment state: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteStore) DeleteExperiment(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"outcomes", "variant_stats"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE experiment = ?`, name); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM experiments WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordOutcome adds one execution of pathID to the experiment's stats and
// logs it. Archived paths are still accepted; paths outside the variant set
// fail with ErrUnknownPath. The whole update runs in one transaction under the store's lock,
// so concurrent callers never lose counts.
func (s *SQLiteStore) RecordOutcome(ctx context.Context, name, pathID string, conversion bool, visitorID string) ([]stats.VariantStat, error) {
	s.outcomes.Lock()
	defer s.outcomes.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var variantsJSON string
	err = tx.QueryRowContext(ctx, `SELECT variants FROM experiments WHERE name = ?`, name).Scan(&variantsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	var variants []variant.Variant
	if err := json.Unmarshal([]byte(variantsJSON), &variants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variants: %w", err)
	}
	if variant.Find(variants, pathID) < 0 {
		return nil, fmt.Errorf("path %q in experiment %q: %w", pathID, name, ErrUnknownPath)
	}

	current, err := queryStats(ctx, tx, name)
	if err != nil {
		return nil, err
	}
	updated := stats.RecordOutcome(current, variants, pathID, conversion)

	for i, st := range updated {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO variant_stats (experiment, path_id, position, executions, conversions)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (experiment, path_id) DO UPDATE SET executions = excluded.executions, conversions = excluded.conversions`,
			name, st.PathID, i, st.Executions, st.Conversions,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to save variant stats: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outcomes (experiment, path_id, conversion, visitor_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		name, pathID, conversion, visitorID, time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to log outcome: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit outcome: %w", err)
	}

	log.Debug().Str("experiment", name).Str("path", pathID).Bool("conversion", conversion).Msg("outcome recorded")
	return updated, nil
}

// GetVariantStats returns the stat rows in the order they were first created.
func (s *SQLiteStore) GetVariantStats(ctx context.Context, name string) ([]stats.VariantStat, error) {
	return queryStats(ctx, s.db, name)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryStats(ctx context.Context, q querier, name string) ([]stats.VariantStat, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT path_id, executions, conversions FROM variant_stats WHERE experiment = ? ORDER BY position`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get variant stats: %w", err)
	}
	defer rows.Close()

	var out []stats.VariantStat
	for rows.Next() {
		var st stats.VariantStat
		if err := rows.Scan(&st.PathID, &st.Executions, &st.Conversions); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetOutcomes(ctx context.Context, name string) ([]*Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, experiment, path_id, conversion, visitor_id, created_at
		 FROM outcomes WHERE experiment = ? ORDER BY created_at DESC, id DESC`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*Outcome
	for rows.Next() {
		var o Outcome
		var createdAt int64
		if err := rows.Scan(&o.ID, &o.Experiment, &o.PathID, &o.Conversion, &o.VisitorID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.CreatedAt = time.Unix(createdAt, 0)
		outcomes = append(outcomes, &o)
	}
	return outcomes, rows.Err()
}

// SaveTemplate inserts t or replaces the stored template with the same id.
func (s *SQLiteStore) SaveTemplate(ctx context.Context, t templates.Template) error {
	variablesJSON, err := json.Marshal(t.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}
	metadataJSON, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO templates (id, name, description, content, variables, metadata, active, created_ms, updated_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     name = excluded.name, description = excluded.description, content = excluded.content,
		     variables = excluded.variables, metadata = excluded.metadata, active = excluded.active,
		     updated_ms = excluded.updated_ms`,
		t.ID, t.Name, t.Description, t.Content, string(variablesJSON), string(metadataJSON), t.Active,
		t.CreatedAt.UnixMilli(), t.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}

const templateColumns = `id, name, description, content, variables, metadata, active, created_ms, updated_ms`

func scanTemplate(row rowScanner) (*templates.Template, error) {
	var t templates.Template
	var variablesJSON, metadataJSON string
	var createdMs, updatedMs int64

	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Content, &variablesJSON, &metadataJSON, &t.Active, &createdMs, &updatedMs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(variablesJSON), &t.Variables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &t.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	t.CreatedAt = time.UnixMilli(createdMs).UTC()
	t.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return &t, nil
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, id string) (*templates.Template, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

// ListTemplates returns every template, most recently updated first.
func (s *SQLiteStore) ListTemplates(ctx context.Context) ([]templates.Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM templates ORDER BY updated_ms DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var out []templates.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteTemplate(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return requireRow(result)
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

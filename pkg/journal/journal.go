// Package journal records each orchestrator run in a small sqlite database
// under the XDG state directory. The journal is best-effort observability:
// it never fails a run, and holds no state the orchestrator reads back.
package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dotup-sh/dotup/pkg/errors"
)

// DBFileName is the journal database file under the dotup state directory.
const DBFileName = "journal.db"

// Entry is one recorded run.
type Entry struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Stage      string
	Platform   string
	Strategy   string
	Outcome    string
	Detail     string
}

// Journal appends run records and lists recent ones.
type Journal struct {
	db *sql.DB
}

// DefaultPath returns the journal location under the XDG state directory.
func DefaultPath() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		stateHome = xdg.StateHome
	}
	return filepath.Join(stateHome, "dotup", DBFileName)
}

// Open opens (and initializes if needed) the journal at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, errors.ErrJournalOpen, "cannot create journal directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrJournalOpen, "cannot open journal database")
	}

	j := &Journal{db: db}
	if err := j.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init(ctx context.Context) error {
	ddl := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL UNIQUE,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			stage TEXT NOT NULL,
			platform TEXT,
			strategy TEXT,
			outcome TEXT NOT NULL,
			detail TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`,
	}

	for _, stmt := range ddl {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, errors.ErrJournalOpen, "cannot initialize journal schema")
		}
	}
	return nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Begin records the start of a run and returns its id.
func (j *Journal) Begin(ctx context.Context, startedAt time.Time) (string, error) {
	runID := uuid.NewString()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, stage, outcome)
		VALUES (?, ?, 'start', 'running')`,
		runID,
		startedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrJournalWrite, "cannot record run start")
	}
	return runID, nil
}

// Finish records how a run ended.
func (j *Journal) Finish(ctx context.Context, runID string, e Entry) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, stage = ?, platform = ?, strategy = ?, outcome = ?, detail = ?
		WHERE run_id = ?`,
		time.Now().UTC().Format(time.RFC3339),
		e.Stage,
		e.Platform,
		e.Strategy,
		e.Outcome,
		e.Detail,
		runID,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrJournalWrite, "cannot record run outcome")
	}
	return nil
}

// Recent returns the newest limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, started_at, finished_at, stage, platform, strategy, outcome, detail
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrJournalOpen, "cannot query journal")
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			startedAt  string
			finishedAt sql.NullString
			platform   sql.NullString
			strategy   sql.NullString
			detail     sql.NullString
		)
		if err := rows.Scan(&e.RunID, &startedAt, &finishedAt, &e.Stage, &platform, &strategy, &e.Outcome, &detail); err != nil {
			return nil, errors.Wrap(err, errors.ErrJournalOpen, "cannot scan journal row")
		}
		e.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if finishedAt.Valid {
			e.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt.String)
		}
		e.Platform = platform.String
		e.Strategy = strategy.String
		e.Detail = detail.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/glebarez/sqlite" // pure Go driver registered as "sqlite"

	"github.com/shineum/phishtriage/internal/analysis"
	"github.com/shineum/phishtriage/internal/threat"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS recent_analyses (
	email_id    TEXT PRIMARY KEY,
	subject     TEXT NOT NULL,
	sender      TEXT NOT NULL,
	level       TEXT NOT NULL,
	score       INTEGER NOT NULL,
	analyzed_at TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	data        TEXT NOT NULL
);`

// SQLite is a single-file store for local use.
type SQLite struct {
	db        *sql.DB
	maxRecent int
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, maxRecent int) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite history: %w", err)
	}
	// One writer keeps the upsert and trim serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed (recent_analyses): %w", err)
	}
	return &SQLite{db: db, maxRecent: capOrDefault(maxRecent)}, nil
}

// Save upserts the analysis at the front of the list and trims the tail.
func (s *SQLite) Save(ctx context.Context, a *analysis.Analysis) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	e := EntryFor(a)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recent_analyses (email_id, subject, sender, level, score, analyzed_at, seq, data)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM recent_analyses), ?)
		ON CONFLICT(email_id) DO UPDATE SET
			subject = excluded.subject,
			sender = excluded.sender,
			level = excluded.level,
			score = excluded.score,
			analyzed_at = excluded.analyzed_at,
			seq = excluded.seq,
			data = excluded.data`,
		e.ID, e.Subject, e.From, string(e.Level), e.Score, e.AnalyzedAt, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis %s: %w", e.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM recent_analyses
		WHERE email_id NOT IN (SELECT email_id FROM recent_analyses ORDER BY seq DESC LIMIT ?)`,
		s.maxRecent,
	)
	if err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, most recent first.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT email_id, subject, sender, level, score, analyzed_at
		FROM recent_analyses ORDER BY seq DESC LIMIT ?`,
		clampLimit(limit, s.maxRecent),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var level string
		if err := rows.Scan(&e.ID, &e.Subject, &e.From, &level, &e.Score, &e.AnalyzedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Level = threat.Level(level)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return entries, nil
}

// Load returns the stored analysis for id.
func (s *SQLite) Load(ctx context.Context, id string) (*analysis.Analysis, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM recent_analyses WHERE email_id = ?`, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis %s: %w", id, err)
	}
	return decodeAnalysis([]byte(data))
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func decodeAnalysis(data []byte) (*analysis.Analysis, error) {
	var a analysis.Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode stored analysis: %w", err)
	}
	return &a, nil
}

package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shineum/phishtriage/internal/analysis"
	"github.com/shineum/phishtriage/internal/threat"
)

// Postgres archives every analysis run. Recent reports the latest run per
// message id.
type Postgres struct {
	pool      *pgxpool.Pool
	maxRecent int
}

// OpenPostgres connects, pings and runs migrations.
func OpenPostgres(ctx context.Context, connString string, maxRecent int) (*Postgres, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool, maxRecent: capOrDefault(maxRecent)}, nil
}

// runMigrations creates the archive table if it doesn't exist
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	queryAnalyses := `
	CREATE TABLE IF NOT EXISTS analyses (
		id UUID PRIMARY KEY,
		email_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		sender TEXT NOT NULL,
		level TEXT NOT NULL,
		score INT NOT NULL,
		analyzed_at TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
		data JSONB NOT NULL
	);`

	queryIndex := `
	CREATE INDEX IF NOT EXISTS analyses_email_id_created_at_idx
		ON analyses (email_id, created_at DESC);`

	if _, err := pool.Exec(ctx, queryAnalyses); err != nil {
		return fmt.Errorf("migration failed (analyses): %w", err)
	}
	if _, err := pool.Exec(ctx, queryIndex); err != nil {
		return fmt.Errorf("migration failed (analyses index): %w", err)
	}
	return nil
}

// Save archives a new run under a fresh run id.
func (p *Postgres) Save(ctx context.Context, a *analysis.Analysis) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	e := EntryFor(a)
	runID := uuid.New().String()

	query := `
	INSERT INTO analyses (id, email_id, subject, sender, level, score, analyzed_at, data)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = p.pool.Exec(ctx, query, runID, e.ID, e.Subject, e.From, string(e.Level), e.Score, e.AnalyzedAt, string(data))
	if err != nil {
		return fmt.Errorf("failed to archive analysis %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns the latest run of up to limit messages, most recent first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
	SELECT email_id, subject, sender, level, score, analyzed_at
	FROM (
		SELECT DISTINCT ON (email_id) email_id, subject, sender, level, score, analyzed_at, created_at
		FROM analyses
		ORDER BY email_id, created_at DESC
	) latest
	ORDER BY created_at DESC
	LIMIT $1`

	rows, err := p.pool.Query(ctx, query, clampLimit(limit, p.maxRecent))
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var level string
		if err := rows.Scan(&e.ID, &e.Subject, &e.From, &level, &e.Score, &e.AnalyzedAt); err != nil {
			return nil, fmt.Errorf("failed to scan archive row: %w", err)
		}
		e.Level = threat.Level(level)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	return entries, nil
}

// Load returns the latest archived run for id.
func (p *Postgres) Load(ctx context.Context, id string) (*analysis.Analysis, error) {
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM analyses WHERE email_id = $1 ORDER BY created_at DESC LIMIT 1`, id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis %s: %w", id, err)
	}
	return decodeAnalysis(data)
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Package history keeps the list of recently analyzed messages. Entries are
// ordered most recent first, deduplicated by message id and capped.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shineum/phishtriage/internal/analysis"
	"github.com/shineum/phishtriage/internal/config"
	"github.com/shineum/phishtriage/internal/threat"
)

// DefaultMaxRecent is the cap applied when none is configured.
const DefaultMaxRecent = 20

// ErrNotFound is returned by Load when no analysis is stored for an id.
var ErrNotFound = errors.New("analysis not found")

// Entry is the summary row shown in a recent-analysis list.
type Entry struct {
	ID         string       `json:"id"`
	Subject    string       `json:"subject"`
	From       string       `json:"from"`
	Level      threat.Level `json:"level"`
	Score      int          `json:"score"`
	AnalyzedAt string       `json:"analyzed_at"`
}

// EntryFor summarizes an analysis.
func EntryFor(a *analysis.Analysis) Entry {
	return Entry{
		ID:         a.Email.ID,
		Subject:    a.Email.Subject,
		From:       a.Email.From,
		Level:      a.Threat.Level,
		Score:      a.Threat.Score,
		AnalyzedAt: a.AnalyzedAt,
	}
}

// Store persists analyses. Saving an id that is already present moves it to
// the front of the list.
type Store interface {
	Save(ctx context.Context, a *analysis.Analysis) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Load(ctx context.Context, id string) (*analysis.Analysis, error)
	Close() error
}

// Open connects to the backend selected in cfg.
func Open(ctx context.Context, cfg config.HistoryConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		path := cfg.SQLitePath
		if path == "" {
			var err error
			if path, err = DefaultSQLitePath(); err != nil {
				return nil, err
			}
		}
		return OpenSQLite(ctx, path, cfg.MaxRecent)
	case config.BackendRedis:
		return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MaxRecent)
	case config.BackendPostgres:
		if cfg.PostgresURL == "" {
			return nil, errors.New("postgres history requires a database url")
		}
		return OpenPostgres(ctx, cfg.PostgresURL, cfg.MaxRecent)
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}

// DefaultSQLitePath returns ~/.phishtriage/history.db.
func DefaultSQLitePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".phishtriage", "history.db"), nil
}

func capOrDefault(maxRecent int) int {
	if maxRecent <= 0 {
		return DefaultMaxRecent
	}
	return maxRecent
}

// clampLimit bounds a requested list size by the store cap.
func clampLimit(limit, maxRecent int) int {
	if limit <= 0 || limit > maxRecent {
		return maxRecent
	}
	return limit
}

package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shineum/phishtriage/internal/analysis"
)

const (
	redisPrefix = "phishtriage"
	// entryTTL bounds how long an analysis outlives its place in the list.
	entryTTL = 30 * 24 * time.Hour
)

// Redis shares the recent list between intake instances. The list key holds
// ids, each analysis is stored as JSON under its own key.
type Redis struct {
	client    *redis.Client
	prefix    string
	maxRecent int
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, addr, password string, db, maxRecent int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedis(client, maxRecent), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, maxRecent int) *Redis {
	return &Redis{client: client, prefix: redisPrefix, maxRecent: capOrDefault(maxRecent)}
}

func (r *Redis) listKey() string {
	return r.prefix + ":recent"
}

func (r *Redis) analysisKey(id string) string {
	return r.prefix + ":analysis:" + id
}

// Save moves the id to the head of the list and stores the analysis in one
// transaction.
func (r *Redis) Save(ctx context.Context, a *analysis.Analysis) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	id := a.Email.ID

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, r.listKey(), 0, id)
		pipe.LPush(ctx, r.listKey(), id)
		pipe.LTrim(ctx, r.listKey(), 0, int64(r.maxRecent-1))
		pipe.Set(ctx, r.analysisKey(id), data, entryTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save analysis %s: %w", id, err)
	}
	return nil
}

// Recent returns up to limit entries, most recent first. Ids whose analysis
// has expired are skipped.
func (r *Redis) Recent(ctx context.Context, limit int) ([]Entry, error) {
	ids, err := r.client.LRange(ctx, r.listKey(), 0, int64(clampLimit(limit, r.maxRecent)-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent list: %w", err)
	}
	entries := []Entry{}
	if len(ids) == 0 {
		return entries, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.analysisKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read analyses: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		a, err := decodeAnalysis([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("analysis %s: %w", ids[i], err)
		}
		entries = append(entries, EntryFor(a))
	}
	return entries, nil
}

// Load returns the stored analysis for id.
func (r *Redis) Load(ctx context.Context, id string) (*analysis.Analysis, error) {
	data, err := r.client.Get(ctx, r.analysisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis %s: %w", id, err)
	}
	return decodeAnalysis(data)
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

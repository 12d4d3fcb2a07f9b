package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/luminar-sync-api/internal/sge"
	appErrors "github.com/noah-isme/luminar-sync-api/pkg/errors"
)

// RosterCacheRepository caches remote SGE class rosters in Redis so a batch
// does not refetch the same roster for every group. Entries expire by TTL
// only; a batch never invalidates mid-flight.
type RosterCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRosterCacheRepository constructs the cache repository.
func NewRosterCacheRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RosterCacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterCacheRepository{client: client, ttl: ttl, logger: logger}
}

func rosterKey(series, classCode, shift string) string {
	return fmt.Sprintf("sge:roster:%s:%s:%s", series, classCode, shift)
}

// Get returns the cached roster for a remote class, or ErrCacheMiss.
func (r *RosterCacheRepository) Get(ctx context.Context, series, classCode, shift string) ([]sge.Student, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, rosterKey(series, classCode, shift)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get roster: %w", err)
	}
	var students []sge.Student
	if err := json.Unmarshal(raw, &students); err != nil {
		return nil, fmt.Errorf("unmarshal cached roster: %w", err)
	}
	return students, nil
}

// Set stores a roster. Failures are logged and swallowed: the cache is an
// optimisation, not a source of truth.
func (r *RosterCacheRepository) Set(ctx context.Context, series, classCode, shift string, students []sge.Student) {
	if r.client == nil {
		return
	}
	payload, err := json.Marshal(students)
	if err != nil {
		r.logger.Warn("marshal roster for cache", zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, rosterKey(series, classCode, shift), payload, r.ttl).Err(); err != nil {
		r.logger.Warn("cache roster", zap.Error(err))
	}
}

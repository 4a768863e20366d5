// Package donorstore loads donors, blood requests and matching settings from
// PostgreSQL, caching requests and settings in Redis.
package donorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"lifelink-workers/internal/common/logger"
	"lifelink-workers/internal/common/metrics"
)

var (
	ErrRequestNotFound = errors.New("REQUEST_NOT_FOUND")
	ErrDonorNotFound   = errors.New("DONOR_NOT_FOUND")
)

const (
	requestKeyPrefix = "blood_request:"
	settingsKey      = "matching:settings"
)

type Options struct {
	RequestTTL  time.Duration
	SettingsTTL time.Duration
}

type Store struct {
	db     *sql.DB
	redis  *redis.Client
	logger logger.Logger
	opts   Options
}

// New builds a Store. redis may be nil, in which case every read goes to
// PostgreSQL.
func New(db *sql.DB, rdb *redis.Client, log logger.Logger, opts Options) *Store {
	if opts.RequestTTL <= 0 {
		opts.RequestTTL = 5 * time.Minute
	}
	if opts.SettingsTTL <= 0 {
		opts.SettingsTTL = time.Minute
	}
	return &Store{
		db:     db,
		redis:  rdb,
		logger: log.WithFields(map[string]interface{}{"component": "donorstore"}),
		opts:   opts,
	}
}

// DB exposes the pool for callers that need their own transaction.
func (s *Store) DB() *sql.DB { return s.db }

// cacheGet reports whether key was found and decoded into out. Cache
// failures are logged and treated as a miss.
func (s *Store) cacheGet(ctx context.Context, entity, key string, out interface{}) bool {
	if s.redis == nil {
		return false
	}
	val, err := s.redis.Get(ctx, key).Result()
	switch {
	case err == redis.Nil:
		metrics.CacheLookups.WithLabelValues(entity, "miss").Inc()
		return false
	case err != nil:
		metrics.CacheLookups.WithLabelValues(entity, "error").Inc()
		s.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err})
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		metrics.CacheLookups.WithLabelValues(entity, "error").Inc()
		s.logger.Warn("cache entry corrupt", map[string]interface{}{"key": key, "error": err})
		return false
	}
	metrics.CacheLookups.WithLabelValues(entity, "hit").Inc()
	return true
}

func (s *Store) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err})
	}
}

func (s *Store) cacheDel(ctx context.Context, key string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("cache invalidation failed", map[string]interface{}{"key": key, "error": err})
	}
}

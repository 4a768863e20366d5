// internal/workers/matching/rank-donors/config.go
package rankdonors

import (
	"time"

	"lifelink-workers/internal/common/config"
)

type Config struct {
	Timeout       time.Duration
	DefaultSource string
	SlowThreshold time.Duration
	IndexName     string
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:       30 * time.Second,
		DefaultSource: config.CandidateSourcePostgres,
		SlowThreshold: 500 * time.Millisecond,
		IndexName:     "donors",
	}
}

// ConfigFrom reads the worker and matching sections of the app config.
func ConfigFrom(app *config.Config) *Config {
	cfg := DefaultConfig()
	if app == nil {
		return cfg
	}
	if wc, ok := app.Workers[TaskType]; ok && wc.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wc.Timeout)
	}
	if app.Matching.CandidateSource != "" {
		cfg.DefaultSource = app.Matching.CandidateSource
	}
	if app.Matching.SlowRankingMs > 0 {
		cfg.SlowThreshold = time.Duration(app.Matching.SlowRankingMs) * time.Millisecond
	}
	if app.Database.Elasticsearch.DonorIndex != "" {
		cfg.IndexName = app.Database.Elasticsearch.DonorIndex
	}
	return cfg
}

// internal/workers/matching/calculate-donor-score/config.go
package calculatedonorscore

import (
	"time"

	"lifelink-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{Timeout: 10 * time.Second}
}

func ConfigFrom(app *config.Config) *Config {
	cfg := DefaultConfig()
	if app != nil {
		if wc, ok := app.Workers[TaskType]; ok && wc.Timeout > 0 {
			cfg.Timeout = config.GetDuration(wc.Timeout)
		}
	}
	return cfg
}

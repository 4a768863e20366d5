// internal/common/database/health.go
package database

import (
	"context"
	"time"
)

// Pinger is implemented by every client in this package.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckAll pings each dependency and returns the failures by name. An empty
// map means everything answered within timeout.
func CheckAll(ctx context.Context, timeout time.Duration, deps map[string]Pinger) map[string]string {
	failures := make(map[string]string)
	for name, dep := range deps {
		if dep == nil {
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, timeout)
		if err := dep.Ping(pctx); err != nil {
			failures[name] = err.Error()
		}
		cancel()
	}
	return failures
}

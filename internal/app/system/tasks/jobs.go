// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ScopeEvicter is the part of dayscope.Manager used by ScopeEvictionJob.
type ScopeEvicter interface {
	Evict(idle time.Duration) int
	Loaded() []string
}

// LoadedDaysGauge receives the number of resident day scopes after each run.
type LoadedDaysGauge interface {
	LoadedDays(n int)
}

// ScopeEvictionJob drops day scopes that have been idle for longer than idle.
// Scopes with deliveries in flight are kept and retried on the next run.
func ScopeEvictionJob(m ScopeEvicter, gauge LoadedDaysGauge, logger *zap.Logger, idle time.Duration) Job {
	interval := idle / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	return Job{
		Name:     "day-scope-eviction",
		Interval: interval,
		Run: func(ctx context.Context) error {
			n := m.Evict(idle)
			if n > 0 {
				logger.Info("evicted idle days",
					zap.Int("count", n),
					zap.Duration("idle", idle))
			}
			if gauge != nil {
				gauge.LoadedDays(len(m.Loaded()))
			}
			return nil
		},
	}
}

package monitoring

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const HEALTHCHECK_INTERVAL = 15 * time.Second

// HealthChecker is satisfied by the summarizer clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// MonitorSummarizerHealth checks once immediately, then on every interval,
// storing the result in healthy until ctx is done.
func MonitorSummarizerHealth(ctx context.Context, checker HealthChecker, healthy *atomic.Bool, interval time.Duration) {
	if interval <= 0 {
		interval = HEALTHCHECK_INTERVAL
	}

	check := func() {
		isHealthy := checker.HealthCheck(ctx)
		was := healthy.Swap(isHealthy)
		switch {
		case !isHealthy:
			slog.Warn("[HealthCheck] Summarizer is unhealthy")
		case !was:
			slog.Info("[HealthCheck] Summarizer recovered")
		}
	}

	check()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

package monitoring_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spacesedan/agora/internal/monitoring"
)

type flappingChecker struct {
	calls   atomic.Int32
	healthy atomic.Bool
}

func (f *flappingChecker) HealthCheck(context.Context) bool {
	f.calls.Add(1)
	return f.healthy.Load()
}

func TestMonitorSummarizerHealth(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	checker := &flappingChecker{}
	var healthy atomic.Bool
	healthy.Store(true)

	done := make(chan struct{})
	go func() {
		monitoring.MonitorSummarizerHealth(ctx, checker, &healthy, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return !healthy.Load() }, time.Second, time.Millisecond)

	checker.healthy.Store(true)
	require.Eventually(t, healthy.Load, time.Second, time.Millisecond)
	require.GreaterOrEqual(t, checker.calls.Load(), int32(2))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancel")
	}
}

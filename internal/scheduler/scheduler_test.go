package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spacesedan/agora/internal/scheduler"
)

func TestParseDaily(t *testing.T) {
	tests := []struct {
		name     string
		at       string
		timezone string
		spec     string
		wantErr  bool
	}{
		{name: "morning utc", at: "07:00", timezone: "UTC", spec: "0 7 * * *"},
		{name: "minutes kept", at: "23:45", timezone: "America/New_York", spec: "45 23 * * *"},
		{name: "hour out of range", at: "25:00", timezone: "UTC", wantErr: true},
		{name: "not a time", at: "seven", timezone: "UTC", wantErr: true},
		{name: "unknown timezone", at: "07:00", timezone: "Invalid/Zone", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, loc, err := scheduler.ParseDaily(tt.at, tt.timezone)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.spec, spec)
			require.Equal(t, tt.timezone, loc.String())
		})
	}
}

func TestDailyNextRun(t *testing.T) {
	s := scheduler.New("digest", func(context.Context) error { return nil })
	require.True(t, s.Next().IsZero())

	require.NoError(t, s.Daily("07:00", "UTC"))
	s.Start()
	defer s.Stop()

	// cron fills in entry times once started
	require.Eventually(t, func() bool { return !s.Next().IsZero() }, time.Second, 10*time.Millisecond)

	next := s.Next().UTC()
	require.Equal(t, 7, next.Hour())
	require.Equal(t, 0, next.Minute())
	require.True(t, next.After(time.Now()))
}

func TestDailyRejectsBadInput(t *testing.T) {
	s := scheduler.New("digest", func(context.Context) error { return nil })
	require.Error(t, s.Daily("7pm", "UTC"))
	require.True(t, s.Next().IsZero())
}

func TestRunNowAndStopCancelsContext(t *testing.T) {
	var seen context.Context
	runs := 0
	s := scheduler.New("digest", func(ctx context.Context) error {
		runs++
		seen = ctx
		if runs > 1 {
			return errors.New("second run fails")
		}
		return nil
	})

	s.RunNow()
	s.RunNow()
	require.Equal(t, 2, runs)
	require.NoError(t, seen.Err())

	s.Stop()
	require.ErrorIs(t, seen.Err(), context.Canceled)
}

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job runs once per tick. Its context is cancelled when the scheduler stops.
type Job func(ctx context.Context) error

// Scheduler runs a single job every day at a wall-clock time in a timezone.
type Scheduler struct {
	name string
	job  Job

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(name string, job Job) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		name:   name,
		job:    job,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ParseDaily validates an "HH:MM" time and an IANA timezone and returns the
// matching cron spec with its location.
func ParseDaily(at, timezone string) (string, *time.Location, error) {
	parsed, err := time.Parse("15:04", at)
	if err != nil {
		return "", nil, fmt.Errorf("[Scheduler] invalid time %q: %w", at, err)
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return "", nil, fmt.Errorf("[Scheduler] invalid timezone %q: %w", timezone, err)
	}

	return fmt.Sprintf("%d %d * * *", parsed.Minute(), parsed.Hour()), loc, nil
}

// Daily (re)schedules the job at the given time. Calling it on a running
// scheduler replaces the previous schedule.
func (s *Scheduler) Daily(at, timezone string) error {
	spec, loc, err := ParseDaily(at, timezone)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	running := false
	if s.cron != nil {
		s.cron.Stop()
		running = true
	}

	c := cron.New(cron.WithLocation(loc))
	id, err := c.AddFunc(spec, s.run)
	if err != nil {
		return fmt.Errorf("[Scheduler] add job: %w", err)
	}
	s.cron = c
	s.entryID = id

	if running {
		c.Start()
	}

	slog.Info("[Scheduler] Job scheduled",
		slog.String("job", s.name),
		slog.String("at", at),
		slog.String("timezone", timezone))
	return nil
}

// Next reports the next planned run, or the zero time when nothing is scheduled.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// RunNow executes the job synchronously outside the schedule.
func (s *Scheduler) RunNow() {
	s.run()
}

func (s *Scheduler) run() {
	start := time.Now()
	if err := s.job(s.ctx); err != nil {
		slog.Error("[Scheduler] Job failed",
			slog.String("job", s.name),
			slog.String("error", err.Error()))
		return
	}
	slog.Info("[Scheduler] Job finished",
		slog.String("job", s.name),
		slog.Duration("took", time.Since(start)))
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.cron.Start()
	}
}

// Stop cancels in-flight jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()

	s.cancel()
	if c != nil {
		<-c.Stop().Done()
	}
}

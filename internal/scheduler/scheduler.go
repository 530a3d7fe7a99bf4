package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aeris-project/aeris/internal/pipeline"
	"github.com/aeris-project/aeris/internal/store"
)

// Job ids. They are stable API: the status endpoint and the execution
// history key off them.
const (
	JobUpdate   = "weather_update"
	JobCleanup  = "daily_cleanup"
	JobStats    = "weekly_stats_update"
	JobBackfill = "historical_backfill"
)

const (
	historyCapacity  = 1000
	backfillDelay    = 10 * time.Second
	cleanupRetention = 7 * 24 * time.Hour
)

// ErrNotRunning is returned when Stop is called on a stopped scheduler.
var ErrNotRunning = errors.New("scheduler is not running")

// Jobs is the pipeline surface the scheduler triggers.
type Jobs interface {
	RunUpdate(ctx context.Context) (*pipeline.RunResult, error)
	RunBackfill(ctx context.Context) (*pipeline.RunResult, error)
	RunWeeklyStats(ctx context.Context) (*store.DatabaseStats, error)
	Cities() []string
}

// BackfillChecker reports whether historical coverage is already adequate.
// Implementations fold check failures into false, so the scheduler errs
// toward a redundant backfill instead of silently skipping one.
type BackfillChecker interface {
	Complete(ctx context.Context, cityNames []string, expectedDays int) bool
}

// Scheduler runs the recurring and one-shot jobs and records their outcomes.
type Scheduler struct {
	cron         *cron.Cron
	jobs         Jobs
	checker      BackfillChecker
	history      *History
	interval     time.Duration
	expectedDays int
	log          zerolog.Logger

	mu      sync.Mutex
	running bool
	entries map[string]cron.EntryID

	baseCtx context.Context
}

// New constructs a stopped scheduler.
func New(jobs Jobs, checker BackfillChecker, history *History, interval time.Duration, expectedDays int, log zerolog.Logger) *Scheduler {
	cronLog := &cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cronLog), cron.Recover(cronLog)),
		),
		jobs:         jobs,
		checker:      checker,
		history:      history,
		interval:     interval,
		expectedDays: expectedDays,
		log:          log,
		entries:      make(map[string]cron.EntryID),
	}
}

// Start registers the recurring jobs and starts the dispatch loop. When
// coverage is incomplete or the check fails, it also schedules the one-shot
// backfill shortly in the future so it runs after initialization settles.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.running = true
	s.baseCtx = ctx
	s.mu.Unlock()

	s.log.Info().Dur("update_interval", s.interval).Msg("starting scheduler service")

	if err := s.registerRecurring(); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("schedule recurring jobs: %w", err)
	}

	s.cron.Start()

	if s.checker.Complete(ctx, s.jobs.Cities(), s.expectedDays) {
		s.log.Info().Msg("backfill skipped, historical data already exists")
	} else {
		s.scheduleBackfill()
		s.log.Info().Msg("backfill job scheduled, historical data incomplete")
	}

	s.log.Info().Int("scheduled_job_count", len(s.cron.Entries())).Msg("scheduler started successfully")
	return nil
}

// Stop halts the dispatch loop and blocks until in-flight job executions
// complete. Running jobs are never cancelled mid-write.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
	return nil
}

func (s *Scheduler) registerRecurring() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if err := s.addJob(JobUpdate, spec, s.runUpdate); err != nil {
		return err
	}
	if err := s.addJob(JobCleanup, "0 2 * * *", s.runCleanup); err != nil {
		return err
	}
	return s.addJob(JobStats, "0 3 * * 0", s.runStats)
}

func (s *Scheduler) addJob(id, spec string, body func(ctx context.Context) (string, error)) error {
	entryID, err := s.cron.AddFunc(spec, s.instrument(id, body))
	if err != nil {
		return fmt.Errorf("add job %s: %w", id, err)
	}
	s.mu.Lock()
	s.entries[id] = entryID
	s.mu.Unlock()
	s.log.Info().Str("job_id", id).Str("spec", spec).Msg("job scheduled")
	return nil
}

// oneShotSchedule fires exactly once at the given instant.
type oneShotSchedule struct {
	at time.Time
}

func (o oneShotSchedule) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}

func (s *Scheduler) scheduleBackfill() {
	runAt := time.Now().Add(backfillDelay)
	run := s.instrument(JobBackfill, s.runBackfill)

	var entryID cron.EntryID
	entryID = s.cron.Schedule(oneShotSchedule{at: runAt}, cron.FuncJob(func() {
		run()
		s.cron.Remove(entryID)
		s.mu.Lock()
		delete(s.entries, JobBackfill)
		s.mu.Unlock()
	}))

	s.mu.Lock()
	s.entries[JobBackfill] = entryID
	s.mu.Unlock()
	s.log.Info().Time("run_date", runAt).Msg("historical data backfill job scheduled")
}

// instrument wraps a job body with context plumbing and history recording.
// Failures are swallowed into the execution history so a bad run never
// crashes the dispatch loop.
func (s *Scheduler) instrument(id string, body func(ctx context.Context) (string, error)) func() {
	return func() {
		s.mu.Lock()
		ctx := s.baseCtx
		s.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}

		scheduledAt := time.Now()
		summary, err := body(ctx)
		entry := s.history.Record(id, scheduledAt, summary, err)

		if err != nil {
			s.log.Error().Str("job_id", id).Str("run_id", entry.RunID).Err(err).Msg("job execution failed")
			return
		}
		s.log.Info().Str("job_id", id).Str("run_id", entry.RunID).Msg("job executed successfully")
	}
}

func (s *Scheduler) runUpdate(ctx context.Context) (string, error) {
	result, err := s.jobs.RunUpdate(ctx)
	if err != nil {
		return "", err
	}
	return marshalSummary(result), nil
}

func (s *Scheduler) runBackfill(ctx context.Context) (string, error) {
	result, err := s.jobs.RunBackfill(ctx)
	if err != nil {
		return "", err
	}
	return marshalSummary(result), nil
}

func (s *Scheduler) runStats(ctx context.Context) (string, error) {
	stats, err := s.jobs.RunWeeklyStats(ctx)
	if err != nil {
		return "", err
	}
	return marshalSummary(stats), nil
}

func (s *Scheduler) runCleanup(context.Context) (string, error) {
	cutoff := s.history.Clock().Now().Add(-cleanupRetention)
	removed := s.history.PruneOlderThan(cutoff)
	s.log.Info().Int("cleaned_entries", removed).Msg("daily job history cleanup completed")
	return fmt.Sprintf("cleaned %d entries", removed), nil
}

func marshalSummary(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// JobInfo describes one registered job for the status API.
type JobInfo struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Next *time.Time `json:"next_run_time"`
	Prev *time.Time `json:"prev_run_time,omitempty"`
}

var jobNames = map[string]string{
	JobUpdate:   "Weather Data Update",
	JobCleanup:  "Daily Cleanup",
	JobStats:    "Weekly Stats Update",
	JobBackfill: "Historical Data Backfill",
}

// Status is the scheduler state snapshot served by the admin API.
type Status struct {
	Running             bool             `json:"is_running"`
	Jobs                []JobInfo        `json:"scheduled_jobs"`
	RecentHistory       []ExecutionEntry `json:"recent_job_history"`
	TotalHistoryEntries int              `json:"total_job_history_entries"`
}

// Status reports the registered jobs, their run times and recent history.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	running := s.running
	ids := make(map[cron.EntryID]string, len(s.entries))
	for id, entryID := range s.entries {
		ids[entryID] = id
	}
	s.mu.Unlock()

	jobs := make([]JobInfo, 0, len(ids))
	for _, entry := range s.cron.Entries() {
		id, ok := ids[entry.ID]
		if !ok {
			continue
		}
		info := JobInfo{ID: id, Name: jobNames[id]}
		if !entry.Next.IsZero() {
			next := entry.Next
			info.Next = &next
		}
		if !entry.Prev.IsZero() {
			prev := entry.Prev
			info.Prev = &prev
		}
		jobs = append(jobs, info)
	}

	return Status{
		Running:             running,
		Jobs:                jobs,
		RecentHistory:       s.history.Recent(10),
		TotalHistoryEntries: s.history.Len(),
	}
}

// cronLogger adapts zerolog to the cron runner's logging interface.
type cronLogger struct {
	log zerolog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

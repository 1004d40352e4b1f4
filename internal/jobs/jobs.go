// Package jobs runs periodic maintenance on a robfig/cron scheduler:
// purging expired idempotency records and ending idle conversations.
//
// Schedules accept standard 5-field cron expressions as well as descriptors
// such as "@hourly" or "@every 30m".
package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-complaint-desk/internal/observability"
	"github.com/tbourn/go-complaint-desk/internal/repo"
)

// Job is one unit of maintenance work. Run returns how many rows it touched.
type Job struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Scheduler wraps cron.Cron with logging, metrics and a per-run timeout.
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	Timeout time.Duration
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New returns a stopped scheduler. Overlapping runs of the same job are
// skipped.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		log:     log,
		Timeout: time.Minute,
	}
}

// Add registers j under expr. An empty expr leaves the job disabled.
func (s *Scheduler) Add(expr string, j Job) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		s.log.Info().Str("job", j.Name).Msg("job disabled (empty schedule)")
		return nil
	}
	if _, err := s.cron.AddFunc(expr, func() { s.Run(context.Background(), j) }); err != nil {
		return fmt.Errorf("jobs: schedule %s %q: %w", j.Name, expr, err)
	}
	s.log.Info().Str("job", j.Name).Str("schedule", expr).Msg("job scheduled")
	return nil
}

// Run executes j once with the scheduler's timeout, logging and counting
// the outcome. Errors are not returned.
func (s *Scheduler) Run(ctx context.Context, j Job) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	start := time.Now()
	n, err := j.Run(ctx)
	ev := s.log.Info()
	outcome := "ok"
	if err != nil {
		ev = s.log.Error().Err(err)
		outcome = "error"
	}
	observability.JobRuns.WithLabelValues(j.Name, outcome).Inc()
	ev.Str("job", j.Name).Int64("affected", n).Dur("took", time.Since(start)).Msg("job finished")
}

// Start begins firing scheduled jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for running jobs or ctx, whichever ends
// first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries reports how many jobs are scheduled.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

// PurgeIdempotency deletes expired idempotency records.
func PurgeIdempotency(db *gorm.DB) Job {
	return Job{
		Name: "idempotency_purge",
		Run: func(ctx context.Context) (int64, error) {
			return repo.NewIdempotencyRepo(db).Purge(ctx, time.Now().UTC())
		},
	}
}

// IdleEnder is satisfied by services.ConversationService.
type IdleEnder interface {
	EndIdle(ctx context.Context, idle time.Duration) (int64, error)
}

// EndIdleConversations closes conversations without activity for idle.
func EndIdleConversations(svc IdleEnder, idle time.Duration) Job {
	return Job{
		Name: "conversation_idle",
		Run: func(ctx context.Context) (int64, error) {
			return svc.EndIdle(ctx, idle)
		},
	}
}

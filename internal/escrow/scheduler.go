package escrow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"taskpay/escrow-service/internal/audit"
)

// AuditRetention is how long low/medium audit entries are kept before
// the daily purge removes them.
const AuditRetention = 180 * 24 * time.Hour

// Scheduler wraps robfig/cron and drives the recurring sweeps plus the
// audit retention purge.
type Scheduler struct {
	cron        *cron.Cron
	sweeper     *Sweeper
	trail       *audit.Trail
	releaseSpec string // e.g. "@every 1h"
	remindSpec  string // e.g. "@every 6h"
}

// NewScheduler creates a Scheduler firing the release sweep every
// releaseHours hours and the reminder/overdue sweeps every remindHours.
func NewScheduler(sweeper *Sweeper, trail *audit.Trail, releaseHours, remindHours int) *Scheduler {
	return &Scheduler{
		cron:        cron.New(cron.WithLogger(cron.DefaultLogger)),
		sweeper:     sweeper,
		trail:       trail,
		releaseSpec: fmt.Sprintf("@every %dh", releaseHours),
		remindSpec:  fmt.Sprintf("@every %dh", remindHours),
	}
}

// Start registers the jobs and starts the scheduler. The release sweep
// also runs once immediately so escrow stuck from before a restart is
// released without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.releaseSpec, func() { s.runRelease(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc release: %w", err)
	}
	if _, err := s.cron.AddFunc(s.remindSpec, func() { s.runRemind(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc remind: %w", err)
	}
	if _, err := s.cron.AddFunc(s.remindSpec, func() { s.runOverdue(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc overdue: %w", err)
	}
	if _, err := s.cron.AddFunc("@every 24h", func() { s.runPurge(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc purge: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started — release: %s, remind/overdue: %s", s.releaseSpec, s.remindSpec)

	// Catch up on anything that came due while we were down (non-blocking)
	go s.runRelease(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[scheduler] Cron stopped")
}

func (s *Scheduler) runRelease(ctx context.Context) {
	if err := s.sweeper.AutoRelease(ctx, time.Now().UTC()); err != nil {
		log.Printf("[scheduler] Auto-release sweep error: %v", err)
	}
}

func (s *Scheduler) runRemind(ctx context.Context) {
	if err := s.sweeper.Remind(ctx, time.Now().UTC()); err != nil {
		log.Printf("[scheduler] Reminder sweep error: %v", err)
	}
}

func (s *Scheduler) runOverdue(ctx context.Context) {
	if err := s.sweeper.Overdue(ctx, time.Now().UTC()); err != nil {
		log.Printf("[scheduler] Overdue sweep error: %v", err)
	}
}

func (s *Scheduler) runPurge(ctx context.Context) {
	n, err := s.trail.Purge(ctx, time.Now().UTC().Add(-AuditRetention))
	if err != nil {
		log.Printf("[scheduler] Audit purge error: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[scheduler] Audit purge removed %d entries", n)
	}
}

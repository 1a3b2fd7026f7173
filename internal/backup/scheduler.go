package backup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule reports whether expr is a usable 5-field cron expression.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("backup: schedule %q: %w", expr, err)
	}
	return nil
}

// Scheduler runs a Backup each time a cron schedule fires.
type Scheduler struct {
	backup *Backup
	sched  cron.Schedule
	expr   string
	now    func() time.Time
}

// NewScheduler parses expr and returns a Scheduler for b.
func NewScheduler(b *Backup, expr string) (*Scheduler, error) {
	if b == nil {
		return nil, fmt.Errorf("backup: backup is required")
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("backup: schedule %q: %w", expr, err)
	}
	return &Scheduler{backup: b, sched: sched, expr: expr, now: time.Now}, nil
}

// Next returns the first fire time after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.sched.Next(t)
}

// Run blocks, taking a snapshot at every fire time, until ctx is done.
// Failed snapshots are logged and the schedule continues.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("backup: scheduled %q", s.expr)
	for {
		wait := time.Until(s.Next(s.now()))
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if _, err := s.backup.Run(ctx); err != nil {
			log.Printf("backup: scheduled run: %v", err)
		}
	}
}

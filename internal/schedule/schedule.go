// Package schedule drives repeated sweeps from a cron expression.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dev-tams/cromwell-cleaner/internal/retry"
)

// Spec is a parsed five-field cron expression, or a descriptor such as
// @daily or @every 6h. Times are evaluated in UTC.
type Spec struct {
	expr  string
	sched cron.Schedule
}

func Parse(expr string) (Spec, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Spec{}, fmt.Errorf("empty schedule")
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return Spec{}, fmt.Errorf("schedule %q: %w", expr, err)
	}
	return Spec{expr: expr, sched: sched}, nil
}

func (s Spec) String() string { return s.expr }

// Next returns the first run time strictly after t.
func (s Spec) Next(t time.Time) time.Time {
	return s.sched.Next(t.UTC())
}

// Loop calls a job at every scheduled time until its context is done.
// Runs never overlap: a run that outlasts its slot skips every slot it
// covered.
type Loop struct {
	Spec Spec
	// Now and Sleep default to the wall clock.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run returns nil when ctx is done and the job's error otherwise.
func (l *Loop) Run(ctx context.Context, job func(ctx context.Context, slot time.Time) error) error {
	now := l.Now
	if now == nil {
		now = time.Now
	}
	sleep := l.Sleep
	if sleep == nil {
		sleep = retry.Sleep
	}

	for {
		slot := l.Spec.Next(now())
		if err := sleep(ctx, slot.Sub(now())); err != nil {
			return nil
		}
		if err := job(ctx, slot); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package timer

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleExpression describes a calendar based timer.
// Expression is a cron expression with an optional leading seconds field,
// e.g. "0 30 9 * * MON-FRI" or "@hourly".
type ScheduleExpression struct {
	Expression string     `json:"expression"`
	Timezone   string     `json:"timezone,omitempty"`
	Start      *time.Time `json:"start,omitempty"`
	End        *time.Time `json:"end,omitempty"`
}

// Schedule computes the timeouts of a calendar based timer
type Schedule struct {
	expr     ScheduleExpression
	schedule cron.Schedule
}

var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func NewSchedule(expr ScheduleExpression) (*Schedule, error) {
	if expr.Expression == "" {
		return nil, fmt.Errorf("schedule expression is empty")
	}
	if expr.Start != nil && expr.End != nil && expr.End.Before(*expr.Start) {
		return nil, fmt.Errorf("schedule end %v is before start %v", *expr.End, *expr.Start)
	}

	cronExpr := expr.Expression
	if expr.Timezone != "" {
		loc, err := time.LoadLocation(expr.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule timezone %q: %w", expr.Timezone, err)
		}
		cronExpr = "CRON_TZ=" + loc.String() + " " + cronExpr
	}
	schedule, err := scheduleParser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule expression %q: %w", expr.Expression, err)
	}
	return &Schedule{
		expr:     expr,
		schedule: schedule,
	}, nil
}

func (s *Schedule) Expression() ScheduleExpression {
	return s.expr
}

// FirstTimeout returns the first timeout at or after max(now, start),
// or nil if the schedule has no timeout before its end
func (s *Schedule) FirstTimeout(now time.Time) *time.Time {
	from := now
	if s.expr.Start != nil && s.expr.Start.After(now) {
		from = *s.expr.Start
	}
	// cron only reports times strictly after the given one
	return s.bounded(s.schedule.Next(from.Add(-time.Nanosecond)))
}

// NextTimeout returns the first timeout strictly after the given time,
// or nil when there are no more timeouts
func (s *Schedule) NextTimeout(after time.Time) *time.Time {
	if s.expr.Start != nil && after.Before(*s.expr.Start) {
		return s.FirstTimeout(*s.expr.Start)
	}
	return s.bounded(s.schedule.Next(after))
}

func (s *Schedule) bounded(next time.Time) *time.Time {
	// cron returns zero time when nothing matches within five years
	if next.IsZero() {
		return nil
	}
	if s.expr.End != nil && next.After(*s.expr.End) {
		return nil
	}
	return &next
}

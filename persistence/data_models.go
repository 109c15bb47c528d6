// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package persistence

import "time"

const (
	TimerStateActive   = "ACTIVE"
	TimerStateCanceled = "CANCELED"
	TimerStateExpired  = "EXPIRED"
)

type (
	// TimerEntity is the persistent form of a timer.
	// Times are unix milliseconds so that every store keeps the same precision.
	TimerEntity struct {
		Id                   string
		TimedObjectId        string
		InitialDateMillis    int64
		RepeatIntervalMillis int64
		NextDateMillis       *int64
		PreviousRunMillis    *int64
		TimerState           string
		Info                 string

		// the rest are only set for calendar timers
		ScheduleExpression  *string
		ScheduleTimezone    *string
		ScheduleStartMillis *int64
		ScheduleEndMillis   *int64
	}
)

func (e TimerEntity) IsCalendarTimer() bool {
	return e.ScheduleExpression != nil
}

func (e TimerEntity) IsTerminal() bool {
	return e.TimerState == TimerStateCanceled || e.TimerState == TimerStateExpired
}

func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func ToMillisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func FromMillisPtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms)
	return &t
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package extensions

type (
	// TimerRow is a row of the timers table.
	// Times are in unix milliseconds, the nullable ones as pointers.
	TimerRow struct {
		TimedObjectId        string
		Id                   string
		InitialDateMillis    int64
		RepeatIntervalMillis int64
		NextDateMillis       *int64
		PreviousRunMillis    *int64
		TimerState           string
		Info                 string
		ScheduleExpression   *string
		ScheduleTimezone     *string
		ScheduleStartMillis  *int64
		ScheduleEndMillis    *int64
	}
)

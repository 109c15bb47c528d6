// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"time"

	"github.com/xcherryio/xtimer/timer"
)

type TimerType string

const (
	TimerTypeSingle   TimerType = "single"
	TimerTypeInterval TimerType = "interval"
	TimerTypeCalendar TimerType = "calendar"
)

type CreateTimerRequest struct {
	Type TimerType `json:"type" binding:"required"`
	// Expiration is the first timeout. InitialDelayMillis is used instead when absent.
	Expiration         *time.Time                `json:"expiration,omitempty"`
	InitialDelayMillis int64                     `json:"initialDelayMillis,omitempty"`
	IntervalMillis     int64                     `json:"intervalMillis,omitempty"`
	Schedule           *timer.ScheduleExpression `json:"schedule,omitempty"`
	Info               string                    `json:"info,omitempty"`
	Persistent         bool                      `json:"persistent,omitempty"`
}

type TimerView struct {
	Id                string                    `json:"id"`
	TimedObjectId     string                    `json:"timedObjectId"`
	State             string                    `json:"state"`
	Info              string                    `json:"info,omitempty"`
	Persistent        bool                      `json:"persistent"`
	InitialExpiration time.Time                 `json:"initialExpiration"`
	NextExpiration    *time.Time                `json:"nextExpiration,omitempty"`
	PreviousRun       *time.Time                `json:"previousRun,omitempty"`
	IntervalMillis    int64                     `json:"intervalMillis,omitempty"`
	Schedule          *timer.ScheduleExpression `json:"schedule,omitempty"`
}

type ListTimersResponse struct {
	Timers []TimerView `json:"timers"`
}

type ApiErrorResponse struct {
	Details string `json:"details"`
}

func newTimerView(t *timer.Timer) TimerView {
	view := TimerView{
		Id:                t.GetId(),
		TimedObjectId:     t.GetTimedObjectId(),
		State:             t.GetState().String(),
		Info:              t.GetInfo(),
		Persistent:        t.IsPersistent(),
		InitialExpiration: t.GetInitialExpiration(),
		NextExpiration:    t.GetNextExpiration(),
		PreviousRun:       t.GetPreviousRun(),
		IntervalMillis:    t.GetInterval().Milliseconds(),
	}
	if t.IsCalendarTimer() {
		expr := t.GetSchedule().Expression()
		view.Schedule = &expr
	}
	return view
}

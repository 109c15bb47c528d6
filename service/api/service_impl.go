// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/xcherryio/xtimer/common/log"
	"github.com/xcherryio/xtimer/common/log/tag"
	"github.com/xcherryio/xtimer/service/timerservice"
	"github.com/xcherryio/xtimer/timer"
)

// maxDurationMillis is the largest millisecond value that still fits in a time.Duration
const maxDurationMillis = math.MaxInt64 / int64(time.Millisecond)

type serviceImpl struct {
	timerService timerservice.Service
	logger       log.Logger
}

func NewServiceImpl(timerService timerservice.Service, logger log.Logger) Service {
	return &serviceImpl{
		timerService: timerService,
		logger:       logger,
	}
}

func (s serviceImpl) CreateTimer(
	ctx context.Context, request CreateTimerRequest,
) (*TimerView, *ErrorWithStatus) {
	cfg := timerservice.TimerConfig{
		Info:       request.Info,
		Persistent: request.Persistent,
	}
	if request.InitialDelayMillis < 0 || request.IntervalMillis < 0 {
		return nil, NewErrorWithStatus(http.StatusBadRequest, "initialDelayMillis and intervalMillis cannot be negative")
	}
	if request.InitialDelayMillis > maxDurationMillis || request.IntervalMillis > maxDurationMillis {
		return nil, NewErrorWithStatus(http.StatusBadRequest, "initialDelayMillis and intervalMillis are too large")
	}
	delay := time.Duration(request.InitialDelayMillis) * time.Millisecond
	interval := time.Duration(request.IntervalMillis) * time.Millisecond

	var t *timer.Timer
	var err error
	switch request.Type {
	case TimerTypeSingle:
		if request.Expiration != nil {
			t, err = s.timerService.CreateSingleActionTimer(ctx, *request.Expiration, cfg)
		} else {
			t, err = s.timerService.CreateSingleActionTimerAfter(ctx, delay, cfg)
		}
	case TimerTypeInterval:
		if interval == 0 {
			return nil, NewErrorWithStatus(http.StatusBadRequest, "intervalMillis is required for interval timers")
		}
		if request.Expiration != nil {
			t, err = s.timerService.CreateIntervalTimer(ctx, *request.Expiration, interval, cfg)
		} else {
			t, err = s.timerService.CreateIntervalTimerAfter(ctx, delay, interval, cfg)
		}
	case TimerTypeCalendar:
		if request.Schedule == nil {
			return nil, NewErrorWithStatus(http.StatusBadRequest, "schedule is required for calendar timers")
		}
		t, err = s.timerService.CreateCalendarTimer(ctx, *request.Schedule, cfg)
	default:
		return nil, NewErrorWithStatus(http.StatusBadRequest, "unsupported timer type: "+string(request.Type))
	}
	if err != nil {
		return nil, s.handleError(err)
	}
	view := newTimerView(t)
	return &view, nil
}

func (s serviceImpl) ListTimers(ctx context.Context) (*ListTimersResponse, *ErrorWithStatus) {
	timers, err := s.timerService.GetTimers(ctx)
	if err != nil {
		return nil, s.handleError(err)
	}
	resp := &ListTimersResponse{Timers: make([]TimerView, 0, len(timers))}
	for _, t := range timers {
		resp.Timers = append(resp.Timers, newTimerView(t))
	}
	return resp, nil
}

func (s serviceImpl) DescribeTimer(ctx context.Context, timerId string) (*TimerView, *ErrorWithStatus) {
	t, err := s.timerService.GetTimer(ctx, timerId)
	if err != nil {
		return nil, s.handleError(err)
	}
	view := newTimerView(t)
	return &view, nil
}

func (s serviceImpl) CancelTimer(ctx context.Context, timerId string) *ErrorWithStatus {
	if err := s.timerService.CancelTimer(ctx, timerId); err != nil {
		return s.handleError(err)
	}
	return nil
}

func (s serviceImpl) handleError(err error) *ErrorWithStatus {
	switch {
	case errors.Is(err, timerservice.ErrInvalidArgument):
		return NewErrorWithStatus(http.StatusBadRequest, err.Error())
	case errors.Is(err, timerservice.ErrTimerNotFound):
		return NewErrorWithStatus(http.StatusNotFound, err.Error())
	case errors.Is(err, timerservice.ErrIllegalState):
		return NewErrorWithStatus(http.StatusServiceUnavailable, err.Error())
	}
	s.logger.Error("unknown error on operation", tag.Error(err))
	return NewErrorWithStatus(http.StatusInternalServerError, err.Error())
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package timerservice

import (
	"context"
	"errors"
	"time"

	"github.com/xcherryio/xtimer/engine"
	"github.com/xcherryio/xtimer/timer"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrIllegalState    = errors.New("illegal timer service state")
	ErrTimerNotFound   = errors.New("timer not found")
)

// TimerConfig is the optional attributes of a new timer
type TimerConfig struct {
	Info string
	// Persistent timers survive restarts of the service
	Persistent bool
}

// Service owns the timers of one timed object
type Service interface {
	engine.TimerServiceContext

	Start(ctx context.Context) error
	// Stop suspends the timers without canceling them; they are restored on the next Start
	Stop(ctx context.Context) error

	CreateSingleActionTimer(ctx context.Context, expiration time.Time, cfg TimerConfig) (*timer.Timer, error)
	CreateSingleActionTimerAfter(ctx context.Context, duration time.Duration, cfg TimerConfig) (*timer.Timer, error)
	CreateIntervalTimer(
		ctx context.Context, initialExpiration time.Time, interval time.Duration, cfg TimerConfig,
	) (*timer.Timer, error)
	CreateIntervalTimerAfter(
		ctx context.Context, initialDuration, interval time.Duration, cfg TimerConfig,
	) (*timer.Timer, error)
	CreateCalendarTimer(ctx context.Context, expr timer.ScheduleExpression, cfg TimerConfig) (*timer.Timer, error)

	// GetTimers returns the timers that are eligible for timeouts
	GetTimers(ctx context.Context) ([]*timer.Timer, error)
	// GetTimer returns the timer in any state, if it's still known
	GetTimer(ctx context.Context, timerId string) (*timer.Timer, error)
	CancelTimer(ctx context.Context, timerId string) error
}

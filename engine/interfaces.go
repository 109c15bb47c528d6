// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"

	"github.com/xcherryio/xtimer/timer"
)

// TimedObjectInvoker dispatches the timeout callback of a timer to its target.
// CallTimeout is synchronous and returns an error on failure.
type TimedObjectInvoker interface {
	GetTimedObjectId() string
	CallTimeout(ctx context.Context, t *timer.Timer) error
}

// TimerServiceContext is what a timer task needs from the timer service that owns the timer
type TimerServiceContext interface {
	GetInvoker() TimedObjectInvoker
	// PersistTimer durably records the current attributes of the timer
	PersistTimer(ctx context.Context, t *timer.Timer) error
}

// RetryExhaustedListener is optionally implemented by a TimerServiceContext
// to be told when a firing failed after its retry
type RetryExhaustedListener interface {
	OnRetryExhausted(ctx context.Context, t *timer.Timer, err error)
}

// TimerTaskQueue fires the scheduled timers at their next expiration
type TimerTaskQueue interface {
	Start() error
	// Schedule adds or moves the timer to fire at its current next expiration.
	// A timer that is being fired is rescheduled by the queue when the firing completes.
	Schedule(t *timer.Timer)
	// Cancel removes the timer from the queue. A firing in progress is not interrupted.
	Cancel(timerId string)
	Stop(ctx context.Context) error
}

type TimerTaskProcessor interface {
	Start() error
	Stop(context.Context) error

	// GetTasksToProcessChan exposed a channel for the queue to send fired timers to processor
	GetTasksToProcessChan() chan<- *timer.Timer

	// SetTimerTaskQueue sets the channel to report the completed timers back to the queue
	SetTimerTaskQueue(tasksCompletionChan chan<- *timer.Timer)
}

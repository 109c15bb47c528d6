// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package persistence

import (
	"context"
	"errors"
)

var (
	ErrTimerNotFound = errors.New("timer not found")
	// ErrTimerTerminated is returned when persisting a non-terminal state over a canceled or expired timer
	ErrTimerTerminated = errors.New("timer is already canceled or expired")
)

// TimerPersistence is for durably recording the attributes of persistent timers.
// Every call is synchronous; an error means the change may not be durable.
type (
	TimerPersistence interface {
		Close() error

		// PersistTimer inserts or overwrites the timer.
		// A canceled or expired timer is never brought back, see ErrTimerTerminated.
		PersistTimer(ctx context.Context, entity TimerEntity) error
		// LoadTimer returns ErrTimerNotFound when there is no such timer
		LoadTimer(ctx context.Context, timedObjectId, timerId string) (*TimerEntity, error)
		// LoadActiveTimers returns the timers of the owner that are neither canceled nor expired
		LoadActiveTimers(ctx context.Context, timedObjectId string) ([]TimerEntity, error)
		// TimerUndeployed is called when the owner is stopped for good; its terminal timers are removed
		TimerUndeployed(ctx context.Context, timedObjectId string) error
	}
)

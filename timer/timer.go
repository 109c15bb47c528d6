// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/xcherryio/xtimer/persistence"
)

var (
	ErrInvalidTransition       = errors.New("invalid timer state transition")
	ErrNonMonotonicExpiration  = errors.New("next expiration cannot move backwards")
	ErrMissingCalendarSchedule = errors.New("calendar timer has no schedule")
)

const (
	triggerActivate = "activate"
	triggerTimeout  = "timeout"
	triggerRetry    = "retry"
	triggerCancel   = "cancel"
	triggerExpire   = "expire"
)

// Timer is one scheduled callback registration.
// Schedule and identity are immutable; expirations and state are mutated by the
// timer task and the owning timer service only. Mutation never persists by itself.
type Timer struct {
	id                string
	timedObjectId     string
	initialExpiration time.Time
	interval          time.Duration
	info              string
	persistent        bool
	schedule          *Schedule

	mu             sync.RWMutex
	nextExpiration *time.Time
	previousRun    *time.Time

	// state is read by the state machine accessor, so it must not be behind mu
	state   atomic.Int32
	inRetry atomic.Bool

	transitionLock sync.Mutex
	fsm            *stateless.StateMachine
}

// NewTimer creates an interval timer, or a single action timer when interval is zero
func NewTimer(
	id, timedObjectId string, initialExpiration time.Time, interval time.Duration, info string, persistent bool,
) *Timer {
	t := &Timer{
		id:                id,
		timedObjectId:     timedObjectId,
		initialExpiration: initialExpiration,
		interval:          interval,
		info:              info,
		persistent:        persistent,
	}
	next := initialExpiration
	t.nextExpiration = &next
	t.initFSM(TimerStateCreated)
	return t
}

// NewCalendarTimer creates a calendar based timer, with the first timeout computed from now.
// The next expiration is nil when the schedule has no timeout at all.
func NewCalendarTimer(
	id, timedObjectId string, schedule *Schedule, now time.Time, info string, persistent bool,
) *Timer {
	first := schedule.FirstTimeout(now)
	t := &Timer{
		id:             id,
		timedObjectId:  timedObjectId,
		info:           info,
		persistent:     persistent,
		schedule:       schedule,
		nextExpiration: first,
	}
	if first != nil {
		t.initialExpiration = *first
	}
	t.initFSM(TimerStateCreated)
	return t
}

// FromEntity restores a timer from its persistent form
func FromEntity(e persistence.TimerEntity) (*Timer, error) {
	state, err := ParseTimerState(e.TimerState)
	if err != nil {
		return nil, err
	}
	t := &Timer{
		id:                e.Id,
		timedObjectId:     e.TimedObjectId,
		initialExpiration: persistence.FromMillis(e.InitialDateMillis),
		interval:          time.Duration(e.RepeatIntervalMillis) * time.Millisecond,
		info:              e.Info,
		persistent:        true,
		nextExpiration:    persistence.FromMillisPtr(e.NextDateMillis),
		previousRun:       persistence.FromMillisPtr(e.PreviousRunMillis),
	}
	if e.IsCalendarTimer() {
		expr := ScheduleExpression{
			Expression: *e.ScheduleExpression,
			Start:      persistence.FromMillisPtr(e.ScheduleStartMillis),
			End:        persistence.FromMillisPtr(e.ScheduleEndMillis),
		}
		if e.ScheduleTimezone != nil {
			expr.Timezone = *e.ScheduleTimezone
		}
		schedule, err := NewSchedule(expr)
		if err != nil {
			return nil, fmt.Errorf("timer %v: %w", e.Id, err)
		}
		t.schedule = schedule
	}
	t.initFSM(state)
	return t, nil
}

func (t *Timer) initFSM(initial TimerState) {
	t.state.Store(int32(initial))
	t.fsm = stateless.NewStateMachineWithExternalStorage(
		func(_ context.Context) (stateless.State, error) {
			return TimerState(t.state.Load()), nil
		},
		func(_ context.Context, s stateless.State) error {
			t.state.Store(int32(s.(TimerState)))
			return nil
		},
		stateless.FiringImmediate,
	)

	t.fsm.Configure(TimerStateCreated).
		Permit(triggerActivate, TimerStateActive).
		Permit(triggerCancel, TimerStateCanceled)

	t.fsm.Configure(TimerStateActive).
		Ignore(triggerActivate).
		Permit(triggerTimeout, TimerStateInTimeout).
		Permit(triggerCancel, TimerStateCanceled).
		Permit(triggerExpire, TimerStateExpired)

	t.fsm.Configure(TimerStateInTimeout).
		Ignore(triggerTimeout).
		Permit(triggerActivate, TimerStateActive).
		Permit(triggerRetry, TimerStateRetryTimeout).
		Permit(triggerCancel, TimerStateCanceled).
		Permit(triggerExpire, TimerStateExpired)

	t.fsm.Configure(TimerStateRetryTimeout).
		Ignore(triggerRetry).
		Permit(triggerActivate, TimerStateActive).
		Permit(triggerCancel, TimerStateCanceled).
		Permit(triggerExpire, TimerStateExpired)

	t.fsm.Configure(TimerStateCanceled).
		Ignore(triggerCancel)

	t.fsm.Configure(TimerStateExpired).
		Ignore(triggerExpire)
}

func triggerFor(state TimerState) (string, bool) {
	switch state {
	case TimerStateActive:
		return triggerActivate, true
	case TimerStateInTimeout:
		return triggerTimeout, true
	case TimerStateRetryTimeout:
		return triggerRetry, true
	case TimerStateCanceled:
		return triggerCancel, true
	case TimerStateExpired:
		return triggerExpire, true
	default:
		return "", false
	}
}

func (t *Timer) GetId() string {
	return t.id
}

func (t *Timer) GetTimedObjectId() string {
	return t.timedObjectId
}

func (t *Timer) GetInterval() time.Duration {
	return t.interval
}

func (t *Timer) GetInitialExpiration() time.Time {
	return t.initialExpiration
}

func (t *Timer) GetInfo() string {
	return t.info
}

func (t *Timer) IsPersistent() bool {
	return t.persistent
}

func (t *Timer) IsCalendarTimer() bool {
	return t.schedule != nil
}

func (t *Timer) GetSchedule() *Schedule {
	return t.schedule
}

func (t *Timer) GetState() TimerState {
	return TimerState(t.state.Load())
}

// IsActive returns true while the timer is eligible for timeouts,
// including while a timeout or its retry is being processed
func (t *Timer) IsActive() bool {
	switch t.GetState() {
	case TimerStateActive, TimerStateInTimeout, TimerStateRetryTimeout:
		return true
	default:
		return false
	}
}

func (t *Timer) IsInRetry() bool {
	return t.inRetry.Load()
}

// TryEnterRetry sets the in-retry flag, returning false if it was already set
func (t *Timer) TryEnterRetry() bool {
	return t.inRetry.CompareAndSwap(false, true)
}

func (t *Timer) ExitRetry() {
	t.inRetry.Store(false)
}

func (t *Timer) GetNextExpiration() *time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return copyTime(t.nextExpiration)
}

// SetNextTimeout sets the next expiration; nil means no more timeouts are computed.
// An active timer's expiration only moves forward.
func (t *Timer) SetNextTimeout(next *time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if next != nil && t.nextExpiration != nil && t.IsActive() && next.Before(*t.nextExpiration) {
		return fmt.Errorf("%w: %v is before %v", ErrNonMonotonicExpiration, *next, *t.nextExpiration)
	}
	t.nextExpiration = copyTime(next)
	return nil
}

func (t *Timer) GetPreviousRun() *time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return copyTime(t.previousRun)
}

func (t *Timer) SetPreviousRun(run time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.previousRun = &run
}

// SetTimerState moves the timer to the state, if the transition is allowed
func (t *Timer) SetTimerState(state TimerState) error {
	trigger, ok := triggerFor(state)
	if !ok {
		return fmt.Errorf("%w: cannot move to %v", ErrInvalidTransition, state)
	}

	t.transitionLock.Lock()
	defer t.transitionLock.Unlock()

	from := t.GetState()
	if err := t.fsm.Fire(trigger); err != nil {
		return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, from, state)
	}
	return nil
}

// ExpireTimer is the terminal transition of a timer that has no more timeouts
func (t *Timer) ExpireTimer() error {
	if err := t.SetTimerState(TimerStateExpired); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextExpiration = nil
	return nil
}

// Cancel is the terminal transition requested by the owner of the timer
func (t *Timer) Cancel() error {
	return t.SetTimerState(TimerStateCanceled)
}

func (t *Timer) ToEntity() persistence.TimerEntity {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e := persistence.TimerEntity{
		Id:                   t.id,
		TimedObjectId:        t.timedObjectId,
		InitialDateMillis:    persistence.ToMillis(t.initialExpiration),
		RepeatIntervalMillis: t.interval.Milliseconds(),
		NextDateMillis:       persistence.ToMillisPtr(t.nextExpiration),
		PreviousRunMillis:    persistence.ToMillisPtr(t.previousRun),
		TimerState:           t.GetState().String(),
		Info:                 t.info,
	}
	if t.schedule != nil {
		expr := t.schedule.Expression()
		e.ScheduleExpression = &expr.Expression
		if expr.Timezone != "" {
			e.ScheduleTimezone = &expr.Timezone
		}
		e.ScheduleStartMillis = persistence.ToMillisPtr(expr.Start)
		e.ScheduleEndMillis = persistence.ToMillisPtr(expr.End)
	}
	return e
}

func (t *Timer) String() string {
	return fmt.Sprintf("Timer[id=%v timedObjectId=%v state=%v interval=%v]",
		t.id, t.timedObjectId, t.GetState(), t.interval)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

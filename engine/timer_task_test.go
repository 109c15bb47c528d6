// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xcherryio/xtimer/common/clock"
	"github.com/xcherryio/xtimer/common/log"
	"github.com/xcherryio/xtimer/common/ptr"
	"github.com/xcherryio/xtimer/config"
	"github.com/xcherryio/xtimer/timer"
)

var t0 = time.Date(2023, 10, 1, 9, 0, 0, 0, time.UTC)

var fastRetryPolicy = config.RetryPolicy{
	InitialInterval:    time.Millisecond,
	BackoffCoefficient: 1,
	MaximumInterval:    time.Millisecond,
	MaximumAttempts:    3,
}

type mockInvoker struct {
	mock.Mock
	// hook runs before the mocked call, with the timer as the callback sees it
	hook func(t *timer.Timer)
	svc  *fakeTimerService
}

func (m *mockInvoker) GetTimedObjectId() string {
	return "obj"
}

func (m *mockInvoker) CallTimeout(_ context.Context, t *timer.Timer) error {
	if m.svc != nil {
		m.svc.record("invoke:" + t.GetState().String())
	}
	if m.hook != nil {
		m.hook(t)
	}
	args := m.Called(t.GetState())
	return args.Error(0)
}

type persistedSnapshot struct {
	State          timer.TimerState
	NextExpiration *time.Time
	PreviousRun    *time.Time
}

type fakeTimerService struct {
	sync.Mutex
	invoker TimedObjectInvoker
	// persistErr decides the result of the n-th (1-based) persist call
	persistErr func(call int, state timer.TimerState) error

	persisted []persistedSnapshot
	events    []string
	exhausted []error
}

func (s *fakeTimerService) GetInvoker() TimedObjectInvoker {
	return s.invoker
}

func (s *fakeTimerService) PersistTimer(_ context.Context, t *timer.Timer) error {
	s.Lock()
	call := len(s.persisted) + 1
	s.persisted = append(s.persisted, persistedSnapshot{
		State:          t.GetState(),
		NextExpiration: t.GetNextExpiration(),
		PreviousRun:    t.GetPreviousRun(),
	})
	s.events = append(s.events, "persist:"+t.GetState().String())
	s.Unlock()

	if s.persistErr != nil {
		return s.persistErr(call, t.GetState())
	}
	return nil
}

func (s *fakeTimerService) OnRetryExhausted(_ context.Context, _ *timer.Timer, err error) {
	s.Lock()
	defer s.Unlock()
	s.exhausted = append(s.exhausted, err)
}

func (s *fakeTimerService) record(event string) {
	s.Lock()
	defer s.Unlock()
	s.events = append(s.events, event)
}

func (s *fakeTimerService) persistedStates() []timer.TimerState {
	s.Lock()
	defer s.Unlock()
	var states []timer.TimerState
	for _, p := range s.persisted {
		states = append(states, p.State)
	}
	return states
}

func newFakeService() (*fakeTimerService, *mockInvoker) {
	svc := &fakeTimerService{}
	inv := &mockInvoker{svc: svc}
	svc.invoker = inv
	return svc, inv
}

func newActiveTimer(t *testing.T, interval time.Duration) *timer.Timer {
	tm := timer.NewTimer("timer-1", "obj", t0, interval, "info", true)
	require.Nil(t, tm.SetTimerState(timer.TimerStateActive))
	return tm
}

func newTask(t *testing.T, tm *timer.Timer, svc TimerServiceContext, now time.Time) *TimerTask {
	task, err := NewTimerTask(tm, svc, fastRetryPolicy, clock.NewEventTimeSource().Update(now), log.NewNopLogger(), nil)
	require.Nil(t, err)
	return task
}

func TestNewTimerTaskRequiresTimer(t *testing.T) {
	svc, _ := newFakeService()
	_, err := NewTimerTask(nil, svc, config.RetryPolicy{}, nil, log.NewNopLogger(), nil)
	assert.ErrorIs(t, err, ErrNilTimer)

	_, err = NewTimerTask(newActiveTimer(t, 0), nil, config.RetryPolicy{}, nil, log.NewNopLogger(), nil)
	assert.ErrorIs(t, err, ErrNilTimerService)
}

func TestExampleScenarioRetrySucceeds(t *testing.T) {
	svc, inv := newFakeService()
	inv.On("CallTimeout", timer.TimerStateInTimeout).Return(errors.New("boom")).Once()
	inv.On("CallTimeout", timer.TimerStateRetryTimeout).Return(nil).Once()

	tm := newActiveTimer(t, 1000*time.Millisecond)
	task := newTask(t, tm, svc, t0)
	task.Run(context.Background())

	inv.AssertExpectations(t)
	assert.Equal(t, timer.TimerStateActive, tm.GetState())
	assert.Equal(t, t0.Add(time.Second), *tm.GetNextExpiration())
	assert.Equal(t, t0, *tm.GetPreviousRun())
	assert.False(t, tm.IsInRetry())
	assert.Equal(t, []timer.TimerState{
		timer.TimerStateInTimeout, timer.TimerStateRetryTimeout, timer.TimerStateActive,
	}, svc.persistedStates())
	assert.Empty(t, svc.exhausted)
}

func TestRetryBound(t *testing.T) {
	svc, inv := newFakeService()
	inv.On("CallTimeout", timer.TimerStateInTimeout).Return(errors.New("first")).Once()
	inv.On("CallTimeout", timer.TimerStateRetryTimeout).Return(errors.New("second")).Once()

	tm := newActiveTimer(t, time.Second)
	task := newTask(t, tm, svc, t0)
	task.Run(context.Background())

	inv.AssertNumberOfCalls(t, "CallTimeout", 2)
	assert.Equal(t, int32(0), task.attemptsRemaining)
	require.Len(t, svc.exhausted, 1)
	assert.EqualError(t, svc.exhausted[0], "second")
	// the firing still resolves back to active for the next interval
	assert.Equal(t, timer.TimerStateActive, tm.GetState())
	assert.False(t, tm.IsInRetry())
}

func TestInRetryExclusion(t *testing.T) {
	svc, inv := newFakeService()
	tm := newActiveTimer(t, time.Second)
	require.True(t, tm.TryEnterRetry())

	task := newTask(t, tm, svc, t0.Add(time.Minute))
	task.Run(context.Background())

	inv.AssertNotCalled(t, "CallTimeout", mock.Anything)
	assert.Empty(t, svc.persistedStates())
	assert.Equal(t, timer.TimerStateActive, tm.GetState())
	assert.Equal(t, t0, *tm.GetNextExpiration())
	assert.Nil(t, tm.GetPreviousRun())
}

func TestFiringDuringRetryIsDropped(t *testing.T) {
	svc, inv := newFakeService()
	tm := newActiveTimer(t, time.Second)

	// a second firing for the same timer arrives while the retry is in progress
	var concurrentRan bool
	inv.hook = func(cur *timer.Timer) {
		if cur.GetState() != timer.TimerStateRetryTimeout {
			return
		}
		concurrentRan = true
		concurrentSvc, concurrentInv := newFakeService()
		newTask(t, cur, concurrentSvc, t0.Add(time.Second)).Run(context.Background())
		concurrentInv.AssertNotCalled(t, "CallTimeout", mock.Anything)
		assert.Empty(t, concurrentSvc.persistedStates())
	}
	inv.On("CallTimeout", timer.TimerStateInTimeout).Return(errors.New("boom")).Once()
	inv.On("CallTimeout", timer.TimerStateRetryTimeout).Return(nil).Once()

	newTask(t, tm, svc, t0).Run(context.Background())

	assert.True(t, concurrentRan)
	inv.AssertExpectations(t)
	assert.Equal(t, t0.Add(time.Second), *tm.GetNextExpiration())
	assert.Equal(t, timer.TimerStateActive, tm.GetState())
}

func TestIntervalAdvanceKeepsPhase(t *testing.T) {
	svc, inv := newFakeService()
	inv.On("CallTimeout", timer.TimerStateInTimeout).Return(nil).Once()

	tm := newActiveTimer(t, 1500*time.Millisecond)
	// the firing is late, the next expiration still advances from the scheduled one
	late := t0.Add(5 * time.Second)
	newTask(t, tm, svc, late).Run(context.Background())

	inv.AssertExpectations(t)
	assert.Equal(t, t0.Add(1500*time.Millisecond), *tm.GetNextExpiration())
	assert.Equal(t, late, *tm.GetPreviousRun())
	assert.Equal(t, timer.TimerStateActive, tm.GetState())
}

func TestOneShotExpires(t *testing.T) {
	for _, fail := range []bool{false, true} {
		t.Run(fmt.Sprintf("callbackFails=%v", fail), func(t *testing.T) {
			svc, inv := newFakeService()
			if fail {
				inv.On("CallTimeout", mock.Anything).Return(errors.New("boom"))
			} else {
				inv.On("CallTimeout", mock.Anything).Return(nil)
			}

			tm := newActiveTimer(t, 0)
			newTask(t, tm, svc, t0).Run(context.Background())

			assert.Equal(t, timer.TimerStateExpired, tm.GetState())
			assert.Nil(t, tm.GetNextExpiration())
			states := svc.persistedStates()
			assert.Equal(t, timer.TimerStateExpired, states[len(states)-1])

			calls := len(inv.Calls)
			newTask(t, tm, svc, t0.Add(time.Hour)).Run(context.Background())
			assert.Len(t, inv.Calls, calls)
			assert.Equal(t, timer.TimerStateExpired, tm.GetState())
		})
	}
}

func TestPersistBeforeInvoke(t *testing.T) {
	svc, inv := newFakeService()
	inv.On("CallTimeout", timer.TimerStateInTimeout).Return(errors.New("boom")).Once()
	inv.On("CallTimeout", timer.TimerStateRetryTimeout).Return(nil).Once()

	tm := newActiveTimer(t, time.Second)
	newTask(t, tm, svc, t0).Run(context.Background())

	assert.Equal(t, []string{
		"persist:IN_TIMEOUT",
		"invoke:IN_TIMEOUT",
		"persist:RETRY_TIMEOUT",
		"invoke:RETRY_TIMEOUT",
		"persist:ACTIVE",
	}, svc.events)

	// the persisted attempt already carries the bookkeeping of the firing
	first := svc.persisted[0]
	assert.Equal(t, t0, *first.PreviousRun)
	assert.Equal(t, t0.Add(time.Second), *first.NextExpiration)
}

func TestInactiveTimerIsSkipped(t *testing.T) {
	created := timer.NewTimer("created", "obj", t0, time.Second, "", true)
	canceled := newActiveTimer(t, time.Second)
	require.Nil(t, canceled.Cancel())
	expired := newActiveTimer(t, 0)
	require.Nil(t, expired.ExpireTimer())

	for _, tm := range []*timer.Timer{created, canceled, expired} {
		svc, inv := newFakeService()
		next := tm.GetNextExpiration()
		state := tm.GetState()

		newTask(t, tm, svc, t0).Run(context.Background())

		inv.AssertNotCalled(t, "CallTimeout", mock.Anything)
		assert.Empty(t, svc.persistedStates())
		assert.Nil(t, tm.GetPreviousRun())
		assert.Equal(t, next, tm.GetNextExpiration())
		assert.Equal(t, state, tm.GetState())
	}
}

func TestBookkeepingPersistFailureGoesToRetry(t *testing.T) {
	svc, inv := newFakeService()
	svc.persistErr = func(call int, _ timer.TimerState) error {
		if call == 1 {
			return errors.New("db down")
		}
		return nil
	}
	inv.On("CallTimeout", timer.TimerStateRetryTimeout).Return(nil).Once()

	tm := newActiveTimer(t, time.Second)
	newTask(t, tm, svc, t0).Run(context.Background())

	inv.AssertExpectations(t)
	assert.Equal(t, timer.TimerStateActive, tm.GetState())
	assert.Equal(t, []timer.TimerState{
		timer.TimerStateInTimeout, timer.TimerStateRetryTimeout, timer.TimerStateActive,
	}, svc.persistedStates())
}

func TestPostProcessingPersistIsRetried(t *testing.T) {
	svc, inv := newFakeService()
	svc.persistErr = func(call int, state timer.TimerState) error {
		if state == timer.TimerStateActive && call < 4 {
			return errors.New("db down")
		}
		return nil
	}
	inv.On("CallTimeout", timer.TimerStateInTimeout).Return(nil).Once()

	tm := newActiveTimer(t, time.Second)
	newTask(t, tm, svc, t0).Run(context.Background())

	// one bookkeeping persist, then two failures and a success in post-processing
	assert.Equal(t, []timer.TimerState{
		timer.TimerStateInTimeout, timer.TimerStateActive, timer.TimerStateActive, timer.TimerStateActive,
	}, svc.persistedStates())
}

func TestPostProcessingPersistGivesUp(t *testing.T) {
	svc, inv := newFakeService()
	svc.persistErr = func(_ int, state timer.TimerState) error {
		if state == timer.TimerStateActive {
			return errors.New("db down")
		}
		return nil
	}
	inv.On("CallTimeout", timer.TimerStateInTimeout).Return(nil).Once()

	tm := newActiveTimer(t, time.Second)
	newTask(t, tm, svc, t0).Run(context.Background())

	assert.Len(t, svc.persistedStates(), 1+int(fastRetryPolicy.MaximumAttempts))
	assert.Equal(t, timer.TimerStateActive, tm.GetState())
}

func TestPostProcessingPanicReleasesRetryFlag(t *testing.T) {
	svc, inv := newFakeService()
	panicked := false
	svc.persistErr = func(_ int, state timer.TimerState) error {
		if state == timer.TimerStateActive && !panicked {
			panicked = true
			panic("store exploded")
		}
		return nil
	}
	inv.On("CallTimeout", timer.TimerStateInTimeout).Return(errors.New("boom")).Once()
	inv.On("CallTimeout", timer.TimerStateRetryTimeout).Return(nil).Once()

	tm := newActiveTimer(t, time.Second)
	assert.NotPanics(t, func() {
		newTask(t, tm, svc, t0).Run(context.Background())
	})
	require.True(t, panicked)
	assert.False(t, tm.IsInRetry())

	// the next firing must not be taken for an overlapping retry
	inv.On("CallTimeout", timer.TimerStateInTimeout).Return(nil).Once()
	newTask(t, tm, svc, t0.Add(time.Second)).Run(context.Background())

	inv.AssertExpectations(t)
	assert.Equal(t, timer.TimerStateActive, tm.GetState())
	assert.Equal(t, t0.Add(2*time.Second), *tm.GetNextExpiration())
}

func TestInvokerPanicIsRetried(t *testing.T) {
	svc, inv := newFakeService()
	inv.hook = func(cur *timer.Timer) {
		if cur.GetState() == timer.TimerStateInTimeout {
			panic("callback exploded")
		}
	}
	inv.On("CallTimeout", timer.TimerStateRetryTimeout).Return(nil).Once()

	tm := newActiveTimer(t, time.Second)
	assert.NotPanics(t, func() {
		newTask(t, tm, svc, t0).Run(context.Background())
	})

	inv.AssertExpectations(t)
	assert.Equal(t, timer.TimerStateActive, tm.GetState())
}

func TestMissingInvoker(t *testing.T) {
	svc := &fakeTimerService{}
	tm := newActiveTimer(t, time.Second)
	newTask(t, tm, svc, t0).Run(context.Background())

	require.Len(t, svc.exhausted, 1)
	assert.ErrorIs(t, svc.exhausted[0], ErrNoInvoker)
	assert.Equal(t, timer.TimerStateActive, tm.GetState())
}

func TestCanceledDuringCallback(t *testing.T) {
	svc, inv := newFakeService()
	inv.hook = func(cur *timer.Timer) {
		require.Nil(t, cur.Cancel())
	}
	inv.On("CallTimeout", mock.Anything).Return(errors.New("boom")).Once()

	tm := newActiveTimer(t, time.Second)
	newTask(t, tm, svc, t0).Run(context.Background())

	// no retry for a canceled timer, and its state is left alone
	inv.AssertNumberOfCalls(t, "CallTimeout", 1)
	assert.Equal(t, timer.TimerStateCanceled, tm.GetState())
	assert.Equal(t, []timer.TimerState{timer.TimerStateInTimeout}, svc.persistedStates())
	assert.Empty(t, svc.exhausted)
}

func TestCalendarTimerAdvance(t *testing.T) {
	schedule, err := timer.NewSchedule(timer.ScheduleExpression{Expression: "@hourly", Timezone: "UTC"})
	require.Nil(t, err)
	tm := timer.NewCalendarTimer("cal", "obj", schedule, t0.Add(-time.Minute), "", true)
	require.Nil(t, tm.SetTimerState(timer.TimerStateActive))
	require.Equal(t, t0, *tm.GetNextExpiration())

	svc, inv := newFakeService()
	inv.On("CallTimeout", timer.TimerStateInTimeout).Return(nil)
	newTask(t, tm, svc, t0).Run(context.Background())

	assert.Equal(t, timer.TimerStateActive, tm.GetState())
	assert.True(t, t0.Add(time.Hour).Equal(*tm.GetNextExpiration()))
}

func TestCalendarTimerExpiresAtEnd(t *testing.T) {
	schedule, err := timer.NewSchedule(timer.ScheduleExpression{
		Expression: "@hourly",
		Timezone:   "UTC",
		End:        ptr.Any(t0.Add(30 * time.Minute)),
	})
	require.Nil(t, err)
	tm := timer.NewCalendarTimer("cal", "obj", schedule, t0.Add(-time.Minute), "", true)
	require.Nil(t, tm.SetTimerState(timer.TimerStateActive))

	svc, inv := newFakeService()
	inv.On("CallTimeout", timer.TimerStateInTimeout).Return(nil)
	newTask(t, tm, svc, t0).Run(context.Background())

	assert.Equal(t, timer.TimerStateExpired, tm.GetState())
	assert.Nil(t, tm.GetNextExpiration())
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xcherryio/xtimer/common/clock"
	"github.com/xcherryio/xtimer/common/log"
	"github.com/xcherryio/xtimer/common/log/tag"
	"github.com/xcherryio/xtimer/common/metrics"
	"github.com/xcherryio/xtimer/config"
	"github.com/xcherryio/xtimer/timer"
)

var (
	ErrNilTimer        = errors.New("timer task requires a non-nil timer")
	ErrNilTimerService = errors.New("timer task requires a non-nil timer service")
	ErrNoInvoker       = errors.New("timer service has no invoker")
	ErrInvokerPanic    = errors.New("timeout callback panicked")
)

// TimerTask executes one scheduled firing of a timer.
// It is created by the trigger for every firing and discarded after Run returns.
type TimerTask struct {
	timer              *timer.Timer
	svc                TimerServiceContext
	persistRetryPolicy config.RetryPolicy
	timeSource         clock.TimeSource
	logger             log.Logger
	metrics            *metrics.Metrics

	// attemptsRemaining is the retry budget of this firing, either 0 or 1
	attemptsRemaining int32
	// heldRetry is true when this task owns the in-retry flag of the timer
	heldRetry bool
}

func NewTimerTask(
	t *timer.Timer, svc TimerServiceContext, persistRetryPolicy config.RetryPolicy,
	timeSource clock.TimeSource, logger log.Logger, m *metrics.Metrics,
) (*TimerTask, error) {
	if t == nil {
		return nil, ErrNilTimer
	}
	if svc == nil {
		return nil, ErrNilTimerService
	}
	if timeSource == nil {
		timeSource = clock.NewRealTimeSource()
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &TimerTask{
		timer:              t,
		svc:                svc,
		persistRetryPolicy: persistRetryPolicy,
		timeSource:         timeSource,
		logger:             logger.WithTags(tag.TimerId(t.GetId()), tag.TimedObjectId(t.GetTimedObjectId())),
		metrics:            m,
		attemptsRemaining:  timeoutRetryBudget,
	}, nil
}

// Run fires the timer once. It never panics and never returns an error,
// so the trigger can keep scheduling the following firings.
func (w *TimerTask) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("unexpected panic while running timer task", tag.Value(r))
		}
	}()

	t := w.timer
	if t.IsInRetry() {
		w.logger.Warn("timer is still retrying a previous timeout, skipping this firing")
		w.metrics.SkippedFiring(metrics.SkipReasonInRetry)
		return
	}
	if !t.IsActive() {
		w.logger.Debug("timer is not active, skipping this firing", tag.TimerState(t.GetState().String()))
		w.metrics.SkippedFiring(metrics.SkipReasonInactive)
		return
	}

	w.handleTimeout(ctx)
}

func (w *TimerTask) handleTimeout(ctx context.Context) {
	// deferred first, so the flag is released even when post-processing panics
	defer w.releaseRetry()
	defer w.postTimeoutProcessing(ctx)

	err := w.startTimeout(ctx)
	if err == nil {
		err = w.callTimeout(ctx)
	}
	if err == nil {
		w.metrics.Timeout(metrics.ResultSuccess)
		return
	}
	w.metrics.Timeout(metrics.ResultFailure)
	w.logger.Error("timeout callback failed", tag.Error(err))

	for err != nil && w.attemptsRemaining > 0 {
		err = w.retryTimeout(ctx)
	}
	if err != nil {
		w.logger.Error("timeout retry failed, giving up on this firing", tag.Error(err))
		if l, ok := w.svc.(RetryExhaustedListener); ok {
			l.OnRetryExhausted(ctx, w.timer, err)
		}
	}
}

// startTimeout does the bookkeeping of a firing and persists it before the callback is invoked
func (w *TimerTask) startTimeout(ctx context.Context) error {
	t := w.timer
	now := w.timeSource.Now()
	t.SetPreviousRun(now)
	if err := t.SetNextTimeout(w.calculateNextTimeout()); err != nil {
		return err
	}
	if err := t.SetTimerState(timer.TimerStateInTimeout); err != nil {
		return err
	}
	w.logger.Debug("timer fired",
		tag.PreviousRun(now),
		tag.NextExpiration(t.GetNextExpiration()),
		tag.Interval(t.GetInterval()))

	if err := w.svc.PersistTimer(ctx, t); err != nil {
		w.metrics.PersistFailure(metrics.PersistPhaseBookkeeping)
		return fmt.Errorf("failed to persist timer before the timeout callback: %w", err)
	}
	return nil
}

// retryTimeout consumes the retry budget and invokes the callback again.
// A skipped retry returns nil, as there is nothing left to fail.
func (w *TimerTask) retryTimeout(ctx context.Context) error {
	w.attemptsRemaining--

	t := w.timer
	if !t.IsActive() {
		w.logger.Info("timer is not active, skipping the retry", tag.TimerState(t.GetState().String()))
		return nil
	}
	if !t.TryEnterRetry() {
		w.logger.Warn("timer is already being retried, skipping the retry")
		return nil
	}
	w.heldRetry = true

	w.logger.Info("retrying timeout", tag.Attempt(timeoutRetryBudget-w.attemptsRemaining+1))
	err := w.doRetry(ctx)
	if err != nil {
		w.metrics.Retry(metrics.ResultFailure)
	} else {
		w.metrics.Retry(metrics.ResultSuccess)
	}
	return err
}

func (w *TimerTask) releaseRetry() {
	if w.heldRetry {
		w.timer.ExitRetry()
		w.heldRetry = false
	}
}

func (w *TimerTask) doRetry(ctx context.Context) error {
	t := w.timer
	if err := t.SetTimerState(timer.TimerStateRetryTimeout); err != nil {
		return err
	}
	if err := w.svc.PersistTimer(ctx, t); err != nil {
		w.metrics.PersistFailure(metrics.PersistPhaseRetry)
		return fmt.Errorf("failed to persist timer before the retry: %w", err)
	}
	return w.callTimeout(ctx)
}

func (w *TimerTask) callTimeout(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvokerPanic, r)
		}
	}()

	invoker := w.svc.GetInvoker()
	if invoker == nil {
		return ErrNoInvoker
	}
	return invoker.CallTimeout(ctx, w.timer)
}

// calculateNextTimeout advances from the current next expiration, not from now,
// so that interval timers keep their phase
func (w *TimerTask) calculateNextTimeout() *time.Time {
	t := w.timer
	current := t.GetNextExpiration()
	if current == nil {
		return nil
	}
	switch {
	case t.GetInterval() > 0:
		next := current.Add(t.GetInterval())
		return &next
	case t.IsCalendarTimer():
		return t.GetSchedule().NextTimeout(*current)
	default:
		return nil
	}
}

// postTimeoutProcessing resolves the transient state of the firing
func (w *TimerTask) postTimeoutProcessing(ctx context.Context) {
	t := w.timer
	state := t.GetState()
	if state != timer.TimerStateInTimeout && state != timer.TimerStateRetryTimeout {
		return
	}

	if w.shouldExpire() {
		if err := t.ExpireTimer(); err != nil {
			w.logger.Error("failed to expire timer", tag.Error(err))
			return
		}
		w.logger.Debug("timer expired")
	} else {
		if err := t.SetTimerState(timer.TimerStateActive); err != nil {
			w.logger.Error("failed to reactivate timer", tag.Error(err))
			return
		}
	}
	w.persistWithRetry(ctx)
}

func (w *TimerTask) shouldExpire() bool {
	t := w.timer
	if t.IsCalendarTimer() {
		return t.GetNextExpiration() == nil
	}
	return t.GetInterval() == 0
}

func (w *TimerTask) persistWithRetry(ctx context.Context) {
	var attempts int32
	for {
		err := w.svc.PersistTimer(ctx, w.timer)
		if err == nil {
			return
		}
		attempts++
		w.metrics.PersistFailure(metrics.PersistPhasePost)

		backoff, shouldRetry := GetNextBackoff(attempts, w.persistRetryPolicy)
		if !shouldRetry {
			w.logger.Error("failed to persist timer after the timeout, the persisted state is stale",
				tag.Error(err), tag.Attempt(attempts), tag.TimerState(w.timer.GetState().String()))
			return
		}
		w.logger.Warn("failed to persist timer after the timeout, will retry",
			tag.Error(err), tag.Attempt(attempts))

		select {
		case <-ctx.Done():
			w.logger.Error("stopped persisting timer after the timeout, the persisted state is stale",
				tag.Error(ctx.Err()))
			return
		case <-time.After(backoff):
		}
	}
}

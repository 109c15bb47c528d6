// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package timerservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/xcherryio/xtimer/common/clock"
	"github.com/xcherryio/xtimer/common/log"
	"github.com/xcherryio/xtimer/common/log/tag"
	"github.com/xcherryio/xtimer/common/metrics"
	"github.com/xcherryio/xtimer/common/uuid"
	"github.com/xcherryio/xtimer/config"
	"github.com/xcherryio/xtimer/engine"
	"github.com/xcherryio/xtimer/notification"
	"github.com/xcherryio/xtimer/persistence"
	"github.com/xcherryio/xtimer/timer"
)

type serviceState int

const (
	serviceStateNew serviceState = iota
	serviceStateStarted
	serviceStateStopped
)

type timerServiceImpl struct {
	cfg        config.TimerServiceConfig
	store      persistence.TimerPersistence
	invoker    engine.TimedObjectInvoker
	publisher  notification.Publisher
	timeSource clock.TimeSource
	logger     log.Logger

	timerTaskQueue     engine.TimerTaskQueue
	timerTaskProcessor engine.TimerTaskProcessor

	mu     sync.RWMutex
	state  serviceState
	timers map[string]*timer.Timer
}

func NewTimerServiceImpl(
	rootCtx context.Context, cfg config.TimerServiceConfig,
	store persistence.TimerPersistence, invoker engine.TimedObjectInvoker, publisher notification.Publisher,
	timeSource clock.TimeSource, logger log.Logger, m *metrics.Metrics,
) Service {
	if timeSource == nil {
		timeSource = clock.NewRealTimeSource()
	}
	if publisher == nil {
		publisher = notification.NewNoopPublisher()
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	logger = logger.WithTags(tag.TimedObjectId(cfg.TimedObjectId))

	s := &timerServiceImpl{
		cfg:        cfg,
		store:      store,
		invoker:    invoker,
		publisher:  publisher,
		timeSource: timeSource,
		logger:     logger,
		timers:     make(map[string]*timer.Timer),
	}
	s.timerTaskProcessor = engine.NewTimerTaskConcurrentProcessor(rootCtx, cfg, s, timeSource, logger, m)
	s.timerTaskQueue = engine.NewTimerTaskQueueImpl(
		rootCtx, cfg.TimerTaskQueue, s.timerTaskProcessor, timeSource, logger, m)
	return s
}

func (s *timerServiceImpl) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != serviceStateNew {
		s.mu.Unlock()
		return fmt.Errorf("%w: timer service cannot be started again", ErrIllegalState)
	}
	if s.invoker == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: timer service has no invoker", ErrIllegalState)
	}

	if err := s.timerTaskProcessor.Start(); err != nil {
		s.mu.Unlock()
		s.logger.Error("fail to start timer task processor", tag.Error(err))
		return err
	}
	if err := s.timerTaskQueue.Start(); err != nil {
		s.mu.Unlock()
		s.logger.Error("fail to start timer task queue", tag.Error(err))
		return err
	}
	s.state = serviceStateStarted
	s.mu.Unlock()

	restored, err := s.restoreTimers(ctx)
	// scheduling without the lock, as the firing timer tasks persist through this service
	for _, t := range restored {
		s.timerTaskQueue.Schedule(t)
	}
	return err
}

// restoreTimers moves the persisted timers that are neither canceled nor expired
// to ACTIVE, and registers them to be scheduled for their next timeouts
func (s *timerServiceImpl) restoreTimers(ctx context.Context) ([]*timer.Timer, error) {
	entities, err := s.store.LoadActiveTimers(ctx, s.cfg.TimedObjectId)
	if err != nil {
		s.logger.Error("failed to load active timers", tag.Error(err))
		return nil, err
	}
	s.logger.Info("restoring active timers", tag.Count(len(entities)))

	var errs error
	var restored []*timer.Timer
	for _, entity := range entities {
		t, err := timer.FromEntity(entity)
		if err != nil {
			s.logger.Error("failed to restore timer", tag.TimerId(entity.Id), tag.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}

		if t.GetNextExpiration() == nil {
			// stopped between computing the last timeout and expiring the timer
			if err := t.ExpireTimer(); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			errs = multierr.Append(errs, s.store.PersistTimer(ctx, t.ToEntity()))
			continue
		}

		if t.GetState() != timer.TimerStateActive {
			if err := t.SetTimerState(timer.TimerStateActive); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if err := s.store.PersistTimer(ctx, t.ToEntity()); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
		}
		s.mu.Lock()
		s.timers[t.GetId()] = t
		s.mu.Unlock()
		restored = append(restored, t)
		s.logger.Debug("restored timer", tag.TimerId(t.GetId()), tag.NextExpiration(t.GetNextExpiration()))
	}
	return restored, errs
}

func (s *timerServiceImpl) Stop(ctx context.Context) error {
	s.mu.Lock()
	prev := s.state
	s.state = serviceStateStopped
	s.mu.Unlock()
	if prev == serviceStateStopped {
		return nil
	}

	// stopping the queue suspends every timer, firings in progress are waited for
	err1 := s.timerTaskQueue.Stop(ctx)
	err2 := s.timerTaskProcessor.Stop(ctx)
	if prev == serviceStateNew {
		return multierr.Combine(err1, err2)
	}
	err3 := s.store.TimerUndeployed(ctx, s.cfg.TimedObjectId)
	return multierr.Combine(err1, err2, err3)
}

func (s *timerServiceImpl) CreateSingleActionTimer(
	ctx context.Context, expiration time.Time, cfg TimerConfig,
) (*timer.Timer, error) {
	if expiration.IsZero() {
		return nil, fmt.Errorf("%w: expiration is not set", ErrInvalidArgument)
	}
	return s.createTimer(ctx, expiration, 0, cfg)
}

func (s *timerServiceImpl) CreateSingleActionTimerAfter(
	ctx context.Context, duration time.Duration, cfg TimerConfig,
) (*timer.Timer, error) {
	if duration < 0 {
		return nil, fmt.Errorf("%w: duration %v is negative", ErrInvalidArgument, duration)
	}
	return s.createTimer(ctx, s.timeSource.Now().Add(duration), 0, cfg)
}

func (s *timerServiceImpl) CreateIntervalTimer(
	ctx context.Context, initialExpiration time.Time, interval time.Duration, cfg TimerConfig,
) (*timer.Timer, error) {
	if initialExpiration.IsZero() {
		return nil, fmt.Errorf("%w: initial expiration is not set", ErrInvalidArgument)
	}
	if interval < 0 {
		return nil, fmt.Errorf("%w: interval %v is negative", ErrInvalidArgument, interval)
	}
	return s.createTimer(ctx, initialExpiration, interval, cfg)
}

func (s *timerServiceImpl) CreateIntervalTimerAfter(
	ctx context.Context, initialDuration, interval time.Duration, cfg TimerConfig,
) (*timer.Timer, error) {
	if initialDuration < 0 {
		return nil, fmt.Errorf("%w: initial duration %v is negative", ErrInvalidArgument, initialDuration)
	}
	if interval < 0 {
		return nil, fmt.Errorf("%w: interval %v is negative", ErrInvalidArgument, interval)
	}
	return s.createTimer(ctx, s.timeSource.Now().Add(initialDuration), interval, cfg)
}

func (s *timerServiceImpl) CreateCalendarTimer(
	ctx context.Context, expr timer.ScheduleExpression, cfg TimerConfig,
) (*timer.Timer, error) {
	schedule, err := timer.NewSchedule(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	t := timer.NewCalendarTimer(
		uuid.MustNewTimerId(), s.cfg.TimedObjectId, schedule, s.timeSource.Now(), cfg.Info, cfg.Persistent)
	if t.GetNextExpiration() == nil {
		return nil, fmt.Errorf("%w: schedule %q has no timeout", ErrInvalidArgument, expr.Expression)
	}
	if err := s.startTimer(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *timerServiceImpl) createTimer(
	ctx context.Context, initialExpiration time.Time, interval time.Duration, cfg TimerConfig,
) (*timer.Timer, error) {
	t := timer.NewTimer(
		uuid.MustNewTimerId(), s.cfg.TimedObjectId, initialExpiration, interval, cfg.Info, cfg.Persistent)
	if err := s.startTimer(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// startTimer moves a new timer to ACTIVE, records it and schedules its first timeout
func (s *timerServiceImpl) startTimer(ctx context.Context, t *timer.Timer) error {
	if !s.isStarted() {
		return fmt.Errorf("%w: timer service is not started", ErrIllegalState)
	}

	if err := t.SetTimerState(timer.TimerStateActive); err != nil {
		return err
	}
	if t.IsPersistent() {
		if err := s.store.PersistTimer(ctx, t.ToEntity()); err != nil {
			s.logger.Error("failed to persist the new timer", tag.TimerId(t.GetId()), tag.Error(err))
			return err
		}
	}
	s.mu.Lock()
	s.timers[t.GetId()] = t
	s.mu.Unlock()
	s.timerTaskQueue.Schedule(t)

	s.logger.Info("timer created",
		tag.TimerId(t.GetId()), tag.NextExpiration(t.GetNextExpiration()), tag.Interval(t.GetInterval()))
	return nil
}

func (s *timerServiceImpl) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == serviceStateStarted
}

func (s *timerServiceImpl) GetTimers(ctx context.Context) ([]*timer.Timer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != serviceStateStarted {
		return nil, fmt.Errorf("%w: timer service is not started", ErrIllegalState)
	}

	timers := make([]*timer.Timer, 0, len(s.timers))
	for _, t := range s.timers {
		if t.IsActive() {
			timers = append(timers, t)
		}
	}
	sort.Slice(timers, func(i, j int) bool {
		return timers[i].GetId() < timers[j].GetId()
	})
	return timers, nil
}

func (s *timerServiceImpl) GetTimer(ctx context.Context, timerId string) (*timer.Timer, error) {
	s.mu.RLock()
	t, ok := s.timers[timerId]
	s.mu.RUnlock()
	if ok {
		return t, nil
	}

	entity, err := s.store.LoadTimer(ctx, s.cfg.TimedObjectId, timerId)
	if err != nil {
		if errors.Is(err, persistence.ErrTimerNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrTimerNotFound, timerId)
		}
		return nil, err
	}
	return timer.FromEntity(*entity)
}

func (s *timerServiceImpl) CancelTimer(ctx context.Context, timerId string) error {
	s.mu.RLock()
	t, ok := s.timers[timerId]
	s.mu.RUnlock()
	if !ok || !t.IsActive() {
		return fmt.Errorf("%w: %v is not active", ErrTimerNotFound, timerId)
	}

	if err := t.Cancel(); err != nil {
		return err
	}
	s.timerTaskQueue.Cancel(timerId)
	s.logger.Info("timer canceled", tag.TimerId(timerId))
	return s.PersistTimer(ctx, t)
}

func (s *timerServiceImpl) GetInvoker() engine.TimedObjectInvoker {
	return s.invoker
}

// PersistTimer writes the timer through to the store if it's persistent.
// A canceled or expired timer is forgotten and its event is published once.
func (s *timerServiceImpl) PersistTimer(ctx context.Context, t *timer.Timer) error {
	if t == nil {
		return nil
	}
	if t.IsPersistent() {
		if err := s.store.PersistTimer(ctx, t.ToEntity()); err != nil {
			return err
		}
	}

	state := t.GetState()
	if !state.IsTerminal() {
		return nil
	}
	s.mu.Lock()
	_, ok := s.timers[t.GetId()]
	delete(s.timers, t.GetId())
	s.mu.Unlock()
	if !ok {
		return nil
	}

	eventType := notification.TimerEventExpired
	if state == timer.TimerStateCanceled {
		eventType = notification.TimerEventCanceled
	}
	s.publish(ctx, t, eventType, "")
	return nil
}

func (s *timerServiceImpl) OnRetryExhausted(ctx context.Context, t *timer.Timer, err error) {
	s.publish(ctx, t, notification.TimerEventRetryExhausted, err.Error())
}

// publish never fails the timer operation, as the timer is already in the new state
func (s *timerServiceImpl) publish(
	ctx context.Context, t *timer.Timer, eventType notification.TimerEventType, details string,
) {
	err := s.publisher.Publish(ctx, notification.TimerEvent{
		Type:          eventType,
		TimerId:       t.GetId(),
		TimedObjectId: t.GetTimedObjectId(),
		Time:          s.timeSource.Now(),
		Details:       details,
	})
	if err != nil {
		s.logger.Warn("failed to publish timer event",
			tag.TimerId(t.GetId()), tag.Value(eventType), tag.Error(err))
	}
}

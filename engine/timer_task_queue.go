// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"container/heap"
	"context"
	"sync/atomic"

	"github.com/xcherryio/xtimer/common/clock"
	"github.com/xcherryio/xtimer/common/log"
	"github.com/xcherryio/xtimer/common/log/tag"
	"github.com/xcherryio/xtimer/common/metrics"
	"github.com/xcherryio/xtimer/config"
	"github.com/xcherryio/xtimer/timer"
)

type timerTaskQueueImpl struct {
	rootCtx    context.Context
	cancel     context.CancelFunc
	timeSource clock.TimeSource
	logger     log.Logger
	metrics    *metrics.Metrics

	processor TimerTaskProcessor

	// the timer for next firing of the scheduled timers
	nextFiringTimer TimerGate

	// the scheduled timers sorted by fire time.
	// A timer will be popped out when it is fired, and sent to the processor.
	// Entries that are no longer in scheduledTimers are stale and skipped.
	remainingToFireTimersHeap TimerTaskPriorityQueue
	// the current heap entry of each scheduled timer, by timer id
	scheduledTimers map[string]*ScheduledTimer

	// this tracks the fired timers that are waiting for completion by the processor.
	// A timer is never fired again before its previous firing completes.
	firedToCompleteTimers map[string]*timer.Timer
	// fired timers that were canceled while in the processor, so they are not rescheduled
	canceledInFlight map[string]struct{}

	// tasksCompletionChan is the channel to receive completed timers from processor.
	// A completed timer is rescheduled if it is still active and has a next expiration.
	tasksCompletionChan chan *timer.Timer

	scheduleChan chan *timer.Timer
	cancelChan   chan string

	started atomic.Bool
	stopped chan struct{}
}

func NewTimerTaskQueueImpl(
	rootCtx context.Context, cfg config.TimerTaskQueueConfig, processor TimerTaskProcessor,
	timeSource clock.TimeSource, logger log.Logger, m *metrics.Metrics,
) TimerTaskQueue {
	ctx, cancel := context.WithCancel(rootCtx)
	if timeSource == nil {
		timeSource = clock.NewRealTimeSource()
	}
	if m == nil {
		m = metrics.NewMetrics()
	}

	return &timerTaskQueueImpl{
		rootCtx:    ctx,
		cancel:     cancel,
		timeSource: timeSource,
		logger:     logger,
		metrics:    m,

		processor: processor,

		nextFiringTimer: NewLocalTimerGate(timeSource, logger),

		remainingToFireTimersHeap: NewTimerTaskPriorityQueue(nil),
		scheduledTimers:           make(map[string]*ScheduledTimer),
		firedToCompleteTimers:     make(map[string]*timer.Timer),
		canceledInFlight:          make(map[string]struct{}),
		tasksCompletionChan:       make(chan *timer.Timer, cfg.CompletionBufferSize),
		scheduleChan:              make(chan *timer.Timer, cfg.ProcessorBufferSize),
		cancelChan:                make(chan string, cfg.ProcessorBufferSize),
		stopped:                   make(chan struct{}),
	}
}

func (w *timerTaskQueueImpl) Start() error {
	w.processor.SetTimerTaskQueue(w.tasksCompletionChan)
	w.started.Store(true)

	go func() {
		defer close(w.stopped)
		for {
			select {
			case <-w.nextFiringTimer.FireChan():
				w.sendFiredTimerToProcessor()
			case t := <-w.tasksCompletionChan:
				w.completeFiring(t)
			case t := <-w.scheduleChan:
				w.schedule(t)
			case id := <-w.cancelChan:
				w.unschedule(id)
			case <-w.rootCtx.Done():
				w.logger.Info("timer task queue is being closed")
				return
			}
		}
	}()
	return nil
}

func (w *timerTaskQueueImpl) Stop(ctx context.Context) error {
	w.cancel()
	defer w.nextFiringTimer.Close() // close timer to prevent goroutine leakage
	if !w.started.Load() {
		return nil
	}

	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *timerTaskQueueImpl) Schedule(t *timer.Timer) {
	select {
	case w.scheduleChan <- t:
	case <-w.rootCtx.Done():
		w.logger.Warn("timer task queue is closed, dropping the timer", tag.TimerId(t.GetId()))
	}
}

func (w *timerTaskQueueImpl) Cancel(timerId string) {
	select {
	case w.cancelChan <- timerId:
	case <-w.rootCtx.Done():
	}
}

func (w *timerTaskQueueImpl) schedule(t *timer.Timer) {
	id := t.GetId()
	if _, ok := w.firedToCompleteTimers[id]; ok {
		// the completion will reschedule it from its latest next expiration
		delete(w.canceledInFlight, id)
		return
	}

	next := t.GetNextExpiration()
	if next == nil || !t.IsActive() {
		w.unschedule(id)
		return
	}

	entry := &ScheduledTimer{FireTime: *next, Timer: t}
	w.scheduledTimers[id] = entry
	heap.Push(&w.remainingToFireTimersHeap, entry)
	w.metrics.SetScheduledTimers(len(w.scheduledTimers))

	if w.remainingToFireTimersHeap.Peek() == entry {
		w.nextFiringTimer.Update(entry.FireTime)
	}
}

func (w *timerTaskQueueImpl) unschedule(id string) {
	if _, ok := w.firedToCompleteTimers[id]; ok {
		w.canceledInFlight[id] = struct{}{}
	}
	// the heap entry becomes stale and is dropped when popped
	delete(w.scheduledTimers, id)
	w.metrics.SetScheduledTimers(len(w.scheduledTimers))
}

func (w *timerTaskQueueImpl) completeFiring(t *timer.Timer) {
	id := t.GetId()
	delete(w.firedToCompleteTimers, id)
	if _, ok := w.canceledInFlight[id]; ok {
		delete(w.canceledInFlight, id)
		return
	}
	w.schedule(t)
}

func (w *timerTaskQueueImpl) sendFiredTimerToProcessor() {
	w.logger.Debug("timer gate fired", tag.WakeupTime(w.nextFiringTimer.NextWakeupTime()))
	for {
		minTask := w.remainingToFireTimersHeap.Peek()
		if minTask == nil {
			break
		}
		if w.scheduledTimers[minTask.Timer.GetId()] != minTask {
			heap.Pop(&w.remainingToFireTimersHeap)
			continue
		}
		if minTask.FireTime.After(w.timeSource.Now()) {
			w.nextFiringTimer.Update(minTask.FireTime)
			break
		}

		heap.Pop(&w.remainingToFireTimersHeap)
		id := minTask.Timer.GetId()
		delete(w.scheduledTimers, id)
		w.firedToCompleteTimers[id] = minTask.Timer
		if !w.dispatch(minTask.Timer) {
			return
		}
	}
	w.metrics.SetScheduledTimers(len(w.scheduledTimers))
}

// dispatch sends the timer to the processor, while still draining completions
// so that a full processor cannot block on a full completion channel
func (w *timerTaskQueueImpl) dispatch(t *timer.Timer) bool {
	for {
		select {
		case w.processor.GetTasksToProcessChan() <- t:
			return true
		case completed := <-w.tasksCompletionChan:
			w.completeFiring(completed)
		case <-w.rootCtx.Done():
			return false
		}
	}
}

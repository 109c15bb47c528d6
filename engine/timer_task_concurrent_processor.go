// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"sync"

	"github.com/xcherryio/xtimer/common/clock"
	"github.com/xcherryio/xtimer/common/log"
	"github.com/xcherryio/xtimer/common/log/tag"
	"github.com/xcherryio/xtimer/common/metrics"
	"github.com/xcherryio/xtimer/config"
	"github.com/xcherryio/xtimer/timer"
)

type timerTaskConcurrentProcessor struct {
	// runCtx is passed to the timer tasks, and only canceled when stopping times out
	runCtx            context.Context
	cancelRun         context.CancelFunc
	cfg               config.TimerServiceConfig
	taskToProcessChan chan *timer.Timer
	// the queue to report the completed timers to
	tasksCompletionChan chan<- *timer.Timer
	svc                 TimerServiceContext
	timeSource          clock.TimeSource
	logger              log.Logger
	metrics             *metrics.Metrics

	quit chan struct{}
	wg   sync.WaitGroup
}

func NewTimerTaskConcurrentProcessor(
	ctx context.Context, cfg config.TimerServiceConfig, svc TimerServiceContext,
	timeSource clock.TimeSource, logger log.Logger, m *metrics.Metrics,
) TimerTaskProcessor {
	bufferSize := cfg.TimerTaskQueue.ProcessorBufferSize
	runCtx, cancel := context.WithCancel(ctx)
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &timerTaskConcurrentProcessor{
		runCtx:            runCtx,
		cancelRun:         cancel,
		cfg:               cfg,
		taskToProcessChan: make(chan *timer.Timer, bufferSize),
		svc:               svc,
		timeSource:        timeSource,
		logger:            logger,
		metrics:           m,
		quit:              make(chan struct{}),
	}
}

func (w *timerTaskConcurrentProcessor) GetTasksToProcessChan() chan<- *timer.Timer {
	return w.taskToProcessChan
}

func (w *timerTaskConcurrentProcessor) SetTimerTaskQueue(tasksCompletionChan chan<- *timer.Timer) {
	w.tasksCompletionChan = tasksCompletionChan
}

func (w *timerTaskConcurrentProcessor) Start() error {
	concurrency := w.cfg.TimerTaskQueue.ProcessorConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case <-w.quit:
					return
				case t, ok := <-w.taskToProcessChan:
					if !ok {
						return
					}
					w.processTimerTask(t)

					if w.tasksCompletionChan == nil {
						continue
					}
					select {
					case w.tasksCompletionChan <- t:
					case <-w.quit:
						return
					}
				}
			}
		}()
	}
	return nil
}

// Stop waits for the running timer tasks to finish.
// If ctx is done first, the running tasks are canceled.
func (w *timerTaskConcurrentProcessor) Stop(ctx context.Context) error {
	close(w.quit)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.cancelRun()
		return nil
	case <-ctx.Done():
		w.logger.Warn("timed out waiting for the running timer tasks, canceling them")
		w.cancelRun()
		<-done
		return ctx.Err()
	}
}

func (w *timerTaskConcurrentProcessor) processTimerTask(t *timer.Timer) {
	w.logger.Debug("start executing timer task", tag.TimerId(t.GetId()))

	task, err := NewTimerTask(t, w.svc, w.cfg.PersistRetryPolicy, w.timeSource, w.logger, w.metrics)
	if err != nil {
		w.logger.Error("failed to create timer task", tag.TimerId(t.GetId()), tag.Error(err))
		return
	}
	task.Run(w.runCtx)
}

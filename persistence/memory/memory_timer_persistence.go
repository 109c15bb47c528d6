// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"sync"

	"github.com/xcherryio/xtimer/persistence"
)

type timerKey struct {
	timedObjectId string
	id            string
}

type memoryTimerPersistenceImpl struct {
	sync.RWMutex
	timers map[timerKey]persistence.TimerEntity
}

// NewMemoryTimerPersistence keeps the timers in memory; they are lost when the process exits
func NewMemoryTimerPersistence() persistence.TimerPersistence {
	return &memoryTimerPersistenceImpl{
		timers: map[timerKey]persistence.TimerEntity{},
	}
}

func (p *memoryTimerPersistenceImpl) Close() error {
	return nil
}

func (p *memoryTimerPersistenceImpl) PersistTimer(_ context.Context, entity persistence.TimerEntity) error {
	p.Lock()
	defer p.Unlock()

	key := timerKey{timedObjectId: entity.TimedObjectId, id: entity.Id}
	if existing, ok := p.timers[key]; ok && existing.IsTerminal() && existing.TimerState != entity.TimerState {
		return persistence.ErrTimerTerminated
	}
	p.timers[key] = copyEntity(entity)
	return nil
}

func (p *memoryTimerPersistenceImpl) LoadTimer(
	_ context.Context, timedObjectId, timerId string,
) (*persistence.TimerEntity, error) {
	p.RLock()
	defer p.RUnlock()

	entity, ok := p.timers[timerKey{timedObjectId: timedObjectId, id: timerId}]
	if !ok {
		return nil, persistence.ErrTimerNotFound
	}
	e := copyEntity(entity)
	return &e, nil
}

func (p *memoryTimerPersistenceImpl) LoadActiveTimers(
	_ context.Context, timedObjectId string,
) ([]persistence.TimerEntity, error) {
	p.RLock()
	defer p.RUnlock()

	var timers []persistence.TimerEntity
	for key, entity := range p.timers {
		if key.timedObjectId == timedObjectId && !entity.IsTerminal() {
			timers = append(timers, copyEntity(entity))
		}
	}
	return timers, nil
}

func (p *memoryTimerPersistenceImpl) TimerUndeployed(_ context.Context, timedObjectId string) error {
	p.Lock()
	defer p.Unlock()

	for key, entity := range p.timers {
		if key.timedObjectId == timedObjectId && entity.IsTerminal() {
			delete(p.timers, key)
		}
	}
	return nil
}

// copyEntity makes sure the stored pointers are never shared with the caller
func copyEntity(e persistence.TimerEntity) persistence.TimerEntity {
	e.NextDateMillis = copyPtr(e.NextDateMillis)
	e.PreviousRunMillis = copyPtr(e.PreviousRunMillis)
	e.ScheduleExpression = copyPtr(e.ScheduleExpression)
	e.ScheduleTimezone = copyPtr(e.ScheduleTimezone)
	e.ScheduleStartMillis = copyPtr(e.ScheduleStartMillis)
	e.ScheduleEndMillis = copyPtr(e.ScheduleEndMillis)
	return e
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

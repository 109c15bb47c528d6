// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package persistencetest

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcherryio/xtimer/common/ptr"
	"github.com/xcherryio/xtimer/persistence"
)

// RunTimerPersistenceTests checks the behaviors every TimerPersistence must have.
// Every run uses a fresh timed object id, so a shared database can be reused.
func RunTimerPersistenceTests(t *testing.T, store persistence.TimerPersistence) {
	t.Run("PersistAndLoad", func(t *testing.T) { testPersistAndLoad(t, store) })
	t.Run("LoadActiveTimers", func(t *testing.T) { testLoadActiveTimers(t, store) })
	t.Run("TerminalTimerStaysTerminal", func(t *testing.T) { testTerminalTimerStaysTerminal(t, store) })
	t.Run("TimerUndeployed", func(t *testing.T) { testTimerUndeployed(t, store) })
}

func newTimedObjectId() string {
	return fmt.Sprintf("test-obj-%v", time.Now().UnixNano())
}

func NewTimerEntity(timedObjectId, id, state string) persistence.TimerEntity {
	return persistence.TimerEntity{
		Id:                   id,
		TimedObjectId:        timedObjectId,
		InitialDateMillis:    1700000000000,
		RepeatIntervalMillis: 1000,
		NextDateMillis:       ptr.Any(int64(1700000000000)),
		TimerState:           state,
		Info:                 "info of " + id,
	}
}

func testPersistAndLoad(t *testing.T, store persistence.TimerPersistence) {
	ctx := context.Background()
	owner := newTimedObjectId()

	_, err := store.LoadTimer(ctx, owner, "missing")
	assert.ErrorIs(t, err, persistence.ErrTimerNotFound)

	entity := NewTimerEntity(owner, "timer-1", "ACTIVE")
	require.Nil(t, store.PersistTimer(ctx, entity))

	loaded, err := store.LoadTimer(ctx, owner, "timer-1")
	require.Nil(t, err)
	assert.Equal(t, entity, *loaded)

	// the mutable attributes are overwritten
	entity.TimerState = "IN_TIMEOUT"
	entity.PreviousRunMillis = ptr.Any(int64(1700000000000))
	entity.NextDateMillis = ptr.Any(int64(1700000001000))
	require.Nil(t, store.PersistTimer(ctx, entity))

	loaded, err = store.LoadTimer(ctx, owner, "timer-1")
	require.Nil(t, err)
	assert.Equal(t, entity, *loaded)

	// calendar attributes are kept
	calendar := NewTimerEntity(owner, "timer-cal", "ACTIVE")
	calendar.RepeatIntervalMillis = 0
	calendar.ScheduleExpression = ptr.Any("0 0 * * * *")
	calendar.ScheduleTimezone = ptr.Any("UTC")
	calendar.ScheduleEndMillis = ptr.Any(int64(1800000000000))
	require.Nil(t, store.PersistTimer(ctx, calendar))
	loaded, err = store.LoadTimer(ctx, owner, "timer-cal")
	require.Nil(t, err)
	assert.Equal(t, calendar, *loaded)
	assert.True(t, loaded.IsCalendarTimer())
}

func testLoadActiveTimers(t *testing.T, store persistence.TimerPersistence) {
	ctx := context.Background()
	owner := newTimedObjectId()

	for id, state := range map[string]string{
		"a": "ACTIVE", "b": "IN_TIMEOUT", "c": "RETRY_TIMEOUT", "d": "CANCELED", "e": "EXPIRED", "f": "CREATED",
	} {
		require.Nil(t, store.PersistTimer(ctx, NewTimerEntity(owner, id, state)))
	}
	// a timer of another owner
	require.Nil(t, store.PersistTimer(ctx, NewTimerEntity(newTimedObjectId(), "x", "ACTIVE")))

	timers, err := store.LoadActiveTimers(ctx, owner)
	require.Nil(t, err)
	var ids []string
	for _, e := range timers {
		ids = append(ids, e.Id)
	}
	sort.Strings(ids)
	assert.Equal(t, []string{"a", "b", "c", "f"}, ids)
}

func testTerminalTimerStaysTerminal(t *testing.T, store persistence.TimerPersistence) {
	ctx := context.Background()
	owner := newTimedObjectId()

	entity := NewTimerEntity(owner, "timer-1", "CANCELED")
	require.Nil(t, store.PersistTimer(ctx, entity))

	entity.TimerState = "ACTIVE"
	assert.ErrorIs(t, store.PersistTimer(ctx, entity), persistence.ErrTimerTerminated)

	// persisting the same terminal state again is fine
	entity.TimerState = "CANCELED"
	assert.Nil(t, store.PersistTimer(ctx, entity))

	loaded, err := store.LoadTimer(ctx, owner, "timer-1")
	require.Nil(t, err)
	assert.Equal(t, "CANCELED", loaded.TimerState)
}

func testTimerUndeployed(t *testing.T, store persistence.TimerPersistence) {
	ctx := context.Background()
	owner := newTimedObjectId()

	require.Nil(t, store.PersistTimer(ctx, NewTimerEntity(owner, "active", "ACTIVE")))
	require.Nil(t, store.PersistTimer(ctx, NewTimerEntity(owner, "expired", "EXPIRED")))
	require.Nil(t, store.TimerUndeployed(ctx, owner))

	_, err := store.LoadTimer(ctx, owner, "expired")
	assert.ErrorIs(t, err, persistence.ErrTimerNotFound)
	_, err = store.LoadTimer(ctx, owner, "active")
	assert.Nil(t, err)
}

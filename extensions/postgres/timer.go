// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/xcherryio/xtimer/extensions"
)

const timerColumns = `timed_object_id, id, initial_date_millis, repeat_interval_millis, next_date_millis,
	previous_run_millis, timer_state, info, schedule_expression, schedule_timezone, schedule_start_millis, schedule_end_millis`

const selectTimerQuery = `SELECT ` + timerColumns + `
	FROM xtimer_timers WHERE timed_object_id = $1 AND id = $2`

func (d dbSession) SelectTimer(
	ctx context.Context, timedObjectId, id string,
) (*extensions.TimerRow, error) {
	var row extensions.TimerRow
	err := d.db.GetContext(ctx, &row, selectTimerQuery, timedObjectId, id)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

const selectTimersNotInStatesQuery = `SELECT ` + timerColumns + `
	FROM xtimer_timers WHERE timed_object_id = ? AND timer_state NOT IN (?)
	ORDER BY next_date_millis ASC, id ASC`

func (d dbSession) SelectTimersNotInStates(
	ctx context.Context, timedObjectId string, states []string,
) ([]extensions.TimerRow, error) {
	query, args, err := sqlx.In(selectTimersNotInStatesQuery, timedObjectId, states)
	if err != nil {
		return nil, err
	}
	var rows []extensions.TimerRow
	err = d.db.SelectContext(ctx, &rows, d.db.Rebind(query), args...)
	return rows, err
}

const deleteTimersInStatesQuery = `DELETE FROM xtimer_timers WHERE timed_object_id = ? AND timer_state IN (?)`

func (d dbSession) DeleteTimersInStates(
	ctx context.Context, timedObjectId string, states []string,
) (int64, error) {
	query, args, err := sqlx.In(deleteTimersInStatesQuery, timedObjectId, states)
	if err != nil {
		return 0, err
	}
	result, err := d.db.ExecContext(ctx, d.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const selectTimerForUpdateQuery = `SELECT ` + timerColumns + `
	FROM xtimer_timers WHERE timed_object_id = $1 AND id = $2 FOR UPDATE`

func (d dbTx) SelectTimerForUpdate(
	ctx context.Context, timedObjectId, id string,
) (*extensions.TimerRow, bool, error) {
	var rows []extensions.TimerRow
	err := d.tx.SelectContext(ctx, &rows, selectTimerForUpdateQuery, timedObjectId, id)
	if err != nil {
		return nil, false, err
	}

	if len(rows) > 1 {
		return nil, false, fmt.Errorf("more than one row found for timedObjectId %s and id %s", timedObjectId, id)
	}

	if len(rows) == 0 {
		return nil, false, nil
	}

	return &rows[0], true, nil
}

const upsertTimerQuery = `INSERT INTO xtimer_timers
	(` + timerColumns + `) VALUES
	(:timed_object_id, :id, :initial_date_millis, :repeat_interval_millis, :next_date_millis,
	 :previous_run_millis, :timer_state, :info, :schedule_expression, :schedule_timezone, :schedule_start_millis, :schedule_end_millis)
	ON CONFLICT (timed_object_id, id) DO UPDATE SET
	next_date_millis = EXCLUDED.next_date_millis,
	previous_run_millis = EXCLUDED.previous_run_millis,
	timer_state = EXCLUDED.timer_state`

func (d dbTx) UpsertTimer(ctx context.Context, row extensions.TimerRow) error {
	_, err := d.tx.NamedExecContext(ctx, upsertTimerQuery, row)
	return err
}

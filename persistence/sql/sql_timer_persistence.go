// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package sql

import (
	"context"

	"github.com/xcherryio/xtimer/common/log"
	"github.com/xcherryio/xtimer/common/log/tag"
	"github.com/xcherryio/xtimer/config"
	"github.com/xcherryio/xtimer/extensions"
	"github.com/xcherryio/xtimer/persistence"
)

var terminalStates = []string{persistence.TimerStateCanceled, persistence.TimerStateExpired}

type sqlTimerPersistenceImpl struct {
	session extensions.SQLDBSession
	logger  log.Logger
}

func NewSQLTimerPersistence(sqlConfig config.SQL, logger log.Logger) (persistence.TimerPersistence, error) {
	session, err := extensions.NewSQLSession(&sqlConfig)
	if err != nil {
		return nil, err
	}
	return &sqlTimerPersistenceImpl{
		session: session,
		logger:  logger,
	}, nil
}

func (p sqlTimerPersistenceImpl) Close() error {
	return p.session.Close()
}

func (p sqlTimerPersistenceImpl) PersistTimer(ctx context.Context, entity persistence.TimerEntity) error {
	tx, err := p.session.StartTransaction(ctx, nil)
	if err != nil {
		return err
	}

	err = p.doPersistTimerTx(ctx, tx, entity)
	if err != nil {
		err2 := tx.Rollback()
		if err2 != nil {
			p.logger.Error("error on rollback transaction", tag.Error(err2))
		}
		return err
	}

	err = tx.Commit()
	if err != nil {
		p.logger.Error("error on committing transaction", tag.Error(err), tag.TimerId(entity.Id))
	}
	return err
}

func (p sqlTimerPersistenceImpl) doPersistTimerTx(
	ctx context.Context, tx extensions.SQLTransaction, entity persistence.TimerEntity,
) error {
	row, found, err := tx.SelectTimerForUpdate(ctx, entity.TimedObjectId, entity.Id)
	if err != nil {
		return err
	}
	if found && isTerminal(row.TimerState) && row.TimerState != entity.TimerState {
		return persistence.ErrTimerTerminated
	}
	return tx.UpsertTimer(ctx, toTimerRow(entity))
}

func (p sqlTimerPersistenceImpl) LoadTimer(
	ctx context.Context, timedObjectId, timerId string,
) (*persistence.TimerEntity, error) {
	row, err := p.session.SelectTimer(ctx, timedObjectId, timerId)
	if err != nil {
		if p.session.IsNotFoundError(err) {
			return nil, persistence.ErrTimerNotFound
		}
		return nil, err
	}
	entity := fromTimerRow(*row)
	return &entity, nil
}

func (p sqlTimerPersistenceImpl) LoadActiveTimers(
	ctx context.Context, timedObjectId string,
) ([]persistence.TimerEntity, error) {
	rows, err := p.session.SelectTimersNotInStates(ctx, timedObjectId, terminalStates)
	if err != nil {
		return nil, err
	}
	entities := make([]persistence.TimerEntity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, fromTimerRow(row))
	}
	return entities, nil
}

func (p sqlTimerPersistenceImpl) TimerUndeployed(ctx context.Context, timedObjectId string) error {
	deleted, err := p.session.DeleteTimersInStates(ctx, timedObjectId, terminalStates)
	if err != nil {
		return err
	}
	p.logger.Info("deleted the terminated timers of the undeployed timed object",
		tag.TimedObjectId(timedObjectId), tag.Count(int(deleted)))
	return nil
}

func isTerminal(state string) bool {
	return state == persistence.TimerStateCanceled || state == persistence.TimerStateExpired
}

func toTimerRow(e persistence.TimerEntity) extensions.TimerRow {
	return extensions.TimerRow{
		TimedObjectId:        e.TimedObjectId,
		Id:                   e.Id,
		InitialDateMillis:    e.InitialDateMillis,
		RepeatIntervalMillis: e.RepeatIntervalMillis,
		NextDateMillis:       e.NextDateMillis,
		PreviousRunMillis:    e.PreviousRunMillis,
		TimerState:           e.TimerState,
		Info:                 e.Info,
		ScheduleExpression:   e.ScheduleExpression,
		ScheduleTimezone:     e.ScheduleTimezone,
		ScheduleStartMillis:  e.ScheduleStartMillis,
		ScheduleEndMillis:    e.ScheduleEndMillis,
	}
}

func fromTimerRow(r extensions.TimerRow) persistence.TimerEntity {
	return persistence.TimerEntity{
		Id:                   r.Id,
		TimedObjectId:        r.TimedObjectId,
		InitialDateMillis:    r.InitialDateMillis,
		RepeatIntervalMillis: r.RepeatIntervalMillis,
		NextDateMillis:       r.NextDateMillis,
		PreviousRunMillis:    r.PreviousRunMillis,
		TimerState:           r.TimerState,
		Info:                 r.Info,
		ScheduleExpression:   r.ScheduleExpression,
		ScheduleTimezone:     r.ScheduleTimezone,
		ScheduleStartMillis:  r.ScheduleStartMillis,
		ScheduleEndMillis:    r.ScheduleEndMillis,
	}
}

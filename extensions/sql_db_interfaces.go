// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package extensions

import (
	"context"
	"database/sql"

	"github.com/xcherryio/xtimer/config"
)

type SQLDBExtension interface {
	// StartDBSession starts the session for regular business logic
	StartDBSession(cfg *config.SQL) (SQLDBSession, error)
	// StartAdminDBSession starts the session for admin operation like DDL
	StartAdminDBSession(cfg *config.SQL) (SQLAdminDBSession, error)
}

type SQLDBSession interface {
	timerNonTxnCRUD
	ErrorChecker

	StartTransaction(ctx context.Context, opts *sql.TxOptions) (SQLTransaction, error)
	Close() error
}

type SQLTransaction interface {
	timerTxnCRUD
	Commit() error
	Rollback() error
}

type SQLAdminDBSession interface {
	CreateDatabase(ctx context.Context, database string) error
	DropDatabase(ctx context.Context, database string) error
	ExecuteSchemaDDL(ctx context.Context, ddlQuery string) error
	Close() error
}

type timerTxnCRUD interface {
	// SelectTimerForUpdate locks the row of the timer, returning false if it doesn't exist
	SelectTimerForUpdate(ctx context.Context, timedObjectId, id string) (*TimerRow, bool, error)
	UpsertTimer(ctx context.Context, row TimerRow) error
}

type timerNonTxnCRUD interface {
	// SelectTimer returns sql.ErrNoRows if the timer doesn't exist
	SelectTimer(ctx context.Context, timedObjectId, id string) (*TimerRow, error)
	// SelectTimersNotInStates returns the timers of the timed object that are not in any of the states
	SelectTimersNotInStates(ctx context.Context, timedObjectId string, states []string) ([]TimerRow, error)
	// DeleteTimersInStates deletes the timers of the timed object that are in any of the states
	DeleteTimersInStates(ctx context.Context, timedObjectId string, states []string) (int64, error)
}

type ErrorChecker interface {
	IsDupEntryError(err error) bool
	IsNotFoundError(err error) bool
	IsTimeoutError(err error) bool
	IsThrottlingError(err error) bool
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/xcherryio/xtimer/extensions"
)

// NOTE postgres doesn't accept bind parameters for identifiers, so the name is quoted instead
const createDatabaseQuery = "CREATE DATABASE %v"

const dropDatabaseQuery = "DROP DATABASE IF EXISTS %v"

type adminDBSession struct {
	db *sqlx.DB
}

var _ extensions.SQLAdminDBSession = (*adminDBSession)(nil)

func newAdminDBSession(db *sqlx.DB) *adminDBSession {
	return &adminDBSession{
		db: db,
	}
}

func (a adminDBSession) DropDatabase(ctx context.Context, database string) error {
	_, err := a.db.ExecContext(ctx, fmt.Sprintf(dropDatabaseQuery, pq.QuoteIdentifier(database)))
	return err
}

func (a adminDBSession) ExecuteSchemaDDL(ctx context.Context, ddlQuery string) error {
	_, err := a.db.ExecContext(ctx, ddlQuery)
	return err
}

func (a adminDBSession) CreateDatabase(ctx context.Context, database string) error {
	_, err := a.db.ExecContext(ctx, fmt.Sprintf(createDatabaseQuery, pq.QuoteIdentifier(database)))
	return err
}

func (a adminDBSession) Close() error {
	return a.db.Close()
}

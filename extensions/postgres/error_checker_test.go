// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/xcherryio/xtimer/config"
)

func TestErrorChecker(t *testing.T) {
	checker := errorChecker{}

	dup := fmt.Errorf("upsert failed: %w", &pq.Error{Code: ErrDupEntry})
	assert.True(t, checker.IsDupEntryError(dup))
	assert.False(t, checker.IsDupEntryError(sql.ErrNoRows))

	assert.True(t, checker.IsNotFoundError(fmt.Errorf("select: %w", sql.ErrNoRows)))

	assert.True(t, checker.IsTimeoutError(context.DeadlineExceeded))
	assert.True(t, checker.IsTimeoutError(&pq.Error{Code: ErrQueryCanceled}))

	assert.True(t, checker.IsThrottlingError(&pq.Error{Code: ErrTooManyConnections}))
	assert.True(t, checker.IsThrottlingError(&pq.Error{Code: ErrInsufficientResources}))
	assert.False(t, checker.IsThrottlingError(&pq.Error{Code: ErrDupEntry}))
}

func TestBuildDSN(t *testing.T) {
	params := url.Values{}
	params.Set("sslmode", "disable")

	dsn := buildDSN(&config.SQL{User: "xtimer", Password: "secret", DatabaseName: "timers"}, "db", "5432", params)
	assert.Equal(t, "postgres://xtimer:secret@db:5432/timers?sslmode=disable", dsn)

	// the admin session connects to the default database
	dsn = buildDSN(&config.SQL{User: "xtimer"}, "db", "5432", url.Values{})
	assert.Equal(t, "postgres://xtimer@db:5432/postgres", dsn)
}

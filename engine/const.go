// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"time"

	"github.com/xcherryio/xtimer/config"
)

// Default: 3 attempts with 100 milliseconds initial interval, 2 seconds max interval, and 2 backoff factor
var defaultPersistRetryPolicy = config.RetryPolicy{
	InitialInterval:    100 * time.Millisecond,
	BackoffCoefficient: 2,
	MaximumInterval:    2 * time.Second,
	MaximumAttempts:    3,
}

// timeoutRetryBudget is the number of retries of a failed timeout callback within one firing
const timeoutRetryBudget int32 = 1

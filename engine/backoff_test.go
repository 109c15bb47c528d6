// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xcherryio/xtimer/config"
)

func TestGetNextBackoff(t *testing.T) {
	policy := config.RetryPolicy{
		InitialInterval:    100 * time.Millisecond,
		BackoffCoefficient: 2,
		MaximumInterval:    300 * time.Millisecond,
		MaximumAttempts:    4,
	}

	backoff, ok := GetNextBackoff(1, policy)
	assert.True(t, ok)
	assert.Equal(t, 100*time.Millisecond, backoff)

	backoff, ok = GetNextBackoff(2, policy)
	assert.True(t, ok)
	assert.Equal(t, 200*time.Millisecond, backoff)

	backoff, ok = GetNextBackoff(3, policy)
	assert.True(t, ok)
	assert.Equal(t, 300*time.Millisecond, backoff)

	_, ok = GetNextBackoff(4, policy)
	assert.False(t, ok)
}

func TestGetNextBackoffDefaults(t *testing.T) {
	backoff, ok := GetNextBackoff(1, config.RetryPolicy{})
	assert.True(t, ok)
	assert.Equal(t, defaultPersistRetryPolicy.InitialInterval, backoff)

	_, ok = GetNextBackoff(defaultPersistRetryPolicy.MaximumAttempts, config.RetryPolicy{})
	assert.False(t, ok)
}

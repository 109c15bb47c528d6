// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"math"
	"time"

	"github.com/xcherryio/xtimer/config"
)

// GetNextBackoff returns the backoff before the next attempt, after completedAttempts have failed
func GetNextBackoff(
	completedAttempts int32, policy config.RetryPolicy,
) (nextBackoff time.Duration, shouldRetry bool) {
	policy = setDefaultRetryPolicyValue(policy)
	if completedAttempts >= policy.MaximumAttempts {
		return 0, false
	}
	nextInterval := time.Duration(
		float64(policy.InitialInterval) * math.Pow(policy.BackoffCoefficient, float64(completedAttempts-1)))
	if nextInterval > policy.MaximumInterval || nextInterval < 0 {
		nextInterval = policy.MaximumInterval
	}
	return nextInterval, true
}

func setDefaultRetryPolicyValue(policy config.RetryPolicy) config.RetryPolicy {
	if policy.InitialInterval == 0 {
		policy.InitialInterval = defaultPersistRetryPolicy.InitialInterval
	}
	if policy.BackoffCoefficient == 0 {
		policy.BackoffCoefficient = defaultPersistRetryPolicy.BackoffCoefficient
	}
	if policy.MaximumInterval == 0 {
		policy.MaximumInterval = defaultPersistRetryPolicy.MaximumInterval
	}
	if policy.MaximumAttempts == 0 {
		policy.MaximumAttempts = defaultPersistRetryPolicy.MaximumAttempts
	}
	return policy
}

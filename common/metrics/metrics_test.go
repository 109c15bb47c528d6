// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := NewMetrics()
	m.Timeout(ResultSuccess)
	m.Timeout(ResultSuccess)
	m.Timeout(ResultFailure)
	m.Retry(ResultFailure)
	m.SkippedFiring(SkipReasonInRetry)
	m.PersistFailure(PersistPhasePost)
	m.SetScheduledTimers(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.timeouts.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.timeouts.WithLabelValues(ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries.WithLabelValues(ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skippedFirings.WithLabelValues(SkipReasonInRetry)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistFailures.WithLabelValues(PersistPhasePost)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.scheduledTimers))
}

func TestSeparateRegistries(t *testing.T) {
	m1 := NewMetrics()
	m2 := NewMetrics()
	m1.Timeout(ResultSuccess)
	assert.Equal(t, 0.0, testutil.ToFloat64(m2.timeouts.WithLabelValues(ResultSuccess)))
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.Retry(ResultSuccess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.Nil(t, err)
	assert.Contains(t, string(body), `xtimer_retries_total{result="success"} 1`)
}

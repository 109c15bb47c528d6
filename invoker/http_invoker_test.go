// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcherryio/xtimer/common/httperror"
	"github.com/xcherryio/xtimer/common/log"
	"github.com/xcherryio/xtimer/engine"
	"github.com/xcherryio/xtimer/timer"
)

var _ engine.TimedObjectInvoker = FuncInvoker{}

func newFiredTimer(t *testing.T) *timer.Timer {
	tm := timer.NewTimer("timer-1", "obj", time.Unix(1000, 0), time.Minute, "payload", true)
	require.Nil(t, tm.SetTimerState(timer.TimerStateActive))
	require.Nil(t, tm.SetTimerState(timer.TimerStateInTimeout))
	return tm
}

func TestHTTPInvokerPostsTimeoutRequest(t *testing.T) {
	var received TimeoutRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Nil(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	inv := NewHTTPInvoker("obj", server.URL, time.Second, log.NewNopLogger())
	assert.Equal(t, "obj", inv.GetTimedObjectId())
	require.Nil(t, inv.CallTimeout(context.Background(), newFiredTimer(t)))

	assert.Equal(t, "timer-1", received.TimerId)
	assert.Equal(t, "obj", received.TimedObjectId)
	assert.Equal(t, "payload", received.Info)
	assert.Equal(t, "IN_TIMEOUT", received.State)
	require.NotNil(t, received.NextTimeout)
	assert.True(t, received.NextTimeout.Equal(time.Unix(1000, 0)))
}

func TestHTTPInvokerNon2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(strings.Repeat("x", 2*maxResponseDetailSize)))
	}))
	defer server.Close()

	inv := NewHTTPInvoker("obj", server.URL, time.Second, log.NewNopLogger())
	err := inv.CallTimeout(context.Background(), newFiredTimer(t))

	var errResp *httperror.ErrorResponse
	require.True(t, errors.As(err, &errResp))
	assert.Equal(t, http.StatusServiceUnavailable, errResp.StatusCode)
	assert.True(t, strings.HasSuffix(errResp.Details, "...(truncated)"))
}

func TestHTTPInvokerTimeout(t *testing.T) {
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-done:
		}
	}))
	defer server.Close()
	defer close(done)

	inv := NewHTTPInvoker("obj", server.URL, 50*time.Millisecond, log.NewNopLogger())
	err := inv.CallTimeout(context.Background(), newFiredTimer(t))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFuncInvoker(t *testing.T) {
	var called string
	inv := FuncInvoker{
		TimedObjectId: "obj",
		Fn: func(ctx context.Context, tm *timer.Timer) error {
			called = tm.GetId()
			return nil
		},
	}
	require.Nil(t, inv.CallTimeout(context.Background(), newFiredTimer(t)))
	assert.Equal(t, "timer-1", called)
}

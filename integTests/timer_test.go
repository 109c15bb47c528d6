// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package integTests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcherryio/xtimer/service/api"
)

func apiUrl(path string) string {
	return fmt.Sprintf("http://%v%v", *serverAddress, path)
}

func createTimer(t *testing.T, req api.CreateTimerRequest) api.TimerView {
	body, err := json.Marshal(req)
	require.Nil(t, err)
	resp, err := http.Post(apiUrl(api.PathTimers), "application/json", bytes.NewReader(body))
	require.Nil(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view api.TimerView
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&view))
	return view
}

func describeTimer(t *testing.T, timerId string) api.TimerView {
	resp, err := http.Get(apiUrl(api.PathTimers + "/" + timerId))
	require.Nil(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view api.TimerView
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&view))
	return view
}

func TestSingleActionTimer(t *testing.T) {
	created := createTimer(t, api.CreateTimerRequest{
		Type:               api.TimerTypeSingle,
		InitialDelayMillis: 100,
		Info:               "single",
		Persistent:         true,
	})

	require.Eventually(t, func() bool {
		return len(worker.timeoutsOf(created.Id)) == 1
	}, 10*time.Second, 50*time.Millisecond)
	timeout := worker.timeoutsOf(created.Id)[0]
	assert.Equal(t, "single", timeout.Info)
	assert.Equal(t, "IN_TIMEOUT", timeout.State)

	require.Eventually(t, func() bool {
		return describeTimer(t, created.Id).State == "EXPIRED"
	}, 10*time.Second, 50*time.Millisecond)
}

func TestIntervalTimerUntilCanceled(t *testing.T) {
	created := createTimer(t, api.CreateTimerRequest{
		Type:           api.TimerTypeInterval,
		IntervalMillis: 200,
		Persistent:     true,
	})

	require.Eventually(t, func() bool {
		return len(worker.timeoutsOf(created.Id)) >= 3
	}, 10*time.Second, 50*time.Millisecond)

	req, err := http.NewRequest(http.MethodDelete, apiUrl(api.PathTimers+"/"+created.Id), nil)
	require.Nil(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.Nil(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CANCELED", describeTimer(t, created.Id).State)

	// a timeout that was already in flight may still arrive
	time.Sleep(300 * time.Millisecond)
	count := len(worker.timeoutsOf(created.Id))
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, count, len(worker.timeoutsOf(created.Id)))
}

func TestFailedTimeoutIsRetried(t *testing.T) {
	created := createTimer(t, api.CreateTimerRequest{
		Type: api.TimerTypeSingle,
		Info: infoFailOnce,
	})

	require.Eventually(t, func() bool {
		return len(worker.timeoutsOf(created.Id)) == 2
	}, 10*time.Second, 50*time.Millisecond)
	timeouts := worker.timeoutsOf(created.Id)
	assert.Equal(t, "IN_TIMEOUT", timeouts[0].State)
	assert.Equal(t, "RETRY_TIMEOUT", timeouts[1].State)
}

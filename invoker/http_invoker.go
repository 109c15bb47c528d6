// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/xcherryio/xtimer/common/httperror"
	"github.com/xcherryio/xtimer/common/log"
	"github.com/xcherryio/xtimer/common/log/tag"
	"github.com/xcherryio/xtimer/common/urlautofix"
	"github.com/xcherryio/xtimer/engine"
	"github.com/xcherryio/xtimer/timer"
)

const maxResponseDetailSize = 1000

// TimeoutRequest is the body posted to the worker for every timeout callback.
// PreviousRun is when this timeout started, NextTimeout is the one after it.
type TimeoutRequest struct {
	TimerId       string     `json:"timerId"`
	TimedObjectId string     `json:"timedObjectId"`
	Info          string     `json:"info,omitempty"`
	PreviousRun   *time.Time `json:"previousRun,omitempty"`
	NextTimeout   *time.Time `json:"nextTimeout,omitempty"`
	State         string     `json:"state"`
}

type httpInvoker struct {
	timedObjectId string
	url           string
	timeout       time.Duration
	client        *http.Client
	logger        log.Logger
}

func NewHTTPInvoker(timedObjectId, url string, timeout time.Duration, logger log.Logger) engine.TimedObjectInvoker {
	return &httpInvoker{
		timedObjectId: timedObjectId,
		url:           urlautofix.FixWorkerUrl(url),
		timeout:       timeout,
		client:        &http.Client{},
		logger:        logger,
	}
}

func (h *httpInvoker) GetTimedObjectId() string {
	return h.timedObjectId
}

func (h *httpInvoker) CallTimeout(ctx context.Context, t *timer.Timer) error {
	body, err := json.Marshal(NewTimeoutRequest(t))
	if err != nil {
		return err
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if !httperror.CheckHttpResponseAndError(err, resp, h.logger.WithTags(tag.TimerId(t.GetId()))) {
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("timeout callback failed, %w", httperror.ComposeHttpError(resp, maxResponseDetailSize))
}

func NewTimeoutRequest(t *timer.Timer) TimeoutRequest {
	return TimeoutRequest{
		TimerId:       t.GetId(),
		TimedObjectId: t.GetTimedObjectId(),
		Info:          t.GetInfo(),
		PreviousRun:   t.GetPreviousRun(),
		NextTimeout:   t.GetNextExpiration(),
		State:         t.GetState().String(),
	}
}

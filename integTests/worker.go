// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package integTests

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/xcherryio/xtimer/invoker"
)

const workerTimeoutPath = "/api/v1/xtimer/worker/timeout"

// infoFailOnce makes the worker fail the first timeout of the timer
const infoFailOnce = "fail-once"

type timeoutWorker struct {
	sync.Mutex
	received map[string][]invoker.TimeoutRequest
	failed   map[string]bool
	server   *http.Server
}

func startTimeoutWorker(address string) *timeoutWorker {
	w := &timeoutWorker{
		received: map[string][]invoker.TimeoutRequest{},
		failed:   map[string]bool{},
	}
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST(workerTimeoutPath, w.handleTimeout)
	w.server = &http.Server{Addr: address, Handler: engine}
	go func() {
		_ = w.server.ListenAndServe()
	}()
	return w
}

func (w *timeoutWorker) handleTimeout(c *gin.Context) {
	var req invoker.TimeoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	w.Lock()
	defer w.Unlock()
	w.received[req.TimerId] = append(w.received[req.TimerId], req)
	if strings.HasPrefix(req.Info, infoFailOnce) && !w.failed[req.TimerId] {
		w.failed[req.TimerId] = true
		c.String(http.StatusInternalServerError, "worker failed on purpose")
		return
	}
	c.Status(http.StatusOK)
}

func (w *timeoutWorker) timeoutsOf(timerId string) []invoker.TimeoutRequest {
	w.Lock()
	defer w.Unlock()
	return append([]invoker.TimeoutRequest(nil), w.received[timerId]...)
}

func (w *timeoutWorker) stop(ctx context.Context) error {
	return w.server.Shutdown(ctx)
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xcherryio/xtimer/common/log"
	"github.com/xcherryio/xtimer/common/log/tag"
)

type ginHandler struct {
	logger log.Logger
	svc    Service
}

func newGinHandler(svc Service, logger log.Logger) *ginHandler {
	return &ginHandler{
		logger: logger,
		svc:    svc,
	}
}

func (h *ginHandler) CreateTimer(c *gin.Context) {
	var req CreateTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequestSchema(c)
		return
	}
	h.logger.Debug("received CreateTimer API request", tag.Value(h.toJson(req)))

	resp, errResp := h.svc.CreateTimer(c.Request.Context(), req)
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ginHandler) ListTimers(c *gin.Context) {
	resp, errResp := h.svc.ListTimers(c.Request.Context())
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ginHandler) DescribeTimer(c *gin.Context) {
	resp, errResp := h.svc.DescribeTimer(c.Request.Context(), c.Param("id"))
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ginHandler) CancelTimer(c *gin.Context) {
	timerId := c.Param("id")
	h.logger.Debug("received CancelTimer API request", tag.TimerId(timerId))

	if errResp := h.svc.CancelTimer(c.Request.Context(), timerId); errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.Status(http.StatusOK)
}

func (h *ginHandler) toJson(req any) string {
	str, err := json.Marshal(req)
	if err != nil {
		h.logger.Error("error when serializing request", tag.Error(err), tag.Value(req))
		return ""
	}
	return string(str)
}

func invalidRequestSchema(c *gin.Context) {
	c.JSON(http.StatusBadRequest, ApiErrorResponse{
		Details: "invalid request schema",
	})
}

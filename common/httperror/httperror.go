// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package httperror

import (
	"fmt"
	"io"
	"net/http"

	"github.com/xcherryio/xtimer/common/log"
	"github.com/xcherryio/xtimer/common/log/tag"
)

// ErrorResponse is a non-2xx response of a worker
type ErrorResponse struct {
	StatusCode int
	Details    string
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("statusCode: %v, responseBody: %v", e.StatusCode, e.Details)
}

// CheckHttpResponseAndError returns true if the request failed
func CheckHttpResponseAndError(err error, httpResp *http.Response, logger log.Logger) bool {
	status := 0
	if httpResp != nil {
		status = httpResp.StatusCode
	}
	logger.Debug("check http response and error", tag.Error(err), tag.StatusCode(status))

	if err != nil || (httpResp != nil && (httpResp.StatusCode < 200 || httpResp.StatusCode >= 300)) {
		return true
	}
	return false
}

// ComposeHttpError reads at most maxDetailSize bytes of the body into the error details
func ComposeHttpError(httpResp *http.Response, maxDetailSize int) *ErrorResponse {
	responseBody := "None"
	body, err := io.ReadAll(io.LimitReader(httpResp.Body, int64(maxDetailSize)+1))
	if err != nil {
		responseBody = "cannot read body from http response"
	} else if len(body) > 0 {
		responseBody = string(body)
	}
	if len(responseBody) > maxDetailSize {
		responseBody = responseBody[:maxDetailSize] + "...(truncated)"
	}
	return &ErrorResponse{StatusCode: httpResp.StatusCode, Details: responseBody}
}

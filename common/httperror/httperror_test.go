// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package httperror

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xcherryio/xtimer/common/log"
)

func newResponse(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestCheckHttpResponseAndError(t *testing.T) {
	logger := log.NewNopLogger()
	assert.False(t, CheckHttpResponseAndError(nil, newResponse(http.StatusOK, ""), logger))
	assert.False(t, CheckHttpResponseAndError(nil, newResponse(http.StatusNoContent, ""), logger))
	assert.True(t, CheckHttpResponseAndError(nil, newResponse(http.StatusBadGateway, ""), logger))
	assert.True(t, CheckHttpResponseAndError(errors.New("connection refused"), nil, logger))
}

func TestComposeHttpError(t *testing.T) {
	err := ComposeHttpError(newResponse(http.StatusInternalServerError, "boom"), 10)
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode)
	assert.Equal(t, "boom", err.Details)

	err = ComposeHttpError(newResponse(http.StatusInternalServerError, ""), 10)
	assert.Equal(t, "None", err.Details)

	err = ComposeHttpError(newResponse(http.StatusInternalServerError, strings.Repeat("x", 20)), 10)
	assert.Equal(t, strings.Repeat("x", 10)+"...(truncated)", err.Details)
}

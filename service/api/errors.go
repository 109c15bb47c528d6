// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package api

type ErrorWithStatus struct {
	StatusCode int
	Error      ApiErrorResponse
}

func NewErrorWithStatus(code int, details string) *ErrorWithStatus {
	return &ErrorWithStatus{
		StatusCode: code,
		Error: ApiErrorResponse{
			Details: details,
		},
	}
}

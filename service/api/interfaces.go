// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package api

import "context"

type Server interface {
	// Start will start running on the background
	Start() error
	Stop(ctx context.Context) error
}

// Service is the interface of API service, which decoupled from REST server framework like Gin
// So that users can choose to use other REST frameworks to serve requests
type Service interface {
	CreateTimer(ctx context.Context, request CreateTimerRequest) (*TimerView, *ErrorWithStatus)
	ListTimers(ctx context.Context) (*ListTimersResponse, *ErrorWithStatus)
	DescribeTimer(ctx context.Context, timerId string) (*TimerView, *ErrorWithStatus)
	CancelTimer(ctx context.Context, timerId string) *ErrorWithStatus
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package notification

import (
	"context"
	"time"
)

type TimerEventType string

const (
	TimerEventExpired        TimerEventType = "EXPIRED"
	TimerEventCanceled       TimerEventType = "CANCELED"
	TimerEventRetryExhausted TimerEventType = "RETRY_EXHAUSTED"
)

// TimerEvent is published when a timer reaches a terminal state,
// or when a timeout could not be delivered after its retry
type TimerEvent struct {
	Type          TimerEventType `json:"type"`
	TimerId       string         `json:"timerId"`
	TimedObjectId string         `json:"timedObjectId"`
	Time          time.Time      `json:"time"`
	Details       string         `json:"details,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, event TimerEvent) error
	Close() error
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops every event
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(ctx context.Context, event TimerEvent) error {
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

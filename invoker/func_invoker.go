// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package invoker

import (
	"context"

	"github.com/xcherryio/xtimer/timer"
)

// FuncInvoker delivers timeouts to an in-process function
type FuncInvoker struct {
	TimedObjectId string
	Fn            func(ctx context.Context, t *timer.Timer) error
}

func (f FuncInvoker) GetTimedObjectId() string {
	return f.TimedObjectId
}

func (f FuncInvoker) CallTimeout(ctx context.Context, t *timer.Timer) error {
	return f.Fn(ctx, t)
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package log

import (
	"github.com/xcherryio/xtimer/common/log/tag"
)

// Logger is our abstraction for logging
// Usage examples:
//
//	import "github.com/xcherryio/xtimer/common/log/tag"
//	1) logger = logger.WithTags(
//	        tag.TimerId("0190c7a4-..."),
//	        tag.TimedObjectId("billing-reminders"))
//	   logger.Info("timer fired")
//	2) logger.Info("timer fired",
//	        tag.TimerId("0190c7a4-..."),
//	        tag.TimerState("IN_TIMEOUT"))
//
//	Note: msg should be static, it is not recommended to use fmt.Sprintf() for msg.
//	      Anything dynamic should be tagged.
type Logger interface {
	Debug(msg string, tags ...tag.Tag)
	Info(msg string, tags ...tag.Tag)
	Warn(msg string, tags ...tag.Tag)
	Error(msg string, tags ...tag.Tag)
	Fatal(msg string, tags ...tag.Tag)
	WithTags(tags ...tag.Tag) Logger
}

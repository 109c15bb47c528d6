// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package timer

import (
	"fmt"
	"strings"
)

type TimerState int32

const (
	TimerStateCreated TimerState = iota
	TimerStateActive
	TimerStateInTimeout
	TimerStateRetryTimeout
	TimerStateCanceled
	TimerStateExpired
)

var timerStateNames = map[TimerState]string{
	TimerStateCreated:      "CREATED",
	TimerStateActive:       "ACTIVE",
	TimerStateInTimeout:    "IN_TIMEOUT",
	TimerStateRetryTimeout: "RETRY_TIMEOUT",
	TimerStateCanceled:     "CANCELED",
	TimerStateExpired:      "EXPIRED",
}

func (s TimerState) String() string {
	if name, ok := timerStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int32(s))
}

// IsTerminal returns true for the states a timer never leaves
func (s TimerState) IsTerminal() bool {
	return s == TimerStateCanceled || s == TimerStateExpired
}

func ParseTimerState(s string) (TimerState, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for state, name := range timerStateNames {
		if name == upper {
			return state, nil
		}
	}
	return TimerStateCreated, fmt.Errorf("unknown timer state %q", s)
}

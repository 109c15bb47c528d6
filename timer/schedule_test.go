// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcherryio/xtimer/common/ptr"
)

func TestScheduleWithSeconds(t *testing.T) {
	s, err := NewSchedule(ScheduleExpression{Expression: "*/15 * * * * *"})
	require.Nil(t, err)

	base := time.Date(2023, 10, 1, 9, 0, 0, 0, time.Local)
	// the first timeout includes the current second when it matches
	assert.Equal(t, base, *s.FirstTimeout(base))
	assert.Equal(t, base.Add(15*time.Second), *s.NextTimeout(base))
	assert.Equal(t, base.Add(15*time.Second), *s.FirstTimeout(base.Add(500 * time.Millisecond)))
}

func TestScheduleWithoutSeconds(t *testing.T) {
	s, err := NewSchedule(ScheduleExpression{Expression: "30 9 * * *", Timezone: "UTC"})
	require.Nil(t, err)

	now := time.Date(2023, 10, 1, 10, 0, 0, 0, time.UTC)
	next := s.NextTimeout(now)
	require.NotNil(t, next)
	assert.True(t, time.Date(2023, 10, 2, 9, 30, 0, 0, time.UTC).Equal(*next))
}

func TestScheduleBounds(t *testing.T) {
	start := time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC)
	end := time.Date(2023, 10, 1, 14, 0, 0, 0, time.UTC)
	s, err := NewSchedule(ScheduleExpression{
		Expression: "@hourly",
		Timezone:   "UTC",
		Start:      ptr.Any(start),
		End:        ptr.Any(end),
	})
	require.Nil(t, err)

	assert.True(t, start.Equal(*s.FirstTimeout(start.Add(-5 * time.Hour))))
	assert.True(t, start.Equal(*s.NextTimeout(start.Add(-5 * time.Hour))))
	assert.True(t, end.Equal(*s.NextTimeout(start.Add(time.Hour))))
	assert.Nil(t, s.NextTimeout(end))
}

func TestScheduleInvalid(t *testing.T) {
	_, err := NewSchedule(ScheduleExpression{Expression: ""})
	assert.NotNil(t, err)
	_, err = NewSchedule(ScheduleExpression{Expression: "not a cron"})
	assert.NotNil(t, err)
	_, err = NewSchedule(ScheduleExpression{Expression: "@daily", Timezone: "Mars/Olympus"})
	assert.NotNil(t, err)

	start := time.Now()
	_, err = NewSchedule(ScheduleExpression{
		Expression: "@daily",
		Start:      ptr.Any(start),
		End:        ptr.Any(start.Add(-time.Hour)),
	})
	assert.NotNil(t, err)
}

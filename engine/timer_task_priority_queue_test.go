// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"container/heap"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xcherryio/xtimer/timer"
)

func scheduledAt(id string, offsetSeconds int) *ScheduledTimer {
	fireTime := time.Unix(1700000000+int64(offsetSeconds), 0)
	return &ScheduledTimer{
		FireTime: fireTime,
		Timer:    timer.NewTimer(id, "obj", fireTime, 0, "", false),
	}
}

func TestTimerTaskPriorityQueue(t *testing.T) {
	pq := NewTimerTaskPriorityQueue([]*ScheduledTimer{
		scheduledAt("f", 6),
		scheduledAt("g", 7),
		scheduledAt("e", 5),
		scheduledAt("h", 8),
	})

	heap.Push(&pq, scheduledAt("c", 3))
	heap.Push(&pq, scheduledAt("a", 1))
	heap.Push(&pq, scheduledAt("b", 2))
	heap.Push(&pq, scheduledAt("d", 4))

	for i := 0; i < 8; i++ {
		task0 := pq.Peek()
		task := heap.Pop(&pq)
		assert.Equal(t, task0, task)
		task1, ok := task.(*ScheduledTimer)
		assert.Equal(t, true, ok)

		assert.Equal(t, int64(1700000000+i+1), task1.FireTime.Unix())
	}
	assert.Nil(t, pq.Peek())
}

func TestTimerTaskPriorityQueueSameFireTime(t *testing.T) {
	pq := NewTimerTaskPriorityQueue(nil)
	for _, id := range []string{"c", "a", "b"} {
		heap.Push(&pq, scheduledAt(id, 0))
	}

	var ids []string
	for pq.Len() > 0 {
		ids = append(ids, heap.Pop(&pq).(*ScheduledTimer).Timer.GetId())
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids, fmt.Sprintf("%v", ids))
}

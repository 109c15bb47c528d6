// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"container/heap"
	"time"

	"github.com/xcherryio/xtimer/timer"
)

// ScheduledTimer is a timer waiting in the queue to fire at FireTime
type ScheduledTimer struct {
	FireTime time.Time
	Timer    *timer.Timer
}

// I know, it looks a lot to have a heap. This is the standard way of using heap in Golang
// See https://pkg.go.dev/container/heap for more details

func NewTimerTaskPriorityQueue(timers []*ScheduledTimer) TimerTaskPriorityQueue {
	hq := make(TimerTaskPriorityQueue, 0, len(timers))
	hq = append(hq, timers...)
	heap.Init(&hq)
	return hq
}

// A TimerTaskPriorityQueue implements heap.Interface and holds the scheduled timers,
// ordered by fire time and then timer id.
type TimerTaskPriorityQueue []*ScheduledTimer

func (pq *TimerTaskPriorityQueue) Len() int { return len(*pq) }

func (pq *TimerTaskPriorityQueue) Less(i, j int) bool {
	a, b := (*pq)[i], (*pq)[j]
	if !a.FireTime.Equal(b.FireTime) {
		return a.FireTime.Before(b.FireTime)
	}
	return a.Timer.GetId() < b.Timer.GetId()
}

func (pq *TimerTaskPriorityQueue) Swap(i, j int) {
	(*pq)[i], (*pq)[j] = (*pq)[j], (*pq)[i]
}

func (pq *TimerTaskPriorityQueue) Push(x any) {
	item, ok := x.(*ScheduledTimer)
	if !ok {
		panic("Pushed item is not a ScheduledTimer")
	}
	*pq = append(*pq, item)
}

func (pq *TimerTaskPriorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	*pq = old[0 : n-1]
	return item
}

// Peek returns the earliest scheduled timer without removing it
func (pq *TimerTaskPriorityQueue) Peek() *ScheduledTimer {
	if len(*pq) == 0 {
		return nil
	}
	return (*pq)[0]
}

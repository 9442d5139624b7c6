// Copyright 2026 The Remapd Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package remapd

import "container/heap"

// timerEntry is one pending virtual timer: a deadline on the event
// time scale and the chain stage that owns it.
type timerEntry struct {
	deadline AbsoluteTime
	stage    int
}

// timerHeap is a min-heap of virtual timers.  Timers are virtual:
// they are keyed to event time, never the wall clock, and drained on
// every pass.
type timerHeap []timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline < h[j].deadline }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x interface{}) { *h = append(*h, x.(timerEntry)) }

func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// timers tracks the earliest deadline per chain stage.
type timers struct {
	heap timerHeap
}

// rebuild replaces the pending set from the stages' current state.
func (t *timers) rebuild(stages []*stage) {
	t.heap = t.heap[:0]
	for i, st := range stages {
		if deadline, ok := st.manipulator.NextDeadline(); ok {
			t.heap = append(t.heap, timerEntry{deadline: deadline, stage: i})
		}
	}
	heap.Init(&t.heap)
}

// next peeks the earliest deadline.
func (t *timers) next() (AbsoluteTime, bool) {
	if len(t.heap) == 0 {
		return 0, false
	}
	return t.heap[0].deadline, true
}

// popDue removes and returns the stages whose deadline is ≤ now, in
// deadline order.
func (t *timers) popDue(now AbsoluteTime) []int {
	var due []int
	for len(t.heap) > 0 && t.heap[0].deadline <= now {
		e := heap.Pop(&t.heap).(timerEntry)
		due = append(due, e.stage)
	}
	return due
}

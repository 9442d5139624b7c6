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

import "github.com/hidtools/remapd/keycode"

// Queue holds entries for one pipeline stage in nondecreasing
// event-time order.  Appending an entry whose timestamp is older than
// the current tail raises the entry's timestamp; time never goes
// backwards.
type Queue struct {
	entries []*Entry
	delay   AbsoluteTime

	lastEventTimes map[lastEventKey]AbsoluteTime
}

type lastEventKey struct {
	device DeviceID
	class  keycode.Class
	code   keycode.Code
}

// NewQueue makes an empty queue.
func NewQueue() *Queue {
	return &Queue{
		lastEventTimes: make(map[lastEventKey]AbsoluteTime),
	}
}

// PushBack appends the entry, enforcing the monotonic-time invariant
// and recording the last event time for its key.
func (q *Queue) PushBack(entry *Entry) {
	if n := len(q.entries); n > 0 {
		if tail := q.entries[n-1].EventTimeStamp; entry.EventTimeStamp < tail {
			entry.EventTimeStamp = tail
		}
	}
	q.entries = append(q.entries, entry)

	if class, code, ok := entry.Event.Key(); ok {
		q.lastEventTimes[lastEventKey{entry.DeviceID, class, code}] = entry.EventTimeStamp
	}
}

// PushBackEvent constructs an entry with a fresh unique id and appends
// it.  The queue's time-stamp delay is applied to the given time.
func (q *Queue) PushBackEvent(device DeviceID, t AbsoluteTime, event Event, eventType EventType) *Entry {
	entry := NewEntry(device, t+q.delay, event, eventType)
	q.PushBack(entry)
	return entry
}

// EraseFront removes and returns the oldest entry, or nil if empty.
func (q *Queue) EraseFront() *Entry {
	if len(q.entries) == 0 {
		return nil
	}
	front := q.entries[0]
	q.entries[0] = nil
	q.entries = q.entries[1:]
	return front
}

// Clear drops every entry.  The time-stamp delay and last-event-time
// map survive.
func (q *Queue) Clear() {
	for i := range q.entries {
		q.entries[i] = nil
	}
	q.entries = q.entries[:0]
}

// Empty reports whether the queue has no entries.
func (q *Queue) Empty() bool { return len(q.entries) == 0 }

// Len returns the entry count.
func (q *Queue) Len() int { return len(q.entries) }

// Front returns the oldest entry without removing it.
func (q *Queue) Front() *Entry {
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0]
}

// Back returns the newest entry.
func (q *Queue) Back() *Entry {
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[len(q.entries)-1]
}

// Entries returns the backing slice for in-order iteration.  Callers
// must not reorder it.
func (q *Queue) Entries() []*Entry { return q.entries }

// FindEventByUniqueID locates a queued entry by its unique id.
// Delayed-action callbacks use this to check whether the entry they
// scheduled against still exists.
func (q *Queue) FindEventByUniqueID(id uint64) *Entry {
	for _, e := range q.entries {
		if e.UniqueID == id {
			return e
		}
	}
	return nil
}

// LastEventTime returns the time the given key was last seen on the
// given device.
func (q *Queue) LastEventTime(device DeviceID, class keycode.Class, code keycode.Code) (AbsoluteTime, bool) {
	t, ok := q.lastEventTimes[lastEventKey{device, class, code}]
	return t, ok
}

// IncreaseTimeStampDelay adds a bias applied by PushBackEvent, letting
// a manipulator space out synthesized events without re-reading the
// clock.
func (q *Queue) IncreaseTimeStampDelay(delta AbsoluteTime) {
	q.delay += delta
}

// TimeStampDelay returns the current bias.
func (q *Queue) TimeStampDelay() AbsoluteTime { return q.delay }

// MakeQueue reconstructs a queue from recorded original events.  It is
// used when a simultaneous group aborts and the absorbed events must
// fall through unchanged.
func MakeQueue(device DeviceID, originals []*Entry) *Queue {
	q := NewQueue()
	for _, o := range originals {
		entry := NewEntry(device, o.EventTimeStamp, o.OriginalEvent, o.EventType)
		entry.Lazy = o.Lazy
		q.PushBack(entry)
	}
	return q
}

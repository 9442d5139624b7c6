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

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hidtools/remapd/keycode"
)

func keyEntry(device DeviceID, t AbsoluteTime, name string, eventType EventType) *Entry {
	code, ok := keycode.KeyFromName(name)
	if !ok {
		panic("unknown key name " + name)
	}
	return NewEntry(device, t, NewKeyEvent(keycode.ClassKey, code), eventType)
}

func TestQueueOrdering(t *testing.T) {
	Convey("An event queue", t, func() {
		q := NewQueue()

		Convey("keeps entries in nondecreasing time order", func() {
			q.PushBack(keyEntry(1, 100, "a", EventTypeKeyDown))
			q.PushBack(keyEntry(1, 200, "b", EventTypeKeyDown))
			q.PushBack(keyEntry(1, 150, "c", EventTypeKeyDown))

			times := []AbsoluteTime{}
			for _, e := range q.Entries() {
				times = append(times, e.EventTimeStamp)
			}
			So(times, ShouldResemble, []AbsoluteTime{100, 200, 200})
		})

		Convey("raises a stale timestamp to the tail's", func() {
			q.PushBack(keyEntry(1, 500, "a", EventTypeKeyDown))
			e := keyEntry(1, 10, "b", EventTypeKeyDown)
			q.PushBack(e)
			So(e.EventTimeStamp, ShouldEqual, AbsoluteTime(500))
		})

		Convey("remembers last event times by key", func() {
			q.PushBack(keyEntry(2, 300, "j", EventTypeKeyDown))
			code, _ := keycode.KeyFromName("j")
			last, ok := q.LastEventTime(2, keycode.ClassKey, code)
			So(ok, ShouldBeTrue)
			So(last, ShouldEqual, AbsoluteTime(300))

			_, ok = q.LastEventTime(3, keycode.ClassKey, code)
			So(ok, ShouldBeFalse)
		})

		Convey("front and back follow pushes and erases", func() {
			So(q.Front(), ShouldBeNil)
			So(q.Back(), ShouldBeNil)

			q.PushBack(keyEntry(1, 1, "a", EventTypeKeyDown))
			q.PushBack(keyEntry(1, 2, "b", EventTypeKeyDown))
			So(q.Front().EventTimeStamp, ShouldEqual, AbsoluteTime(1))
			So(q.Back().EventTimeStamp, ShouldEqual, AbsoluteTime(2))

			front := q.EraseFront()
			So(front.EventTimeStamp, ShouldEqual, AbsoluteTime(1))
			So(q.Len(), ShouldEqual, 1)

			q.Clear()
			So(q.Empty(), ShouldBeTrue)
		})
	})
}

func TestQueueUniqueIDs(t *testing.T) {
	Convey("Unique ids are strictly increasing across queues", t, func() {
		q1 := NewQueue()
		q2 := NewQueue()

		var last uint64
		for i := 0; i < 100; i++ {
			e1 := q1.PushBackEvent(1, AbsoluteTime(i), NewKeyEvent(keycode.ClassKey, 0x04), EventTypeKeyDown)
			e2 := q2.PushBackEvent(2, AbsoluteTime(i), NewKeyEvent(keycode.ClassKey, 0x05), EventTypeKeyUp)
			So(e1.UniqueID, ShouldBeGreaterThan, last)
			So(e2.UniqueID, ShouldBeGreaterThan, e1.UniqueID)
			last = e2.UniqueID
		}
	})
}

func TestQueueFindByUniqueID(t *testing.T) {
	Convey("Entries are addressable by unique id", t, func() {
		q := NewQueue()
		q.PushBackEvent(1, 10, NewKeyEvent(keycode.ClassKey, 0x04), EventTypeKeyDown)
		target := q.PushBackEvent(1, 20, NewKeyEvent(keycode.ClassKey, 0x05), EventTypeKeyDown)

		So(q.FindEventByUniqueID(target.UniqueID), ShouldEqual, target)
		So(q.FindEventByUniqueID(target.UniqueID+1000), ShouldBeNil)
	})
}

func TestQueueTimeStampDelay(t *testing.T) {
	Convey("The time-stamp delay biases synthesized events", t, func() {
		q := NewQueue()
		So(q.TimeStampDelay(), ShouldEqual, AbsoluteTime(0))

		q.IncreaseTimeStampDelay(5)
		q.IncreaseTimeStampDelay(5)
		So(q.TimeStampDelay(), ShouldEqual, AbsoluteTime(10))

		e := q.PushBackEvent(1, 100, NewKeyEvent(keycode.ClassKey, 0x04), EventTypeKeyDown)
		So(e.EventTimeStamp, ShouldEqual, AbsoluteTime(110))

		Convey("but not entries pushed directly", func() {
			direct := keyEntry(1, 120, "b", EventTypeKeyDown)
			q.PushBack(direct)
			So(direct.EventTimeStamp, ShouldEqual, AbsoluteTime(120))
		})
	})
}

func TestMakeQueue(t *testing.T) {
	Convey("MakeQueue rebuilds entries from original events", t, func() {
		a := keyEntry(1, 100, "j", EventTypeKeyDown)
		b := keyEntry(1, 130, "k", EventTypeKeyDown)
		a.Invalidate()
		b.Invalidate()

		q := MakeQueue(1, []*Entry{a, b})
		So(q.Len(), ShouldEqual, 2)
		So(q.Front().Valid(), ShouldBeTrue)
		So(q.Front().Event.SameKey(a.OriginalEvent), ShouldBeTrue)
		So(q.Back().UniqueID, ShouldNotEqual, b.UniqueID)
	})
}

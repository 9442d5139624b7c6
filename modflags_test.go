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

func TestFlagManagerCounting(t *testing.T) {
	Convey("A flag manager", t, func() {
		fm := NewFlagManager()

		Convey("reports zero as always pressed", func() {
			So(fm.IsPressed(keycode.FlagZero), ShouldBeTrue)
		})

		Convey("counts increase and decrease contributors", func() {
			fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorIncrease, keycode.FlagLeftShift, 1})
			So(fm.IsPressed(keycode.FlagLeftShift), ShouldBeTrue)

			fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorDecrease, keycode.FlagLeftShift, 1})
			So(fm.IsPressed(keycode.FlagLeftShift), ShouldBeFalse)
		})

		Convey("a decrease below zero is recovered by one increase", func() {
			fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorDecrease, keycode.FlagLeftShift, 1})
			So(fm.IsPressed(keycode.FlagLeftShift), ShouldBeFalse)
			fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorIncrease, keycode.FlagLeftShift, 1})
			So(fm.IsPressed(keycode.FlagLeftShift), ShouldBeFalse)
			fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorIncrease, keycode.FlagLeftShift, 1})
			So(fm.IsPressed(keycode.FlagLeftShift), ShouldBeTrue)
		})

		Convey("applying then reversing contributors restores the empty set", func() {
			flags := []keycode.ModifierFlag{
				keycode.FlagLeftShift, keycode.FlagRightCommand, keycode.FlagFn,
			}
			for _, f := range flags {
				fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorIncrease, f, 1})
			}
			fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorIncreaseLock, keycode.FlagLeftControl, 2})

			fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorDecreaseLock, keycode.FlagLeftControl, 2})
			for i := len(flags) - 1; i >= 0; i-- {
				fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorDecrease, flags[i], 1})
			}
			So(fm.MakeModifierFlags(), ShouldEqual, keycode.FlagMask(0))
		})
	})
}

func TestFlagManagerLockAndSticky(t *testing.T) {
	Convey("Lock and sticky contributors", t, func() {
		fm := NewFlagManager()

		fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorIncreaseLock, keycode.FlagCapsLock, 1})
		So(fm.IsLocked(keycode.FlagCapsLock), ShouldBeTrue)
		So(fm.IsPressed(keycode.FlagCapsLock), ShouldBeTrue)

		fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorIncreaseSticky, keycode.FlagLeftShift, 1})
		So(fm.IsSticky(keycode.FlagLeftShift), ShouldBeTrue)
		So(fm.StickyCount(keycode.FlagLeftShift), ShouldEqual, 1)

		Convey("survive a per-device reset", func() {
			fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorIncrease, keycode.FlagLeftOption, 1})
			fm.EraseAllActiveModifierFlagsExceptLockAndSticky(1)

			So(fm.IsPressed(keycode.FlagLeftOption), ShouldBeFalse)
			So(fm.IsPressed(keycode.FlagCapsLock), ShouldBeTrue)
			So(fm.IsPressed(keycode.FlagLeftShift), ShouldBeTrue)
		})

		Convey("do not survive a device ungrab", func() {
			fm.EraseAllActiveModifierFlags(1)
			So(fm.MakeModifierFlags(), ShouldEqual, keycode.FlagMask(0))
		})
	})
}

func TestFlagManagerLEDLock(t *testing.T) {
	Convey("LED lock contributors follow the host LED", t, func() {
		fm := NewFlagManager()

		fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorIncreaseLEDLock, keycode.FlagCapsLock, 1})
		So(fm.IsPressed(keycode.FlagCapsLock), ShouldBeTrue)
		So(fm.IsLocked(keycode.FlagCapsLock), ShouldBeTrue)

		fm.ErasePressedLEDLock(keycode.FlagCapsLock)
		So(fm.IsPressed(keycode.FlagCapsLock), ShouldBeFalse)
	})
}

func TestFlagManagerUngrabIsolation(t *testing.T) {
	Convey("Ungrabbing one device leaves other devices' contributors", t, func() {
		fm := NewFlagManager()
		fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorIncrease, keycode.FlagLeftShift, 1})
		fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorIncrease, keycode.FlagLeftControl, 2})
		fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorIncreaseSticky, keycode.FlagRightOption, 1})

		fm.EraseAllActiveModifierFlags(1)

		So(fm.IsPressed(keycode.FlagLeftShift), ShouldBeFalse)
		So(fm.IsPressed(keycode.FlagRightOption), ShouldBeFalse)
		So(fm.IsPressed(keycode.FlagLeftControl), ShouldBeTrue)
	})
}

func TestScopedModifierFlags(t *testing.T) {
	Convey("Scoped flags compute the adjustment to a desired set", t, func() {
		fm := NewFlagManager()
		fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorIncrease, keycode.FlagLeftShift, 1})
		fm.PushBackActiveModifierFlag(ActiveModifierFlag{ContributorIncrease, keycode.FlagLeftShift, 1})

		desired := keycode.FlagMask(0).With(keycode.FlagLeftCommand)
		scoped := fm.ScopedModifierFlags(desired)

		Convey("applying the adjustment yields the desired set", func() {
			for _, c := range scoped {
				fm.PushBackActiveModifierFlag(c)
			}
			So(fm.MakeModifierFlags(), ShouldEqual, desired)
		})
	})
}

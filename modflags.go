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

// ContributorType classifies an active modifier flag contributor.
type ContributorType uint8

const (
	ContributorIncrease ContributorType = iota
	ContributorDecrease
	ContributorIncreaseLock
	ContributorDecreaseLock
	ContributorIncreaseSticky
	ContributorDecreaseSticky
	ContributorIncreaseLEDLock
	ContributorDecreaseLEDLock
)

func (t ContributorType) String() string {
	switch t {
	case ContributorIncrease:
		return "increase"
	case ContributorDecrease:
		return "decrease"
	case ContributorIncreaseLock:
		return "increase_lock"
	case ContributorDecreaseLock:
		return "decrease_lock"
	case ContributorIncreaseSticky:
		return "increase_sticky"
	case ContributorDecreaseSticky:
		return "decrease_sticky"
	case ContributorIncreaseLEDLock:
		return "increase_led_lock"
	case ContributorDecreaseLEDLock:
		return "decrease_led_lock"
	}
	return "unknown"
}

func (t ContributorType) increases() bool {
	switch t {
	case ContributorIncrease, ContributorIncreaseLock, ContributorIncreaseSticky, ContributorIncreaseLEDLock:
		return true
	}
	return false
}

func (t ContributorType) lock() bool {
	return t == ContributorIncreaseLock || t == ContributorDecreaseLock
}

func (t ContributorType) sticky() bool {
	return t == ContributorIncreaseSticky || t == ContributorDecreaseSticky
}

func (t ContributorType) ledLock() bool {
	return t == ContributorIncreaseLEDLock || t == ContributorDecreaseLEDLock
}

// ActiveModifierFlag is one contributor to a flag's pressed state.
type ActiveModifierFlag struct {
	Type     ContributorType
	Flag     keycode.ModifierFlag
	DeviceID DeviceID
}

// Count is +1 for increasing contributor types, -1 otherwise.
func (a ActiveModifierFlag) Count() int {
	if a.Type.increases() {
		return 1
	}
	return -1
}

// FlagManager keeps the ref-counted per-device modifier state.  A flag
// is pressed while the sum of its contributors is positive; locked and
// sticky contributors survive per-device resets but not ungrabs.
type FlagManager struct {
	contributors []ActiveModifierFlag
}

// NewFlagManager makes an empty manager.
func NewFlagManager() *FlagManager {
	return &FlagManager{}
}

// PushBackActiveModifierFlag appends a contributor.  An ungrab removes
// all of a device's contributors at once.
func (m *FlagManager) PushBackActiveModifierFlag(f ActiveModifierFlag) {
	m.contributors = append(m.contributors, f)

	// A decrease cancels a matching increase from the same device so
	// the list does not grow without bound under key repeat.
	if !f.Type.increases() {
		m.eraseCanceledPairs(f.Flag, f.DeviceID)
	}
}

func (m *FlagManager) eraseCanceledPairs(flag keycode.ModifierFlag, device DeviceID) {
	for {
		inc, dec := -1, -1
		for i, c := range m.contributors {
			if c.Flag != flag || c.DeviceID != device ||
				c.Type.lock() || c.Type.sticky() || c.Type.ledLock() {
				continue
			}
			if c.Type.increases() {
				if inc < 0 {
					inc = i
				}
			} else if dec < 0 {
				dec = i
			}
		}
		if inc < 0 || dec < 0 {
			return
		}
		hi, lo := inc, dec
		if hi < lo {
			hi, lo = lo, hi
		}
		m.contributors = append(m.contributors[:hi], m.contributors[hi+1:]...)
		m.contributors = append(m.contributors[:lo], m.contributors[lo+1:]...)
	}
}

// EraseAllActiveModifierFlags removes every contributor from the given
// device, locks and stickies included.  Called on device ungrab.
func (m *FlagManager) EraseAllActiveModifierFlags(device DeviceID) {
	m.erase(func(c ActiveModifierFlag) bool {
		return c.DeviceID == device
	})
}

// EraseAllActiveModifierFlagsExceptLockAndSticky removes the plain
// contributors of a device, keeping locked and sticky state.
func (m *FlagManager) EraseAllActiveModifierFlagsExceptLockAndSticky(device DeviceID) {
	m.erase(func(c ActiveModifierFlag) bool {
		return c.DeviceID == device && !c.Type.lock() && !c.Type.sticky() && !c.Type.ledLock()
	})
}

// ErasePressedLEDLock drops led-lock contributors for a flag; called
// when the host LED turns off.
func (m *FlagManager) ErasePressedLEDLock(flag keycode.ModifierFlag) {
	m.erase(func(c ActiveModifierFlag) bool {
		return c.Flag == flag && c.Type.ledLock()
	})
}

func (m *FlagManager) erase(match func(ActiveModifierFlag) bool) {
	kept := m.contributors[:0]
	for _, c := range m.contributors {
		if !match(c) {
			kept = append(kept, c)
		}
	}
	m.contributors = kept
}

func (m *FlagManager) count(flag keycode.ModifierFlag, include func(ContributorType) bool) int {
	n := 0
	for _, c := range m.contributors {
		if c.Flag == flag && include(c.Type) {
			n += c.Count()
		}
	}
	return n
}

// IsPressed reports the effective pressed state of a flag.  FlagZero
// is always pressed.
func (m *FlagManager) IsPressed(flag keycode.ModifierFlag) bool {
	if flag == keycode.FlagZero {
		return true
	}
	return m.count(flag, func(ContributorType) bool { return true }) > 0
}

// IsLocked reports whether lock contributors hold the flag on.
func (m *FlagManager) IsLocked(flag keycode.ModifierFlag) bool {
	return m.count(flag, func(t ContributorType) bool { return t.lock() || t.ledLock() }) > 0
}

// IsSticky reports whether sticky contributors hold the flag on.
func (m *FlagManager) IsSticky(flag keycode.ModifierFlag) bool {
	return m.count(flag, func(t ContributorType) bool { return t.sticky() }) > 0
}

// StickyCount returns the sticky contributor sum for a flag; the
// chain uses it to decide whether a sticky release is pending.
func (m *FlagManager) StickyCount(flag keycode.ModifierFlag) int {
	return m.count(flag, func(t ContributorType) bool { return t.sticky() })
}

// MakeModifierFlags returns the authoritative current modifier set.
func (m *FlagManager) MakeModifierFlags() keycode.FlagMask {
	var mask keycode.FlagMask
	for _, f := range keycode.Flags() {
		if m.IsPressed(f) {
			mask = mask.With(f)
		}
	}
	return mask
}

// ContributorCount returns the total contributor list length; tests
// use it to pin the cancellation behavior.
func (m *FlagManager) ContributorCount() int { return len(m.contributors) }

// ScopedModifierFlags computes the contributor adjustments that would
// make MakeModifierFlags return the desired mask, without mutating the
// manager.  The post-processor pushes the returned contributors around
// an emitted event and pops them afterwards.
func (m *FlagManager) ScopedModifierFlags(desired keycode.FlagMask) []ActiveModifierFlag {
	var scoped []ActiveModifierFlag
	current := m.MakeModifierFlags()
	for _, f := range keycode.Flags() {
		switch {
		case desired.Has(f) && !current.Has(f):
			scoped = append(scoped, ActiveModifierFlag{ContributorIncrease, f, DeviceVirtual})
		case !desired.Has(f) && current.Has(f):
			// One decrease per excess count; locks need countering too.
			n := m.count(f, func(ContributorType) bool { return true })
			for i := 0; i < n; i++ {
				scoped = append(scoped, ActiveModifierFlag{ContributorDecrease, f, DeviceVirtual})
			}
		}
	}
	return scoped
}

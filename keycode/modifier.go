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

package keycode

import "strings"

// ModifierFlag is one concrete, sided modifier.  FlagZero is the
// sentinel "no modifier" value; it is considered always pressed.
type ModifierFlag uint8

const (
	FlagZero ModifierFlag = iota
	FlagCapsLock
	FlagLeftControl
	FlagLeftShift
	FlagLeftOption
	FlagLeftCommand
	FlagRightControl
	FlagRightShift
	FlagRightOption
	FlagRightCommand
	FlagFn
	flagEnd
)

// FlagCount is the number of real modifier flags (excluding FlagZero).
const FlagCount = int(flagEnd) - 1

// Flags iterates every real modifier flag in declaration order.
func Flags() []ModifierFlag {
	flags := make([]ModifierFlag, 0, FlagCount)
	for f := FlagZero + 1; f < flagEnd; f++ {
		flags = append(flags, f)
	}
	return flags
}

func (f ModifierFlag) String() string {
	switch f {
	case FlagZero:
		return "zero"
	case FlagCapsLock:
		return "caps_lock"
	case FlagLeftControl:
		return "left_control"
	case FlagLeftShift:
		return "left_shift"
	case FlagLeftOption:
		return "left_option"
	case FlagLeftCommand:
		return "left_command"
	case FlagRightControl:
		return "right_control"
	case FlagRightShift:
		return "right_shift"
	case FlagRightOption:
		return "right_option"
	case FlagRightCommand:
		return "right_command"
	case FlagFn:
		return "fn"
	}
	return "unknown"
}

// Code returns the keyboard usage that presses this flag, and whether
// one exists (FlagZero has none).
func (f ModifierFlag) Code() (Code, bool) {
	switch f {
	case FlagCapsLock:
		return CodeCapsLock, true
	case FlagLeftControl:
		return CodeLeftControl, true
	case FlagLeftShift:
		return CodeLeftShift, true
	case FlagLeftOption:
		return CodeLeftOption, true
	case FlagLeftCommand:
		return CodeLeftCommand, true
	case FlagRightControl:
		return CodeRightControl, true
	case FlagRightShift:
		return CodeRightShift, true
	case FlagRightOption:
		return CodeRightOption, true
	case FlagRightCommand:
		return CodeRightCommand, true
	case FlagFn:
		return CodeFn, true
	}
	return 0, false
}

// FlagForCode is the inverse of Code.
func FlagForCode(class Class, code Code) (ModifierFlag, bool) {
	if class != ClassKey {
		return FlagZero, false
	}
	switch code {
	case CodeCapsLock:
		return FlagCapsLock, true
	case CodeLeftControl:
		return FlagLeftControl, true
	case CodeLeftShift:
		return FlagLeftShift, true
	case CodeLeftOption:
		return FlagLeftOption, true
	case CodeLeftCommand:
		return FlagLeftCommand, true
	case CodeRightControl:
		return FlagRightControl, true
	case CodeRightShift:
		return FlagRightShift, true
	case CodeRightOption:
		return FlagRightOption, true
	case CodeRightCommand:
		return FlagRightCommand, true
	case CodeFn:
		return FlagFn, true
	}
	return FlagZero, false
}

// ReportBit returns this flag's bit in the keyboard report modifier
// byte.  caps_lock and fn are not part of the modifier byte and return
// ok=false.
func (f ModifierFlag) ReportBit() (uint8, bool) {
	switch f {
	case FlagLeftControl:
		return 1 << 0, true
	case FlagLeftShift:
		return 1 << 1, true
	case FlagLeftOption:
		return 1 << 2, true
	case FlagLeftCommand:
		return 1 << 3, true
	case FlagRightControl:
		return 1 << 4, true
	case FlagRightShift:
		return 1 << 5, true
	case FlagRightOption:
		return 1 << 6, true
	case FlagRightCommand:
		return 1 << 7, true
	}
	return 0, false
}

// FlagMask is a set of modifier flags.
type FlagMask uint16

// Mask returns the single-flag mask, or 0 for FlagZero.
func (f ModifierFlag) Mask() FlagMask {
	if f == FlagZero {
		return 0
	}
	return 1 << (f - 1)
}

// Has reports whether the mask contains f.
func (m FlagMask) Has(f ModifierFlag) bool {
	return m&f.Mask() != 0
}

// With returns the mask with f added.
func (m FlagMask) With(f ModifierFlag) FlagMask {
	return m | f.Mask()
}

// Without returns the mask with f removed.
func (m FlagMask) Without(f ModifierFlag) FlagMask {
	return m &^ f.Mask()
}

// Flags expands the mask into its member flags in declaration order.
func (m FlagMask) Flags() []ModifierFlag {
	var flags []ModifierFlag
	for f := FlagZero + 1; f < flagEnd; f++ {
		if m.Has(f) {
			flags = append(flags, f)
		}
	}
	return flags
}

func (m FlagMask) String() string {
	var names []string
	for _, f := range m.Flags() {
		names = append(names, f.String())
	}
	return strings.Join(names, "+")
}

// Modifier is the JSON-facing modifier family.  A family expands to
// one or more concrete flags; ModifierAny matches any pressed flag.
type Modifier uint8

const (
	ModifierCapsLock Modifier = iota
	ModifierControl
	ModifierShift
	ModifierOption
	ModifierCommand
	ModifierLeftControl
	ModifierLeftShift
	ModifierLeftOption
	ModifierLeftCommand
	ModifierRightControl
	ModifierRightShift
	ModifierRightOption
	ModifierRightCommand
	ModifierFn
	ModifierAny
	modifierEnd
)

// ModifierSet is a set of modifier families.
type ModifierSet map[Modifier]struct{}

// Has reports membership.
func (s ModifierSet) Has(m Modifier) bool {
	_, ok := s[m]
	return ok
}

// Add inserts m.
func (s ModifierSet) Add(m Modifier) {
	s[m] = struct{}{}
}

// Modifiers iterates every family in declaration order.
func Modifiers() []Modifier {
	mods := make([]Modifier, 0, int(modifierEnd))
	for m := Modifier(0); m < modifierEnd; m++ {
		mods = append(mods, m)
	}
	return mods
}

func (m Modifier) String() string {
	if name, ok := modifierNames[m]; ok {
		return name
	}
	return "unknown"
}

var modifierNames = map[Modifier]string{
	ModifierCapsLock:     "caps_lock",
	ModifierControl:      "control",
	ModifierShift:        "shift",
	ModifierOption:       "option",
	ModifierCommand:      "command",
	ModifierLeftControl:  "left_control",
	ModifierLeftShift:    "left_shift",
	ModifierLeftOption:   "left_option",
	ModifierLeftCommand:  "left_command",
	ModifierRightControl: "right_control",
	ModifierRightShift:   "right_shift",
	ModifierRightOption:  "right_option",
	ModifierRightCommand: "right_command",
	ModifierFn:           "fn",
	ModifierAny:          "any",
}

// ModifierFromName resolves a configuration name to a family.
func ModifierFromName(name string) (Modifier, bool) {
	for m, n := range modifierNames {
		if n == name {
			return m, true
		}
	}
	return ModifierAny, false
}

// Flags expands the family to its concrete flags.  ModifierAny expands
// to nothing; callers treat it as a wildcard.
func (m Modifier) Flags() []ModifierFlag {
	switch m {
	case ModifierCapsLock:
		return []ModifierFlag{FlagCapsLock}
	case ModifierControl:
		return []ModifierFlag{FlagLeftControl, FlagRightControl}
	case ModifierShift:
		return []ModifierFlag{FlagLeftShift, FlagRightShift}
	case ModifierOption:
		return []ModifierFlag{FlagLeftOption, FlagRightOption}
	case ModifierCommand:
		return []ModifierFlag{FlagLeftCommand, FlagRightCommand}
	case ModifierLeftControl:
		return []ModifierFlag{FlagLeftControl}
	case ModifierLeftShift:
		return []ModifierFlag{FlagLeftShift}
	case ModifierLeftOption:
		return []ModifierFlag{FlagLeftOption}
	case ModifierLeftCommand:
		return []ModifierFlag{FlagLeftCommand}
	case ModifierRightControl:
		return []ModifierFlag{FlagRightControl}
	case ModifierRightShift:
		return []ModifierFlag{FlagRightShift}
	case ModifierRightOption:
		return []ModifierFlag{FlagRightOption}
	case ModifierRightCommand:
		return []ModifierFlag{FlagRightCommand}
	case ModifierFn:
		return []ModifierFlag{FlagFn}
	}
	return nil
}

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

// Package keycode models the key, consumer-control, and pointing-button
// code spaces used by the remapping pipeline, along with the modifier
// flags and the JSON-facing modifier families.  Codes are HID usages;
// the tables at the bottom of this package map the configuration names
// onto them.
package keycode

import "fmt"

// Code is a key, consumer, or pointing-button usage.  The class a Code
// belongs to is carried separately; the numeric spaces overlap.
type Code uint32

// Class identifies which code space a Code belongs to.
type Class uint8

const (
	// ClassKey is the keyboard/keypad usage page.
	ClassKey Class = iota
	// ClassConsumer is the consumer-control usage page.
	ClassConsumer
	// ClassButton is the pointing-button space (1-indexed buttons).
	ClassButton
)

func (c Class) String() string {
	switch c {
	case ClassKey:
		return "key_code"
	case ClassConsumer:
		return "consumer_key_code"
	case ClassButton:
		return "pointing_button"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// UsagePage values for the virtual HID report streams.
type UsagePage uint32

const (
	UsagePageKeyboard           UsagePage = 0x07
	UsagePageConsumer           UsagePage = 0x0c
	UsagePageAppleVendorTopCase UsagePage = 0xff
	UsagePageAppleVendorKeyboard UsagePage = 0xff01
	UsagePageButton             UsagePage = 0x09
)

// Keyboard usages for the modifier keys.  These are the codes emitted
// when a manipulator synthesizes a modifier press.
const (
	CodeLeftControl  Code = 0xe0
	CodeLeftShift    Code = 0xe1
	CodeLeftOption   Code = 0xe2
	CodeLeftCommand  Code = 0xe3
	CodeRightControl Code = 0xe4
	CodeRightShift   Code = 0xe5
	CodeRightOption  Code = 0xe6
	CodeRightCommand Code = 0xe7
	CodeCapsLock     Code = 0x39
	CodeFn           Code = 0x10003 // vendor top-case keyboard-fn, remapped page
)

// IsModifier reports whether a keyboard code is one of the modifier
// keys (including caps_lock and fn).
func IsModifier(class Class, code Code) bool {
	if class != ClassKey {
		return false
	}
	switch code {
	case CodeLeftControl, CodeLeftShift, CodeLeftOption, CodeLeftCommand,
		CodeRightControl, CodeRightShift, CodeRightOption, CodeRightCommand,
		CodeCapsLock, CodeFn:
		return true
	}
	return false
}

// VendorUsage maps codes that live outside the plain keyboard page onto
// their vendor report stream.  The bulk of the keyboard page passes
// through untouched.
func VendorUsage(class Class, code Code) (UsagePage, Code) {
	switch class {
	case ClassConsumer:
		if usage, ok := consumerToTopCase[code]; ok {
			return UsagePageAppleVendorTopCase, usage
		}
		if usage, ok := consumerToVendorKeyboard[code]; ok {
			return UsagePageAppleVendorKeyboard, usage
		}
		return UsagePageConsumer, code
	case ClassButton:
		return UsagePageButton, code
	default:
		if code == CodeFn {
			return UsagePageAppleVendorTopCase, 0x03
		}
		return UsagePageKeyboard, code
	}
}

// consumerToTopCase routes consumer usages that the virtual HID device
// only accepts on the Apple vendor top-case stream.
var consumerToTopCase = map[Code]Code{
	0x6f: 0x04, // display_brightness_increment
	0x70: 0x05, // display_brightness_decrement
	0xb9: 0x08, // illumination_up
	0xba: 0x09, // illumination_down
}

// consumerToVendorKeyboard routes usages carried on the Apple vendor
// keyboard stream.
var consumerToVendorKeyboard = map[Code]Code{
	0x2a1: 0x01, // spotlight
	0x2a2: 0x02, // dashboard
	0x2a4: 0x04, // launchpad
	0x2a5: 0x10, // expose_all
	0x2a6: 0x11, // expose_desktop
	0x2af: 0x20, // vendor brightness_up
	0x2b0: 0x21, // vendor brightness_down
}

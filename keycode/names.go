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

import (
	"fmt"
	"strconv"
	"strings"
)

// KeyFromName resolves a configuration key name ("a", "spacebar",
// "caps_lock", ...) to its keyboard usage.
func KeyFromName(name string) (Code, bool) {
	if c, ok := keyNames[name]; ok {
		return c, ok
	}
	c, ok := keyNameAliases[name]
	return c, ok
}

// KeyName returns the configuration name for a keyboard usage, or a
// hex placeholder when the usage has no name.
func KeyName(code Code) string {
	if name, ok := keyNamesReverse[code]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", uint32(code))
}

// ConsumerKeyFromName resolves a consumer-control name.
func ConsumerKeyFromName(name string) (Code, bool) {
	c, ok := consumerKeyNames[name]
	return c, ok
}

// ConsumerKeyName returns the configuration name for a consumer usage.
func ConsumerKeyName(code Code) string {
	if name, ok := consumerKeyNamesReverse[code]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", uint32(code))
}

// PointingButtonFromName resolves "button1".."button32".
func PointingButtonFromName(name string) (Code, bool) {
	if !strings.HasPrefix(name, "button") {
		return 0, false
	}
	n, err := strconv.Atoi(name[len("button"):])
	if err != nil || n < 1 || n > 32 {
		return 0, false
	}
	return Code(n), true
}

// PointingButtonName returns "buttonN" for a 1-indexed button code.
func PointingButtonName(code Code) string {
	return fmt.Sprintf("button%d", uint32(code))
}

var keyNames = map[string]Code{
	"a": 0x04, "b": 0x05, "c": 0x06, "d": 0x07, "e": 0x08, "f": 0x09,
	"g": 0x0a, "h": 0x0b, "i": 0x0c, "j": 0x0d, "k": 0x0e, "l": 0x0f,
	"m": 0x10, "n": 0x11, "o": 0x12, "p": 0x13, "q": 0x14, "r": 0x15,
	"s": 0x16, "t": 0x17, "u": 0x18, "v": 0x19, "w": 0x1a, "x": 0x1b,
	"y": 0x1c, "z": 0x1d,

	"1": 0x1e, "2": 0x1f, "3": 0x20, "4": 0x21, "5": 0x22,
	"6": 0x23, "7": 0x24, "8": 0x25, "9": 0x26, "0": 0x27,

	"return_or_enter":   0x28,
	"escape":            0x29,
	"delete_or_backspace": 0x2a,
	"tab":               0x2b,
	"spacebar":          0x2c,
	"hyphen":            0x2d,
	"equal_sign":        0x2e,
	"open_bracket":      0x2f,
	"close_bracket":     0x30,
	"backslash":         0x31,
	"non_us_pound":      0x32,
	"semicolon":         0x33,
	"quote":             0x34,
	"grave_accent_and_tilde": 0x35,
	"comma":             0x36,
	"period":            0x37,
	"slash":             0x38,
	"caps_lock":         0x39,

	"f1": 0x3a, "f2": 0x3b, "f3": 0x3c, "f4": 0x3d, "f5": 0x3e,
	"f6": 0x3f, "f7": 0x40, "f8": 0x41, "f9": 0x42, "f10": 0x43,
	"f11": 0x44, "f12": 0x45,

	"print_screen":   0x46,
	"scroll_lock":    0x47,
	"pause":          0x48,
	"insert":         0x49,
	"home":           0x4a,
	"page_up":        0x4b,
	"delete_forward": 0x4c,
	"end":            0x4d,
	"page_down":      0x4e,
	"right_arrow":    0x4f,
	"left_arrow":     0x50,
	"down_arrow":     0x51,
	"up_arrow":       0x52,

	"keypad_num_lock":    0x53,
	"keypad_slash":       0x54,
	"keypad_asterisk":    0x55,
	"keypad_hyphen":      0x56,
	"keypad_plus":        0x57,
	"keypad_enter":       0x58,
	"keypad_1":           0x59,
	"keypad_2":           0x5a,
	"keypad_3":           0x5b,
	"keypad_4":           0x5c,
	"keypad_5":           0x5d,
	"keypad_6":           0x5e,
	"keypad_7":           0x5f,
	"keypad_8":           0x60,
	"keypad_9":           0x61,
	"keypad_0":           0x62,
	"keypad_period":      0x63,
	"non_us_backslash":   0x64,
	"application":        0x65,
	"power":              0x66,
	"keypad_equal_sign":  0x67,

	"f13": 0x68, "f14": 0x69, "f15": 0x6a, "f16": 0x6b, "f17": 0x6c,
	"f18": 0x6d, "f19": 0x6e, "f20": 0x6f, "f21": 0x70, "f22": 0x71,
	"f23": 0x72, "f24": 0x73,

	"execute":     0x74,
	"help":        0x75,
	"menu":        0x76,
	"select":      0x77,
	"stop":        0x78,
	"again":       0x79,
	"undo":        0x7a,
	"cut":         0x7b,
	"copy":        0x7c,
	"paste":       0x7d,
	"find":        0x7e,
	"mute":        0x7f,
	"volume_up":   0x80,
	"volume_down": 0x81,

	"keypad_comma": 0x85,

	"international1": 0x87,
	"international2": 0x88,
	"international3": 0x89,
	"international4": 0x8a,
	"international5": 0x8b,
	"international6": 0x8c,
	"international7": 0x8d,
	"international8": 0x8e,
	"international9": 0x8f,
	"lang1":          0x90,
	"lang2":          0x91,
	"lang3":          0x92,
	"lang4":          0x93,
	"lang5":          0x94,
	"lang6":          0x95,
	"lang7":          0x96,
	"lang8":          0x97,
	"lang9":          0x98,

	"left_control":  0xe0,
	"left_shift":    0xe1,
	"left_option":   0xe2,
	"left_command":  0xe3,
	"right_control": 0xe4,
	"right_shift":   0xe5,
	"right_option":  0xe6,
	"right_command": 0xe7,

	"fn": CodeFn,
}

// keyNameAliases accepts names written against other layouts; they
// never appear in serialized output.
var keyNameAliases = map[string]Code{
	"left_alt":  0xe2,
	"left_gui":  0xe3,
	"right_alt": 0xe6,
	"right_gui": 0xe7,
}

var consumerKeyNames = map[string]Code{
	"power":                        0x30,
	"display_brightness_increment": 0x6f,
	"display_brightness_decrement": 0x70,
	"fastforward":                  0xb3,
	"rewind":                       0xb4,
	"scan_next_track":              0xb5,
	"scan_previous_track":          0xb6,
	"eject":                        0xb8,
	"play_or_pause":                0xcd,
	"mute":                         0xe2,
	"volume_increment":             0xe9,
	"volume_decrement":             0xea,
	"illumination_up":              0xb9,
	"illumination_down":            0xba,
	"spotlight":                    0x2a1,
	"dashboard":                    0x2a2,
	"launchpad":                    0x2a4,
	"mission_control":              0x2a5,
	"show_desktop":                 0x2a6,
	"vendor_brightness_up":         0x2af,
	"vendor_brightness_down":       0x2b0,
}

var (
	keyNamesReverse         = reverse(keyNames)
	consumerKeyNamesReverse = reverse(consumerKeyNames)
)

func reverse(m map[string]Code) map[Code]string {
	r := make(map[Code]string, len(m))
	for name, code := range m {
		r[code] = name
	}
	return r
}

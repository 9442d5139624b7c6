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

import "testing"

func TestKeyNameRoundTrip(t *testing.T) {
	for _, name := range []string{"a", "spacebar", "caps_lock", "left_shift", "f12", "keypad_enter"} {
		code, ok := KeyFromName(name)
		if !ok {
			t.Fatalf("KeyFromName(%q) failed", name)
		}
		if got := KeyName(code); got != name {
			t.Errorf("KeyName(KeyFromName(%q)) = %q", name, got)
		}
	}
}

func TestKeyNameAliases(t *testing.T) {
	alt, ok := KeyFromName("left_alt")
	if !ok {
		t.Fatal("left_alt alias missing")
	}
	option, _ := KeyFromName("left_option")
	if alt != option {
		t.Errorf("left_alt = %#x, want %#x", alt, option)
	}
	// Aliases never win the reverse mapping.
	if KeyName(option) != "left_option" {
		t.Errorf("KeyName(left_option usage) = %q", KeyName(option))
	}
}

func TestPointingButtonNames(t *testing.T) {
	code, ok := PointingButtonFromName("button3")
	if !ok || code != 3 {
		t.Fatalf("button3 = %d, %v", code, ok)
	}
	if _, ok := PointingButtonFromName("button33"); ok {
		t.Error("button33 accepted")
	}
	if _, ok := PointingButtonFromName("buttonx"); ok {
		t.Error("buttonx accepted")
	}
	if got := PointingButtonName(3); got != "button3" {
		t.Errorf("PointingButtonName(3) = %q", got)
	}
}

func TestModifierFlagCodes(t *testing.T) {
	for _, f := range Flags() {
		code, ok := f.Code()
		if f == FlagZero {
			t.Fatal("Flags() returned FlagZero")
		}
		if !ok {
			t.Fatalf("flag %v has no code", f)
		}
		back, ok := FlagForCode(ClassKey, code)
		if !ok || back != f {
			t.Errorf("FlagForCode(Code(%v)) = %v, %v", f, back, ok)
		}
	}
}

func TestReportBits(t *testing.T) {
	cases := map[ModifierFlag]uint8{
		FlagLeftControl:  0x01,
		FlagLeftShift:    0x02,
		FlagLeftOption:   0x04,
		FlagLeftCommand:  0x08,
		FlagRightControl: 0x10,
		FlagRightShift:   0x20,
		FlagRightOption:  0x40,
		FlagRightCommand: 0x80,
	}
	for flag, want := range cases {
		bit, ok := flag.ReportBit()
		if !ok || bit != want {
			t.Errorf("%v.ReportBit() = %#02x, %v; want %#02x", flag, bit, ok, want)
		}
	}
	if _, ok := FlagCapsLock.ReportBit(); ok {
		t.Error("caps_lock has a modifier byte bit")
	}
	if _, ok := FlagFn.ReportBit(); ok {
		t.Error("fn has a modifier byte bit")
	}
}

func TestFlagMask(t *testing.T) {
	var m FlagMask
	m = m.With(FlagLeftShift).With(FlagFn)
	if !m.Has(FlagLeftShift) || !m.Has(FlagFn) || m.Has(FlagLeftControl) {
		t.Fatalf("mask membership wrong: %v", m)
	}
	m = m.Without(FlagFn)
	if m.Has(FlagFn) {
		t.Error("Without did not remove fn")
	}
	if got := m.String(); got != "left_shift" {
		t.Errorf("String() = %q", got)
	}
}

func TestModifierFamilies(t *testing.T) {
	shift, ok := ModifierFromName("shift")
	if !ok {
		t.Fatal("shift family missing")
	}
	flags := shift.Flags()
	if len(flags) != 2 || flags[0] != FlagLeftShift || flags[1] != FlagRightShift {
		t.Errorf("shift.Flags() = %v", flags)
	}

	anyMod, _ := ModifierFromName("any")
	if anyMod != ModifierAny || len(anyMod.Flags()) != 0 {
		t.Errorf("any family expands to %v", anyMod.Flags())
	}

	if _, ok := ModifierFromName("hyper"); ok {
		t.Error("unknown family accepted")
	}
}

func TestVendorUsageRouting(t *testing.T) {
	page, usage := VendorUsage(ClassConsumer, 0x6f)
	if page != UsagePageAppleVendorTopCase || usage != 0x04 {
		t.Errorf("brightness up routed to %v/%#x", page, usage)
	}

	page, usage = VendorUsage(ClassConsumer, 0x2a1)
	if page != UsagePageAppleVendorKeyboard || usage != 0x01 {
		t.Errorf("spotlight routed to %v/%#x", page, usage)
	}

	page, usage = VendorUsage(ClassConsumer, 0xe9)
	if page != UsagePageConsumer || usage != 0xe9 {
		t.Errorf("volume up routed to %v/%#x", page, usage)
	}

	page, _ = VendorUsage(ClassKey, 0x04)
	if page != UsagePageKeyboard {
		t.Errorf("plain key routed to %v", page)
	}

	page, usage = VendorUsage(ClassKey, CodeFn)
	if page != UsagePageAppleVendorTopCase || usage != 0x03 {
		t.Errorf("fn routed to %v/%#x", page, usage)
	}
}

func TestIsModifier(t *testing.T) {
	if !IsModifier(ClassKey, CodeLeftShift) || !IsModifier(ClassKey, CodeCapsLock) {
		t.Error("modifier keys not recognized")
	}
	if IsModifier(ClassKey, 0x04) || IsModifier(ClassConsumer, CodeLeftShift) {
		t.Error("non-modifiers recognized as modifiers")
	}
}

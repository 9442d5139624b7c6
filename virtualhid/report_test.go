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

package virtualhid

import "testing"

func TestKeyBitmap(t *testing.T) {
	var k KeyBitmap

	if !k.Empty() {
		t.Fatal("zero bitmap not empty")
	}

	k.Insert(0x29)
	k.Insert(0x04)
	if !k.Exists(0x29) || !k.Exists(0x04) {
		t.Error("inserted usages missing")
	}
	if k.Exists(0x05) {
		t.Error("phantom usage")
	}

	k.Erase(0x29)
	if k.Exists(0x29) {
		t.Error("erase failed")
	}
	k.Erase(0x04)
	if !k.Empty() {
		t.Error("bitmap not empty after erasing everything")
	}
}

func TestKeyboardReportBytes(t *testing.T) {
	var r KeyboardReport
	r.Modifiers = 0x05
	r.Keys.Insert(0x04)

	b := r.Bytes()
	if len(b) != 33 {
		t.Fatalf("keyboard frame length = %d, want 33", len(b))
	}
	if b[0] != 0x05 {
		t.Errorf("modifier byte = %#02x", b[0])
	}
	if b[1+0x04/8]&(1<<(0x04%8)) == 0 {
		t.Error("key bit not serialized")
	}
}

func TestPointingReportBytes(t *testing.T) {
	r := PointingReport{
		Buttons:       0x00010003, // buttons 1, 2, 17
		X:             -5,
		Y:             7,
		VerticalWheel: -1,
	}
	b := r.Bytes()
	if len(b) != 8 {
		t.Fatalf("pointing frame length = %d, want 8", len(b))
	}
	if b[0] != 0x03 || b[1] != 0x00 || b[2] != 0x01 || b[3] != 0x00 {
		t.Errorf("buttons bytes = % x", b[:4])
	}
	if int8(b[4]) != -5 || int8(b[5]) != 7 || int8(b[6]) != -1 || int8(b[7]) != 0 {
		t.Errorf("delta bytes = % x", b[4:])
	}
}

func TestClampDelta(t *testing.T) {
	if ClampDelta(300) != 127 || ClampDelta(-300) != -127 || ClampDelta(12) != 12 {
		t.Error("clamping wrong")
	}
}

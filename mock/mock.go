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

// Package mock is a simulated virtual HID device that records the
// report frames the pipeline would have sent.  It is intended for
// testing remapd and for --dry-run runs; it carries no stability
// promise.
package mock

import (
	"fmt"
	"sync"

	"github.com/hidtools/remapd/virtualhid"
)

// FrameKind names the report stream of a recorded frame.
type FrameKind string

const (
	FrameKeyboard            FrameKind = "keyboard"
	FrameConsumer            FrameKind = "consumer"
	FrameAppleVendorTopCase  FrameKind = "apple_vendor_top_case"
	FrameAppleVendorKeyboard FrameKind = "apple_vendor_keyboard"
	FramePointing            FrameKind = "pointing"
)

// Frame is one recorded report submission.
type Frame struct {
	Kind   FrameKind
	TimeNS uint64

	Keyboard       virtualhid.KeyboardReport
	Consumer       virtualhid.ConsumerReport
	TopCase        virtualhid.AppleVendorTopCaseReport
	VendorKeyboard virtualhid.AppleVendorKeyboardReport
	Pointing       virtualhid.PointingReport
}

func (f Frame) String() string {
	switch f.Kind {
	case FrameKeyboard:
		return fmt.Sprintf("%d keyboard mod=%02x keys=%x", f.TimeNS, f.Keyboard.Modifiers, f.Keyboard.Keys)
	case FramePointing:
		return fmt.Sprintf("%d pointing buttons=%08x x=%d y=%d", f.TimeNS, f.Pointing.Buttons, f.Pointing.X, f.Pointing.Y)
	default:
		return fmt.Sprintf("%d %s", f.TimeNS, f.Kind)
	}
}

// Device records every frame posted to it.  It implements
// virtualhid.Sink and is safe for concurrent use.
type Device struct {
	mu     sync.Mutex
	frames []Frame
	fail   error
}

var _ virtualhid.Sink = (*Device)(nil)

// NewDevice makes an empty recording device.
func NewDevice() *Device {
	return &Device{}
}

// SetError makes every subsequent post fail with err; nil restores
// normal recording.  Used to exercise the failed-submit path, where
// the frame is logged and dropped.
func (d *Device) SetError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

// Frames returns a copy of everything recorded so far.
func (d *Device) Frames() []Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Frame, len(d.frames))
	copy(out, d.frames)
	return out
}

// KeyboardFrames returns just the keyboard stream, in order.
func (d *Device) KeyboardFrames() []Frame {
	return d.framesOf(FrameKeyboard)
}

// PointingFrames returns just the pointing stream, in order.
func (d *Device) PointingFrames() []Frame {
	return d.framesOf(FramePointing)
}

func (d *Device) framesOf(kind FrameKind) []Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Frame
	for _, f := range d.frames {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Clear drops the recording.
func (d *Device) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = nil
}

func (d *Device) record(f Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	d.frames = append(d.frames, f)
	return nil
}

// PostKeyboardReport implements virtualhid.Sink.
func (d *Device) PostKeyboardReport(r virtualhid.KeyboardReport, timeNS uint64) error {
	return d.record(Frame{Kind: FrameKeyboard, TimeNS: timeNS, Keyboard: r})
}

// PostConsumerReport implements virtualhid.Sink.
func (d *Device) PostConsumerReport(r virtualhid.ConsumerReport, timeNS uint64) error {
	return d.record(Frame{Kind: FrameConsumer, TimeNS: timeNS, Consumer: r})
}

// PostAppleVendorTopCaseReport implements virtualhid.Sink.
func (d *Device) PostAppleVendorTopCaseReport(r virtualhid.AppleVendorTopCaseReport, timeNS uint64) error {
	return d.record(Frame{Kind: FrameAppleVendorTopCase, TimeNS: timeNS, TopCase: r})
}

// PostAppleVendorKeyboardReport implements virtualhid.Sink.
func (d *Device) PostAppleVendorKeyboardReport(r virtualhid.AppleVendorKeyboardReport, timeNS uint64) error {
	return d.record(Frame{Kind: FrameAppleVendorKeyboard, TimeNS: timeNS, VendorKeyboard: r})
}

// PostPointingReport implements virtualhid.Sink.
func (d *Device) PostPointingReport(r virtualhid.PointingReport, timeNS uint64) error {
	return d.record(Frame{Kind: FramePointing, TimeNS: timeNS, Pointing: r})
}

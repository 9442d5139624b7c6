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

	"github.com/hidtools/remapd/keycode"
	"github.com/hidtools/remapd/mock"
)

type postHarness struct {
	env  *Environment
	post *PostProcessor
	dev  *mock.Device
	q    *Queue
}

func newPostHarness(hooks Hooks) *postHarness {
	env := NewEnvironment(quietLogger())
	env.SetVirtualHIDReady(true)
	dev := mock.NewDevice()
	return &postHarness{
		env:  env,
		post: NewPostProcessor(env, dev, hooks),
		dev:  dev,
		q:    NewQueue(),
	}
}

func (h *postHarness) key(device DeviceID, t AbsoluteTime, name string, eventType EventType, lazy bool) {
	code, _ := keycode.KeyFromName(name)
	e := h.q.PushBackEvent(device, t, NewKeyEvent(keycode.ClassKey, code), eventType)
	e.Lazy = lazy
}

func TestLazyModifierCombinesWithNextFrame(t *testing.T) {
	h := newPostHarness(Hooks{})

	h.key(1, 100, "left_shift", EventTypeKeyDown, true)
	h.post.Drain(h.q)
	if n := len(h.dev.Frames()); n != 0 {
		t.Fatalf("lazy modifier emitted %d frames by itself", n)
	}

	h.key(1, 150, "a", EventTypeKeyDown, false)
	h.post.Drain(h.q)

	frames := h.dev.KeyboardFrames()
	if len(frames) != 2 {
		t.Fatalf("expected modifier frame + key frame, got %d: %v", len(frames), frames)
	}
	if frames[0].Keyboard.Modifiers != 0x02 || !frames[0].Keyboard.Keys.Empty() {
		t.Errorf("frame 0 = %v, want the held-back shift bit alone", frames[0])
	}
	if frames[1].Keyboard.Modifiers != 0x02 || !frameHasKeyReport(t, frames[1], "a") {
		t.Errorf("frame 1 = %v, want shift bit plus key a", frames[1])
	}
}

func frameHasKeyReport(t *testing.T, f mock.Frame, name string) bool {
	t.Helper()
	return f.Keyboard.Keys.Exists(uint32(mustKey(t, name)))
}

func TestStickyModifierToggle(t *testing.T) {
	h := newPostHarness(Hooks{})

	h.q.PushBackEvent(1, 100, NewStickyModifierEvent(keycode.FlagLeftShift, StickyToggle), EventTypeSingle)
	h.post.Drain(h.q)

	frames := h.dev.KeyboardFrames()
	if len(frames) != 1 || frames[0].Keyboard.Modifiers != 0x02 {
		t.Fatalf("expected sticky shift frame, got %v", frames)
	}
	if !h.env.FlagManager.IsSticky(keycode.FlagLeftShift) {
		t.Error("flag manager does not report the sticky state")
	}

	h.q.PushBackEvent(1, 200, NewStickyModifierEvent(keycode.FlagLeftShift, StickyToggle), EventTypeSingle)
	h.post.Drain(h.q)

	frames = h.dev.KeyboardFrames()
	if len(frames) != 2 || frames[1].Keyboard.Modifiers != 0x00 {
		t.Fatalf("expected sticky shift cleared, got %v", frames)
	}
}

func TestMouseKeySpeedMultiplier(t *testing.T) {
	h := newPostHarness(Hooks{})

	h.q.PushBackEvent(1, 100, NewMouseKeyEvent(MouseKey{X: 10, Y: -5, SpeedMultiplier: 2}), EventTypeSingle)
	h.post.Drain(h.q)

	frames := h.dev.PointingFrames()
	if len(frames) != 1 {
		t.Fatalf("expected 1 pointing frame, got %d", len(frames))
	}
	if frames[0].Pointing.X != 20 || frames[0].Pointing.Y != -10 {
		t.Errorf("pointing frame = %v, want multiplied deltas x=20 y=-10", frames[0])
	}
}

func TestPointingDeltaClamped(t *testing.T) {
	h := newPostHarness(Hooks{})

	h.q.PushBackEvent(1, 100, NewPointingMotionEvent(PointingMotion{X: 300, Y: -300}), EventTypeSingle)
	h.post.Drain(h.q)

	frames := h.dev.PointingFrames()
	if len(frames) != 1 {
		t.Fatalf("expected 1 pointing frame, got %d", len(frames))
	}
	if frames[0].Pointing.X != 127 || frames[0].Pointing.Y != -127 {
		t.Errorf("pointing frame = %v, want clamped deltas", frames[0])
	}
}

func TestFramesDroppedWhileVirtualHIDUnavailable(t *testing.T) {
	h := newPostHarness(Hooks{})
	h.env.SetVirtualHIDReady(false)

	h.key(1, 100, "a", EventTypeKeyDown, false)
	h.post.Drain(h.q)
	if n := len(h.dev.Frames()); n != 0 {
		t.Fatalf("%d frames posted while the device was unavailable", n)
	}

	// State keeps accumulating, so the first frame after recovery is
	// complete.
	h.env.SetVirtualHIDReady(true)
	h.key(1, 150, "b", EventTypeKeyDown, false)
	h.post.Drain(h.q)

	frames := h.dev.KeyboardFrames()
	if len(frames) != 1 {
		t.Fatalf("expected 1 keyboard frame after recovery, got %d", len(frames))
	}
	if !frameHasKeyReport(t, frames[0], "a") || !frameHasKeyReport(t, frames[0], "b") {
		t.Errorf("frame = %v, want both held keys", frames[0])
	}
}

func TestDeviceUngrabReleasesOnlyItsKeys(t *testing.T) {
	h := newPostHarness(Hooks{})

	h.key(1, 100, "a", EventTypeKeyDown, false)
	h.key(2, 110, "b", EventTypeKeyDown, false)
	button, _ := keycode.PointingButtonFromName("button1")
	h.q.PushBackEvent(1, 120, NewKeyEvent(keycode.ClassButton, button), EventTypeKeyDown)
	h.post.Drain(h.q)
	h.dev.Clear()

	h.q.PushBackEvent(1, 200, NewDeviceUngrabbedEvent(), EventTypeSingle)
	h.post.Drain(h.q)

	var sawKeyboard, sawPointing bool
	for _, f := range h.dev.Frames() {
		switch f.Kind {
		case mock.FrameKeyboard:
			sawKeyboard = true
			if frameHasKeyReport(t, f, "a") {
				t.Errorf("ungrabbed device's key still reported: %v", f)
			}
			if !frameHasKeyReport(t, f, "b") {
				t.Errorf("other device's key lost on ungrab: %v", f)
			}
		case mock.FramePointing:
			sawPointing = true
			if f.Pointing.Buttons != 0 {
				t.Errorf("ungrabbed device's button still reported: %v", f)
			}
		}
	}
	if !sawKeyboard || !sawPointing {
		t.Errorf("expected keyboard and pointing frames, got %v", h.dev.Frames())
	}
}

func TestShellCommandAndSetVariable(t *testing.T) {
	var commands []string
	h := newPostHarness(Hooks{
		RunShellCommand: func(command string) { commands = append(commands, command) },
	})

	h.q.PushBackEvent(1, 100, NewShellCommandEvent("open -a Terminal"), EventTypeSingle)
	h.q.PushBackEvent(1, 110, NewSetVariableEvent("layer", IntVariable(3)), EventTypeSingle)
	h.post.Drain(h.q)

	if len(commands) != 1 || commands[0] != "open -a Terminal" {
		t.Errorf("shell hook got %v", commands)
	}
	if v := h.env.Variable("layer"); !v.Equal(IntVariable(3)) {
		t.Errorf("variable = %v, want 3", v)
	}
	if n := len(h.dev.Frames()); n != 0 {
		t.Errorf("side-effect events produced %d frames", n)
	}
}

func TestConsumerKeyRoutesToConsumerStream(t *testing.T) {
	h := newPostHarness(Hooks{})

	code, ok := keycode.ConsumerKeyFromName("mute")
	if !ok {
		t.Fatal("unknown consumer key name")
	}
	h.q.PushBackEvent(1, 100, NewKeyEvent(keycode.ClassConsumer, code), EventTypeKeyDown)
	h.post.Drain(h.q)

	frames := h.dev.Frames()
	if len(frames) != 1 || frames[0].Kind != mock.FrameConsumer {
		t.Fatalf("expected a consumer frame, got %v", frames)
	}
	if !frames[0].Consumer.Keys.Exists(uint32(code)) {
		t.Errorf("consumer frame = %v, want mute set", frames[0])
	}
}

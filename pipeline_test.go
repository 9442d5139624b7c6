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
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hidtools/remapd/config"
	"github.com/hidtools/remapd/keycode"
	"github.com/hidtools/remapd/mock"
)

func testConfiguration(t *testing.T, rulesJSON string) *config.CoreConfiguration {
	t.Helper()
	cfgJSON := `{"profiles":[{"name":"test","selected":true,"complex_modifications":{"rules":` + rulesJSON + `}}]}`
	var cfg config.CoreConfiguration
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		t.Fatalf("bad test configuration: %v", err)
	}
	return &cfg
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPipelineEndToEnd(t *testing.T) {
	dev := mock.NewDevice()
	p := NewPipeline(Options{
		Logger: quietLogger(),
		Sink:   dev,
		Configuration: testConfiguration(t, `[{"manipulators":[{
			"type":"basic",
			"from":{"key_code":"caps_lock","modifiers":{"optional":["any"]}},
			"to":[{"key_code":"left_control"}]
		}]}]`),
		VirtualHIDReady: true,
	})
	p.Start()
	defer p.Stop()

	code, _ := keycode.KeyFromName("caps_lock")
	if err := p.SubmitEvent(1, 100, KeyDown(keycode.ClassKey, code)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitFor(t, "key down frame", func() bool { return len(dev.KeyboardFrames()) == 1 })
	if f := dev.KeyboardFrames()[0]; f.Keyboard.Modifiers != 0x01 {
		t.Errorf("frame = %v", f)
	}

	// The event tap reads the modifier snapshot from its own thread.
	waitFor(t, "modifier snapshot", func() bool {
		return p.ModifierSnapshot().Has(keycode.FlagLeftControl)
	})

	if err := p.SubmitEvent(1, 200, KeyUp(keycode.ClassKey, code)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitFor(t, "key up frame", func() bool { return len(dev.KeyboardFrames()) == 2 })
}

func TestPipelineHeldDownTimerWake(t *testing.T) {
	dev := mock.NewDevice()

	// Events are stamped with the pipeline's own clock scale so the
	// OS-timer wake lands ~1ms after the key down.
	p := NewPipeline(Options{
		Logger: quietLogger(),
		Sink:   dev,
		Configuration: testConfiguration(t, `[{"manipulators":[{
			"type":"basic",
			"from":{"key_code":"spacebar","modifiers":{"optional":["any"]}},
			"to":[{"key_code":"spacebar"}],
			"to_if_held_down":[{"key_code":"return_or_enter"}],
			"parameters":{"basic.to_if_held_down_threshold_milliseconds":1}
		}]}]`),
		VirtualHIDReady: true,
	})
	p.Start()
	defer p.Stop()

	code, _ := keycode.KeyFromName("spacebar")
	now := uint64(time.Now().UnixNano())
	if err := p.SubmitEvent(1, now, KeyDown(keycode.ClassKey, code)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, "held-down fire", func() bool { return len(dev.KeyboardFrames()) == 2 })
	enter, _ := keycode.KeyFromName("return_or_enter")
	if f := dev.KeyboardFrames()[1]; !f.Keyboard.Keys.Exists(uint32(enter)) {
		t.Errorf("frame = %v", f)
	}
}

func TestPipelineSetVariableEvent(t *testing.T) {
	dev := mock.NewDevice()
	p := NewPipeline(Options{
		Logger:          quietLogger(),
		Sink:            dev,
		VirtualHIDReady: true,
	})
	p.Start()
	defer p.Stop()

	event := Single(NewSetVariableEvent("mode", IntVariable(7)))
	if err := p.SubmitEvent(DeviceVirtual, 1, event); err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, "variable applied", func() bool {
		v, ok := p.Snapshot().Variables["mode"]
		if !ok {
			return false
		}
		n, isInt := v.Int()
		return isInt && n == 7
	})
}

func TestPipelineConfigurationSwap(t *testing.T) {
	dev := mock.NewDevice()
	p := NewPipeline(Options{
		Logger:          quietLogger(),
		Sink:            dev,
		VirtualHIDReady: true,
	})
	p.Start()
	defer p.Stop()

	cfg := testConfiguration(t, `[{"manipulators":[{
		"type":"basic",
		"from":{"key_code":"a"},
		"to":[{"key_code":"b"}]
	}]}]`)
	p.SetConfiguration(cfg)

	a, _ := keycode.KeyFromName("a")
	b, _ := keycode.KeyFromName("b")
	if err := p.SubmitEvent(1, 100, KeyDown(keycode.ClassKey, a)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitFor(t, "remapped frame", func() bool {
		frames := dev.KeyboardFrames()
		return len(frames) == 1 && frames[0].Keyboard.Keys.Exists(uint32(b))
	})

	if p.Snapshot().Profile != "test" {
		t.Errorf("profile = %q", p.Snapshot().Profile)
	}
}

func TestPipelineStop(t *testing.T) {
	p := NewPipeline(Options{
		Logger: quietLogger(),
		Sink:   mock.NewDevice(),
	})
	p.Start()
	p.Stop()

	if err := p.SubmitEvent(1, 1, KeyDown(keycode.ClassKey, 0x04)); err != ErrPipelineStopped {
		t.Errorf("submit after stop = %v", err)
	}
}

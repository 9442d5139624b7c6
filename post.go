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
	"github.com/sirupsen/logrus"

	"github.com/hidtools/remapd/keycode"
	"github.com/hidtools/remapd/virtualhid"
)

// Hooks are the pipeline's side-effect collaborators.  All fields are
// optional.
type Hooks struct {
	// RunShellCommand executes a shell_command to-event.
	RunShellCommand func(command string)

	// SelectInputSource applies a select_input_source to-event.
	SelectInputSource func(specs []InputSourceSpecifier)
}

// PostProcessor drains the chain output queue in time order and turns
// it into report frames: it reconciles the modifier byte around each
// emitted key, mirrors the aggregate key/button state, and never
// reorders events relative to each other.
type PostProcessor struct {
	env   *Environment
	sink  virtualhid.Sink
	hooks Hooks
	log   *logrus.Entry

	keyboard       virtualhid.KeyboardReport
	consumer       virtualhid.ConsumerReport
	topCase        virtualhid.AppleVendorTopCaseReport
	vendorKeyboard virtualhid.AppleVendorKeyboardReport
	pointing       virtualhid.PointingReport

	// pressedBy remembers which device pressed each reported key so a
	// device ungrab releases exactly its keys.
	pressedBy map[pressedKey]DeviceID
}

type pressedKey struct {
	page  keycode.UsagePage
	usage keycode.Code
}

// NewPostProcessor makes a post-processor feeding the given sink.
func NewPostProcessor(env *Environment, sink virtualhid.Sink, hooks Hooks) *PostProcessor {
	return &PostProcessor{
		env:       env,
		sink:      sink,
		hooks:     hooks,
		log:       env.Log().WithField("component", "post"),
		pressedBy: make(map[pressedKey]DeviceID),
	}
}

// Drain consumes every entry of the queue, in order.
func (p *PostProcessor) Drain(q *Queue) {
	for {
		entry := q.EraseFront()
		if entry == nil {
			return
		}
		p.post(entry)
	}
}

func (p *PostProcessor) post(entry *Entry) {
	if !entry.Valid() {
		return
	}

	t := uint64(entry.EventTimeStamp)

	switch entry.Event.Kind() {
	case EventKindKey:
		p.postKey(entry, t)

	case EventKindPointingMotion:
		m := entry.Event.Motion()
		p.postPointing(m.X, m.Y, m.VerticalWheel, m.HorizontalWheel, t)

	case EventKindMouseKey:
		mk := entry.Event.MouseKey()
		mult := mk.SpeedMultiplier
		if mult == 0 {
			mult = 1
		}
		p.postPointing(
			int(float64(mk.X)*mult), int(float64(mk.Y)*mult),
			int(float64(mk.VerticalWheel)*mult), int(float64(mk.HorizontalWheel)*mult), t)

	case EventKindStickyModifier:
		p.applyStickyModifier(entry)
		p.reconcileModifiers(t)

	case EventKindSetVariable:
		name, value := entry.Event.VariableAssignment()
		p.env.SetVariable(name, value)

	case EventKindShellCommand:
		if p.hooks.RunShellCommand != nil {
			p.hooks.RunShellCommand(entry.Event.ShellCommand())
		}

	case EventKindSelectInputSource:
		if p.hooks.SelectInputSource != nil {
			p.hooks.SelectInputSource(entry.Event.InputSourceSpecifiers())
		}

	case EventKindDeviceUngrabbed:
		p.handleDeviceUngrabbed(entry.DeviceID, t)
	}
}

// postKey updates the modifier flag manager and the report state for
// one key event, emitting frames for whatever changed.
func (p *PostProcessor) postKey(entry *Entry, t uint64) {
	class, code, _ := entry.Event.Key()

	if flag, isModifier := keycode.FlagForCode(class, code); isModifier {
		contributor := ActiveModifierFlag{Type: ContributorIncrease, Flag: flag, DeviceID: entry.DeviceID}
		if entry.EventType == EventTypeKeyUp {
			contributor.Type = ContributorDecrease
		}
		p.env.FlagManager.PushBackActiveModifierFlag(contributor)

		// caps_lock and fn travel as keys; the sided modifiers only
		// exist in the modifier byte.
		if _, hasBit := flag.ReportBit(); !hasBit {
			p.setKeyState(class, code, entry.EventType == EventTypeKeyDown, entry.DeviceID)
		}

		if entry.Lazy {
			// Lazy modifiers change state without forcing a frame;
			// the next non-lazy event carries them.
			return
		}
		p.reconcileModifiers(t)
		if _, hasBit := flag.ReportBit(); !hasBit {
			p.emitPage(pageForKey(class, code), t)
		}
		return
	}

	if entry.Lazy {
		p.setKeyState(class, code, entry.EventType == EventTypeKeyDown, entry.DeviceID)
		return
	}

	// The modifier difference frame goes out before the key's own
	// state changes, so the host never sees the key under the wrong
	// chord.
	p.reconcileModifiers(t)
	p.setKeyState(class, code, entry.EventType == EventTypeKeyDown, entry.DeviceID)
	p.emitPage(pageForKey(class, code), t)
}

func pageForKey(class keycode.Class, code keycode.Code) keycode.UsagePage {
	page, _ := keycode.VendorUsage(class, code)
	return page
}

// setKeyState folds a key press or release into the report bitmaps.
func (p *PostProcessor) setKeyState(class keycode.Class, code keycode.Code, down bool, device DeviceID) {
	page, usage := keycode.VendorUsage(class, code)

	key := pressedKey{page, usage}
	if down {
		p.pressedBy[key] = device
	} else {
		delete(p.pressedBy, key)
	}

	switch page {
	case keycode.UsagePageKeyboard:
		if down {
			p.keyboard.Keys.Insert(uint32(usage))
		} else {
			p.keyboard.Keys.Erase(uint32(usage))
		}
	case keycode.UsagePageConsumer:
		if down {
			p.consumer.Keys.Insert(uint32(usage))
		} else {
			p.consumer.Keys.Erase(uint32(usage))
		}
	case keycode.UsagePageAppleVendorTopCase:
		if down {
			p.topCase.Keys.Insert(uint32(usage))
		} else {
			p.topCase.Keys.Erase(uint32(usage))
		}
	case keycode.UsagePageAppleVendorKeyboard:
		if down {
			p.vendorKeyboard.Keys.Insert(uint32(usage))
		} else {
			p.vendorKeyboard.Keys.Erase(uint32(usage))
		}
	case keycode.UsagePageButton:
		if usage >= 1 && usage <= 32 {
			if down {
				p.pointing.Buttons |= 1 << (usage - 1)
			} else {
				p.pointing.Buttons &^= 1 << (usage - 1)
			}
		}
	}
}

// reconcileModifiers emits a keyboard frame when the effective
// modifier byte differs from the one last reported.
func (p *PostProcessor) reconcileModifiers(t uint64) {
	desired := p.modifierByte()
	if desired == p.keyboard.Modifiers {
		return
	}
	p.keyboard.Modifiers = desired
	p.submitKeyboard(t)
}

func (p *PostProcessor) modifierByte() uint8 {
	var bits uint8
	for _, flag := range p.env.FlagManager.MakeModifierFlags().Flags() {
		if b, ok := flag.ReportBit(); ok {
			bits |= b
		}
	}
	return bits
}

// emitPage submits the current state frame of one report stream.
func (p *PostProcessor) emitPage(page keycode.UsagePage, t uint64) {
	switch page {
	case keycode.UsagePageKeyboard:
		p.submitKeyboard(t)
	case keycode.UsagePageConsumer:
		p.submit(func() error { return p.sink.PostConsumerReport(p.consumer, t) })
	case keycode.UsagePageAppleVendorTopCase:
		p.submit(func() error { return p.sink.PostAppleVendorTopCaseReport(p.topCase, t) })
	case keycode.UsagePageAppleVendorKeyboard:
		p.submit(func() error { return p.sink.PostAppleVendorKeyboardReport(p.vendorKeyboard, t) })
	case keycode.UsagePageButton:
		p.submit(func() error { return p.sink.PostPointingReport(p.pointing, t) })
	}
}

func (p *PostProcessor) submitKeyboard(t uint64) {
	p.submit(func() error { return p.sink.PostKeyboardReport(p.keyboard, t) })
}

func (p *PostProcessor) submit(post func() error) {
	if !p.env.VirtualHIDReady() {
		// Frames are dropped while the collaborator is away; state
		// keeps accumulating so the next frame is complete.
		return
	}
	if err := post(); err != nil {
		p.log.WithError(err).Warn("frame submit failed")
	}
}

func (p *PostProcessor) postPointing(x, y, v, h int, t uint64) {
	report := p.pointing
	report.X = virtualhid.ClampDelta(x)
	report.Y = virtualhid.ClampDelta(y)
	report.VerticalWheel = virtualhid.ClampDelta(v)
	report.HorizontalWheel = virtualhid.ClampDelta(h)
	p.submit(func() error { return p.sink.PostPointingReport(report, t) })
}

func (p *PostProcessor) applyStickyModifier(entry *Entry) {
	flag, op := entry.Event.StickyModifier()
	fm := p.env.FlagManager

	push := func(t ContributorType) {
		fm.PushBackActiveModifierFlag(ActiveModifierFlag{Type: t, Flag: flag, DeviceID: entry.DeviceID})
	}

	switch op {
	case StickyOn:
		push(ContributorIncreaseSticky)
	case StickyOff:
		push(ContributorDecreaseSticky)
	case StickyToggle:
		if fm.StickyCount(flag) > 0 {
			push(ContributorDecreaseSticky)
		} else {
			push(ContributorIncreaseSticky)
		}
	}
}

// handleDeviceUngrabbed releases every key and button the device was
// holding and reports the resulting state.
func (p *PostProcessor) handleDeviceUngrabbed(device DeviceID, t uint64) {
	p.env.FlagManager.EraseAllActiveModifierFlags(device)

	touched := map[keycode.UsagePage]bool{}
	for key, d := range p.pressedBy {
		if d != device {
			continue
		}
		delete(p.pressedBy, key)
		touched[key.page] = true
		switch key.page {
		case keycode.UsagePageKeyboard:
			p.keyboard.Keys.Erase(uint32(key.usage))
		case keycode.UsagePageConsumer:
			p.consumer.Keys.Erase(uint32(key.usage))
		case keycode.UsagePageAppleVendorTopCase:
			p.topCase.Keys.Erase(uint32(key.usage))
		case keycode.UsagePageAppleVendorKeyboard:
			p.vendorKeyboard.Keys.Erase(uint32(key.usage))
		case keycode.UsagePageButton:
			if key.usage >= 1 && key.usage <= 32 {
				p.pointing.Buttons &^= 1 << (key.usage - 1)
			}
		}
	}

	p.reconcileModifiers(t)
	for page := range touched {
		p.emitPage(page, t)
	}

	p.env.UnregisterDevice(device)
}

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
	"fmt"

	"github.com/hidtools/remapd/config"
	"github.com/hidtools/remapd/keycode"
)

// fromEventDefinition is the compiled input side of a basic
// manipulator.
type fromEventDefinition struct {
	events    []config.EventDescriptor
	mandatory keycode.ModifierSet
	optional  keycode.ModifierSet

	simultaneous        bool
	simultaneousOptions simultaneousOptions
}

type simultaneousOptions struct {
	detectKeyDownUninterruptedly bool
	keyDownOrder                 config.KeyOrder
	keyUpOrder                   config.KeyOrder
	keyUpWhen                    config.KeyUpWhen
	toAfterKeyUp                 []toEventDefinition
}

func compileFromDefinition(def config.FromDefinition) (fromEventDefinition, error) {
	f := fromEventDefinition{
		events:       def.Events,
		mandatory:    def.MandatoryModifiers,
		optional:     def.OptionalModifiers,
		simultaneous: def.Simultaneous,
		simultaneousOptions: simultaneousOptions{
			detectKeyDownUninterruptedly: def.SimultaneousOptions.DetectKeyDownUninterruptedly,
			keyDownOrder:                 def.SimultaneousOptions.KeyDownOrder,
			keyUpOrder:                   def.SimultaneousOptions.KeyUpOrder,
			keyUpWhen:                    def.SimultaneousOptions.KeyUpWhen,
		},
	}
	for _, t := range def.SimultaneousOptions.ToAfterKeyUp {
		to, err := compileToDefinition(t)
		if err != nil {
			return f, err
		}
		f.simultaneousOptions.toAfterKeyUp = append(f.simultaneousOptions.toAfterKeyUp, to)
	}
	return f, nil
}

// testModifiers checks the currently pressed modifier set against the
// mandatory and optional families.  On success it returns the pressed
// flags that satisfied the mandatory families; those are the flags an
// activation temporarily consumes.
func (f *fromEventDefinition) testModifiers(fm *FlagManager) (keycode.FlagMask, bool) {
	var matched keycode.FlagMask

	// mandatory `any` claims every pressed flag.
	if f.mandatory.Has(keycode.ModifierAny) {
		return fm.MakeModifierFlags(), true
	}

	for _, m := range keycode.Modifiers() {
		if !f.mandatory.Has(m) {
			continue
		}
		flag, ok := testModifier(fm, m)
		if !ok {
			return 0, false
		}
		if flag != keycode.FlagZero {
			matched = matched.With(flag)
		}
	}

	// Without optional `any`, every pressed flag must be accounted for
	// by a mandatory or optional family.
	if !f.optional.Has(keycode.ModifierAny) {
		allowed := matched
		for _, m := range keycode.Modifiers() {
			if f.mandatory.Has(m) || f.optional.Has(m) {
				for _, flag := range m.Flags() {
					allowed = allowed.With(flag)
				}
			}
		}
		for _, flag := range keycode.Flags() {
			if !allowed.Has(flag) && fm.IsPressed(flag) {
				return 0, false
			}
		}
	}

	return matched, true
}

// testModifier finds a pressed flag satisfying the family.
func testModifier(fm *FlagManager, m keycode.Modifier) (keycode.ModifierFlag, bool) {
	if m == keycode.ModifierAny {
		return keycode.FlagZero, true
	}
	for _, flag := range m.Flags() {
		if fm.IsPressed(flag) {
			return flag, true
		}
	}
	return keycode.FlagZero, false
}

// testEventDescriptor reports whether an event matches one from-side
// descriptor.
func testEventDescriptor(event Event, d config.EventDescriptor) bool {
	class, code, ok := event.Key()
	if !ok {
		return false
	}
	dclass, hasClass := d.Type.Class()
	if !hasClass || dclass != class {
		return false
	}
	if d.Type.IsAny() {
		return true
	}
	return d.Code == code
}

// testFromEvent reports whether an event matches any of the
// from-definition's descriptors.
func (f *fromEventDefinition) testFromEvent(event Event) bool {
	for _, d := range f.events {
		if testEventDescriptor(event, d) {
			return true
		}
	}
	return false
}

// testKeyOrder checks an observed event order against strict or
// strict_inverse ordering.
func testKeyOrder(events []Event, order config.KeyOrder, defs []config.EventDescriptor) bool {
	switch order {
	case config.KeyOrderStrict:
		for i, e := range events {
			if i < len(defs) && !testEventDescriptor(e, defs[i]) {
				return false
			}
		}
	case config.KeyOrderStrictInverse:
		for i, e := range events {
			if i < len(defs) && !testEventDescriptor(e, defs[len(defs)-1-i]) {
				return false
			}
		}
	}
	return true
}

// toEventDefinition is one compiled output event.
type toEventDefinition struct {
	descriptor config.EventDescriptor
	modifiers  []keycode.ModifierFlag
	lazy       bool
	repeat     bool
	halt       bool
}

func compileToDefinition(def config.ToDefinition) (toEventDefinition, error) {
	t := toEventDefinition{
		descriptor: def.Descriptor,
		lazy:       def.Lazy,
		repeat:     def.Repeat,
		halt:       def.HaltOnKeyUp,
	}
	if def.Descriptor.Type.IsAny() {
		return t, fmt.Errorf("any_* is not allowed on the to side")
	}
	for _, m := range def.Modifiers {
		flags := m.Flags()
		if len(flags) == 0 {
			return t, fmt.Errorf("modifier `%v` cannot be used in to-events", m)
		}
		// Families pick their left-sided flag on the output side.
		t.modifiers = append(t.modifiers, flags[0])
	}
	return t, nil
}

func compileToDefinitions(defs []config.ToDefinition) ([]toEventDefinition, error) {
	out := make([]toEventDefinition, 0, len(defs))
	for _, d := range defs {
		t, err := compileToDefinition(d)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// makeEvent builds the pipeline event a to-definition emits, plus its
// event type class (paired key or single).
func (t *toEventDefinition) makeEvent() (Event, bool) {
	switch t.descriptor.Type {
	case config.DescriptorKeyCode:
		return NewKeyEvent(keycode.ClassKey, t.descriptor.Code), true
	case config.DescriptorConsumerKeyCode:
		return NewKeyEvent(keycode.ClassConsumer, t.descriptor.Code), true
	case config.DescriptorPointingButton:
		return NewKeyEvent(keycode.ClassButton, t.descriptor.Code), true
	case config.DescriptorShellCommand:
		return NewShellCommandEvent(t.descriptor.ShellCommand), false
	case config.DescriptorSelectInputSource:
		specs := make([]InputSourceSpecifier, 0, len(t.descriptor.InputSources))
		for _, s := range t.descriptor.InputSources {
			specs = append(specs, InputSourceSpecifier(s))
		}
		return NewSelectInputSourceEvent(specs), false
	case config.DescriptorSetVariable:
		value := IntVariable(t.descriptor.SetVariable.Value.Int)
		if t.descriptor.SetVariable.Value.IsString {
			value = StringVariable(t.descriptor.SetVariable.Value.Str)
		}
		return NewSetVariableEvent(t.descriptor.SetVariable.Name, value), false
	case config.DescriptorMouseKey:
		return NewMouseKeyEvent(MouseKey{
			X:               t.descriptor.MouseKey.X,
			Y:               t.descriptor.MouseKey.Y,
			VerticalWheel:   t.descriptor.MouseKey.VerticalWheel,
			HorizontalWheel: t.descriptor.MouseKey.HorizontalWheel,
			SpeedMultiplier: t.descriptor.MouseKey.SpeedMultiplier,
		}), false
	case config.DescriptorStickyModifier:
		flags := t.descriptor.StickyModifier.Modifier.Flags()
		op := StickyToggle
		switch t.descriptor.StickyModifier.Operation {
		case "on":
			op = StickyOn
		case "off":
			op = StickyOff
		}
		return NewStickyModifierEvent(flags[0], op), false
	}
	return Event{}, false
}

// isKey reports whether the to-definition emits a paired key event.
func (t *toEventDefinition) isKey() bool {
	switch t.descriptor.Type {
	case config.DescriptorKeyCode, config.DescriptorConsumerKeyCode, config.DescriptorPointingButton:
		return true
	}
	return false
}

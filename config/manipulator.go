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

package config

import (
	"encoding/json"
	"fmt"

	"github.com/hidtools/remapd/keycode"
)

// DescriptorType tags an EventDescriptor.
type DescriptorType uint8

const (
	DescriptorNone DescriptorType = iota
	DescriptorKeyCode
	DescriptorConsumerKeyCode
	DescriptorPointingButton
	DescriptorAnyKeyCode
	DescriptorAnyConsumerKeyCode
	DescriptorAnyPointingButton
	DescriptorShellCommand
	DescriptorSelectInputSource
	DescriptorSetVariable
	DescriptorMouseKey
	DescriptorStickyModifier
)

// IsAny reports whether the descriptor is an any_* wildcard.
func (t DescriptorType) IsAny() bool {
	return t == DescriptorAnyKeyCode || t == DescriptorAnyConsumerKeyCode || t == DescriptorAnyPointingButton
}

// Class returns the key class for key-typed descriptors.
func (t DescriptorType) Class() (keycode.Class, bool) {
	switch t {
	case DescriptorKeyCode, DescriptorAnyKeyCode:
		return keycode.ClassKey, true
	case DescriptorConsumerKeyCode, DescriptorAnyConsumerKeyCode:
		return keycode.ClassConsumer, true
	case DescriptorPointingButton, DescriptorAnyPointingButton:
		return keycode.ClassButton, true
	}
	return 0, false
}

// InputSourceSpecifier selects an input source by regex fragments; the
// wire form of select_input_source entries.
type InputSourceSpecifier struct {
	Language      string `json:"language,omitempty"`
	InputSourceID string `json:"input_source_id,omitempty"`
	InputModeID   string `json:"input_mode_id,omitempty"`
}

// MouseKey is the wire form of a mouse_key to-event.
type MouseKey struct {
	X               int     `json:"x,omitempty"`
	Y               int     `json:"y,omitempty"`
	VerticalWheel   int     `json:"vertical_wheel,omitempty"`
	HorizontalWheel int     `json:"horizontal_wheel,omitempty"`
	SpeedMultiplier float64 `json:"speed_multiplier,omitempty"`
}

// VariableValue is an int-or-string variable value.
type VariableValue struct {
	Str      string
	Int      int
	IsString bool
}

// UnmarshalJSON accepts integers, booleans (as 0/1), and strings.
func (v *VariableValue) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*v = VariableValue{Int: n}
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*v = VariableValue{Int: 1}
		} else {
			*v = VariableValue{Int: 0}
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = VariableValue{Str: s, IsString: true}
		return nil
	}
	return fmt.Errorf("variable value must be integer, boolean, or string: %s", string(data))
}

// MarshalJSON emits the underlying value.
func (v VariableValue) MarshalJSON() ([]byte, error) {
	if v.IsString {
		return json.Marshal(v.Str)
	}
	return json.Marshal(v.Int)
}

// SetVariable is the wire form of a set_variable to-event.
type SetVariable struct {
	Name  string        `json:"name"`
	Value VariableValue `json:"value"`
}

// StickyModifier is the wire form of a sticky_modifier to-event:
// one modifier name mapped to "on", "off", or "toggle".
type StickyModifier struct {
	Modifier  keycode.Modifier
	Operation string
}

// EventDescriptor is the decoded tagged value of spec key classes:
// a key code of some class, an any_* wildcard, or one of the
// non-key to-event payloads.
type EventDescriptor struct {
	Type DescriptorType

	Code keycode.Code

	ShellCommand   string
	InputSources   []InputSourceSpecifier
	SetVariable    SetVariable
	MouseKey       MouseKey
	StickyModifier StickyModifier
}

// handleJSONKey folds one JSON key/value pair into the descriptor.
// Returns false when the key does not belong to a descriptor.
func (d *EventDescriptor) handleJSONKey(key string, value json.RawMessage) (bool, error) {
	setType := func(t DescriptorType) error {
		if d.Type != DescriptorNone {
			return fmt.Errorf("multiple event types in one definition")
		}
		d.Type = t
		return nil
	}

	switch key {
	case "key_code", "consumer_key_code", "pointing_button":
		var name string
		if err := json.Unmarshal(value, &name); err != nil {
			// Raw usage numbers are accepted too.
			var raw uint32
			if err2 := json.Unmarshal(value, &raw); err2 != nil {
				return true, fmt.Errorf("`%s` must be string or number: %w", key, err)
			}
			d.Code = keycode.Code(raw)
			return true, setType(descriptorTypeForKey(key))
		}
		code, ok := lookupCode(key, name)
		if !ok {
			return true, fmt.Errorf("unknown %s `%s`", key, name)
		}
		d.Code = code
		return true, setType(descriptorTypeForKey(key))

	case "any":
		var class string
		if err := json.Unmarshal(value, &class); err != nil {
			return true, fmt.Errorf("`any` must be string: %w", err)
		}
		switch class {
		case "key_code":
			return true, setType(DescriptorAnyKeyCode)
		case "consumer_key_code":
			return true, setType(DescriptorAnyConsumerKeyCode)
		case "pointing_button":
			return true, setType(DescriptorAnyPointingButton)
		}
		return true, fmt.Errorf("unknown `any` class `%s`", class)

	case "shell_command":
		if err := json.Unmarshal(value, &d.ShellCommand); err != nil {
			return true, fmt.Errorf("`shell_command` must be string: %w", err)
		}
		return true, setType(DescriptorShellCommand)

	case "select_input_source":
		// Accept a single specifier or an array of them.
		var one InputSourceSpecifier
		if err := json.Unmarshal(value, &one); err == nil {
			d.InputSources = []InputSourceSpecifier{one}
			return true, setType(DescriptorSelectInputSource)
		}
		if err := json.Unmarshal(value, &d.InputSources); err != nil {
			return true, fmt.Errorf("`select_input_source` must be object or array: %w", err)
		}
		return true, setType(DescriptorSelectInputSource)

	case "set_variable":
		if err := json.Unmarshal(value, &d.SetVariable); err != nil {
			return true, fmt.Errorf("`set_variable`: %w", err)
		}
		if d.SetVariable.Name == "" {
			return true, fmt.Errorf("`set_variable` requires a name")
		}
		return true, setType(DescriptorSetVariable)

	case "mouse_key":
		if err := json.Unmarshal(value, &d.MouseKey); err != nil {
			return true, fmt.Errorf("`mouse_key`: %w", err)
		}
		return true, setType(DescriptorMouseKey)

	case "sticky_modifier":
		var raw map[string]string
		if err := json.Unmarshal(value, &raw); err != nil {
			return true, fmt.Errorf("`sticky_modifier` must be object: %w", err)
		}
		for name, op := range raw {
			mod, ok := keycode.ModifierFromName(name)
			if !ok || mod == keycode.ModifierAny {
				return true, fmt.Errorf("unknown sticky modifier `%s`", name)
			}
			switch op {
			case "on", "off", "toggle":
			default:
				return true, fmt.Errorf("sticky modifier operation must be on/off/toggle, got `%s`", op)
			}
			d.StickyModifier = StickyModifier{Modifier: mod, Operation: op}
		}
		return true, setType(DescriptorStickyModifier)
	}

	return false, nil
}

func descriptorTypeForKey(key string) DescriptorType {
	switch key {
	case "key_code":
		return DescriptorKeyCode
	case "consumer_key_code":
		return DescriptorConsumerKeyCode
	case "pointing_button":
		return DescriptorPointingButton
	}
	return DescriptorNone
}

func lookupCode(key, name string) (keycode.Code, bool) {
	switch key {
	case "key_code":
		return keycode.KeyFromName(name)
	case "consumer_key_code":
		return keycode.ConsumerKeyFromName(name)
	case "pointing_button":
		return keycode.PointingButtonFromName(name)
	}
	return 0, false
}

// marshalInto writes the descriptor's JSON keys into an object map.
func (d EventDescriptor) marshalInto(obj map[string]interface{}) {
	switch d.Type {
	case DescriptorKeyCode:
		obj["key_code"] = keycode.KeyName(d.Code)
	case DescriptorConsumerKeyCode:
		obj["consumer_key_code"] = keycode.ConsumerKeyName(d.Code)
	case DescriptorPointingButton:
		obj["pointing_button"] = keycode.PointingButtonName(d.Code)
	case DescriptorAnyKeyCode:
		obj["any"] = "key_code"
	case DescriptorAnyConsumerKeyCode:
		obj["any"] = "consumer_key_code"
	case DescriptorAnyPointingButton:
		obj["any"] = "pointing_button"
	case DescriptorShellCommand:
		obj["shell_command"] = d.ShellCommand
	case DescriptorSelectInputSource:
		obj["select_input_source"] = d.InputSources
	case DescriptorSetVariable:
		obj["set_variable"] = d.SetVariable
	case DescriptorMouseKey:
		obj["mouse_key"] = d.MouseKey
	case DescriptorStickyModifier:
		obj["sticky_modifier"] = map[string]string{
			d.StickyModifier.Modifier.String(): d.StickyModifier.Operation,
		}
	}
}

// KeyOrder is the simultaneous key_down_order / key_up_order option.
type KeyOrder uint8

const (
	KeyOrderInsensitive KeyOrder = iota
	KeyOrderStrict
	KeyOrderStrictInverse
)

func (o KeyOrder) String() string {
	switch o {
	case KeyOrderStrict:
		return "strict"
	case KeyOrderStrictInverse:
		return "strict_inverse"
	}
	return "insensitive"
}

func keyOrderFromName(name string) (KeyOrder, error) {
	switch name {
	case "insensitive":
		return KeyOrderInsensitive, nil
	case "strict":
		return KeyOrderStrict, nil
	case "strict_inverse":
		return KeyOrderStrictInverse, nil
	}
	return KeyOrderInsensitive, fmt.Errorf("unknown key order `%s`", name)
}

// KeyUpWhen determines whether releasing any or all of the
// simultaneous keys ends the group.
type KeyUpWhen uint8

const (
	KeyUpWhenAny KeyUpWhen = iota
	KeyUpWhenAll
)

func (w KeyUpWhen) String() string {
	if w == KeyUpWhenAll {
		return "all"
	}
	return "any"
}

// SimultaneousOptions tunes simultaneous-group detection.
type SimultaneousOptions struct {
	DetectKeyDownUninterruptedly bool
	KeyDownOrder                 KeyOrder
	KeyUpOrder                   KeyOrder
	KeyUpWhen                    KeyUpWhen
	ToAfterKeyUp                 []ToDefinition
}

// UnmarshalJSON decodes the simultaneous_options object.
func (o *SimultaneousOptions) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("`simultaneous_options` must be object: %w", err)
	}
	for key, value := range raw {
		switch key {
		case "detect_key_down_uninterruptedly":
			if err := json.Unmarshal(value, &o.DetectKeyDownUninterruptedly); err != nil {
				return fmt.Errorf("`detect_key_down_uninterruptedly` must be boolean: %w", err)
			}
		case "key_down_order":
			var name string
			if err := json.Unmarshal(value, &name); err != nil {
				return fmt.Errorf("`key_down_order` must be string: %w", err)
			}
			order, err := keyOrderFromName(name)
			if err != nil {
				return err
			}
			o.KeyDownOrder = order
		case "key_up_order":
			var name string
			if err := json.Unmarshal(value, &name); err != nil {
				return fmt.Errorf("`key_up_order` must be string: %w", err)
			}
			order, err := keyOrderFromName(name)
			if err != nil {
				return err
			}
			o.KeyUpOrder = order
		case "key_up_when":
			var name string
			if err := json.Unmarshal(value, &name); err != nil {
				return fmt.Errorf("`key_up_when` must be string: %w", err)
			}
			switch name {
			case "any":
				o.KeyUpWhen = KeyUpWhenAny
			case "all":
				o.KeyUpWhen = KeyUpWhenAll
			default:
				return fmt.Errorf("unknown key_up_when `%s`", name)
			}
		case "to_after_key_up":
			if err := json.Unmarshal(value, &o.ToAfterKeyUp); err != nil {
				return err
			}
		case "description":
			// Ignored.
		default:
			return fmt.Errorf("unknown key `%s` in simultaneous_options", key)
		}
	}
	return nil
}

// MarshalJSON emits the non-default options.
func (o SimultaneousOptions) MarshalJSON() ([]byte, error) {
	obj := map[string]interface{}{}
	if o.DetectKeyDownUninterruptedly {
		obj["detect_key_down_uninterruptedly"] = true
	}
	if o.KeyDownOrder != KeyOrderInsensitive {
		obj["key_down_order"] = o.KeyDownOrder.String()
	}
	if o.KeyUpOrder != KeyOrderInsensitive {
		obj["key_up_order"] = o.KeyUpOrder.String()
	}
	if o.KeyUpWhen != KeyUpWhenAny {
		obj["key_up_when"] = o.KeyUpWhen.String()
	}
	if len(o.ToAfterKeyUp) > 0 {
		obj["to_after_key_up"] = o.ToAfterKeyUp
	}
	return json.Marshal(obj)
}

// FromDefinition is the input side of a manipulator: one event
// descriptor, or two-plus when simultaneous, with mandatory and
// optional modifier families.
type FromDefinition struct {
	Events              []EventDescriptor
	MandatoryModifiers  keycode.ModifierSet
	OptionalModifiers   keycode.ModifierSet
	Simultaneous        bool
	SimultaneousOptions SimultaneousOptions
}

// UnmarshalJSON decodes the `from` object.
func (f *FromDefinition) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("`from` must be object: %w", err)
	}

	f.MandatoryModifiers = keycode.ModifierSet{}
	f.OptionalModifiers = keycode.ModifierSet{}

	var single EventDescriptor
	for key, value := range raw {
		handled, err := single.handleJSONKey(key, value)
		if err != nil {
			return fmt.Errorf("`from`: %w", err)
		}
		if handled {
			continue
		}

		switch key {
		case "simultaneous":
			var members []json.RawMessage
			if err := json.Unmarshal(value, &members); err != nil {
				return fmt.Errorf("`simultaneous` must be array: %w", err)
			}
			for _, m := range members {
				var memberRaw map[string]json.RawMessage
				if err := json.Unmarshal(m, &memberRaw); err != nil {
					return fmt.Errorf("`simultaneous` member must be object: %w", err)
				}
				var d EventDescriptor
				for k, v := range memberRaw {
					if _, err := d.handleJSONKey(k, v); err != nil {
						return fmt.Errorf("`simultaneous`: %w", err)
					}
				}
				if d.Type != DescriptorNone {
					f.Events = append(f.Events, d)
				}
			}
			f.Simultaneous = true

		case "simultaneous_options":
			if err := json.Unmarshal(value, &f.SimultaneousOptions); err != nil {
				return err
			}

		case "modifiers":
			var mods map[string]json.RawMessage
			if err := json.Unmarshal(value, &mods); err != nil {
				return fmt.Errorf("`modifiers` must be object: %w", err)
			}
			for k, v := range mods {
				switch k {
				case "mandatory":
					set, err := decodeModifierSet(v)
					if err != nil {
						return fmt.Errorf("`modifiers.mandatory`: %w", err)
					}
					f.MandatoryModifiers = set
				case "optional":
					set, err := decodeModifierSet(v)
					if err != nil {
						return fmt.Errorf("`modifiers.optional`: %w", err)
					}
					f.OptionalModifiers = set
				case "description":
					// Ignored.
				default:
					return fmt.Errorf("unknown key `%s` in from modifiers", k)
				}
			}

		case "description":
			// Ignored.

		default:
			return fmt.Errorf("unknown key `%s` in `from`", key)
		}
	}

	if len(f.Events) == 0 && single.Type != DescriptorNone {
		f.Events = []EventDescriptor{single}
	}

	return f.validate()
}

func (f *FromDefinition) validate() error {
	if len(f.Events) == 0 {
		return fmt.Errorf("`from` requires an event")
	}
	if f.Simultaneous && len(f.Events) < 2 {
		return fmt.Errorf("`simultaneous` requires at least two events")
	}
	for _, d := range f.Events {
		if _, ok := d.Type.Class(); !ok {
			return fmt.Errorf("invalid event type in `from`")
		}
	}
	return nil
}

// MarshalJSON re-emits the from object.
func (f FromDefinition) MarshalJSON() ([]byte, error) {
	obj := map[string]interface{}{}
	if f.Simultaneous {
		members := make([]map[string]interface{}, 0, len(f.Events))
		for _, d := range f.Events {
			m := map[string]interface{}{}
			d.marshalInto(m)
			members = append(members, m)
		}
		obj["simultaneous"] = members
		obj["simultaneous_options"] = f.SimultaneousOptions
	} else if len(f.Events) == 1 {
		f.Events[0].marshalInto(obj)
	}
	mods := map[string]interface{}{}
	if len(f.MandatoryModifiers) > 0 {
		mods["mandatory"] = modifierNameList(f.MandatoryModifiers)
	}
	if len(f.OptionalModifiers) > 0 {
		mods["optional"] = modifierNameList(f.OptionalModifiers)
	}
	if len(mods) > 0 {
		obj["modifiers"] = mods
	}
	return json.Marshal(obj)
}

func modifierNameList(set keycode.ModifierSet) []string {
	var names []string
	for _, m := range keycode.Modifiers() {
		if set.Has(m) {
			names = append(names, m.String())
		}
	}
	return names
}

func decodeModifierSet(data json.RawMessage) (keycode.ModifierSet, error) {
	set := keycode.ModifierSet{}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		// A single name is accepted outside an array.
		var name string
		if err2 := json.Unmarshal(data, &name); err2 != nil {
			return nil, fmt.Errorf("must be string or array of strings")
		}
		names = []string{name}
	}

	for _, name := range names {
		mod, ok := keycode.ModifierFromName(name)
		if !ok {
			return nil, fmt.Errorf("unknown modifier `%s`", name)
		}
		set.Add(mod)
	}
	return set, nil
}

// ToDefinition is one output event of a manipulator.
type ToDefinition struct {
	Descriptor  EventDescriptor
	Modifiers   []keycode.Modifier
	Lazy        bool
	Repeat      bool
	HaltOnKeyUp bool
}

// UnmarshalJSON decodes a to-event object.
func (t *ToDefinition) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("to-event must be object: %w", err)
	}

	t.Repeat = true

	for key, value := range raw {
		handled, err := t.Descriptor.handleJSONKey(key, value)
		if err != nil {
			return fmt.Errorf("to-event: %w", err)
		}
		if handled {
			continue
		}

		switch key {
		case "modifiers":
			var names []string
			if err := json.Unmarshal(value, &names); err != nil {
				var name string
				if err2 := json.Unmarshal(value, &name); err2 != nil {
					return fmt.Errorf("to-event `modifiers` must be string or array: %w", err)
				}
				names = []string{name}
			}
			for _, name := range names {
				mod, ok := keycode.ModifierFromName(name)
				if !ok || mod == keycode.ModifierAny {
					return fmt.Errorf("unknown to-event modifier `%s`", name)
				}
				t.Modifiers = append(t.Modifiers, mod)
			}
		case "lazy":
			if err := json.Unmarshal(value, &t.Lazy); err != nil {
				return fmt.Errorf("`lazy` must be boolean: %w", err)
			}
		case "repeat":
			if err := json.Unmarshal(value, &t.Repeat); err != nil {
				return fmt.Errorf("`repeat` must be boolean: %w", err)
			}
		case "halt":
			if err := json.Unmarshal(value, &t.HaltOnKeyUp); err != nil {
				return fmt.Errorf("`halt` must be boolean: %w", err)
			}
		case "description":
			// Ignored.
		default:
			return fmt.Errorf("unknown key `%s` in to-event", key)
		}
	}

	if t.Descriptor.Type == DescriptorNone {
		return fmt.Errorf("to-event requires an event")
	}
	return nil
}

// MarshalJSON re-emits the to-event object.
func (t ToDefinition) MarshalJSON() ([]byte, error) {
	obj := map[string]interface{}{}
	t.Descriptor.marshalInto(obj)
	if len(t.Modifiers) > 0 {
		names := make([]string, 0, len(t.Modifiers))
		for _, m := range t.Modifiers {
			names = append(names, m.String())
		}
		obj["modifiers"] = names
	}
	if t.Lazy {
		obj["lazy"] = true
	}
	if !t.Repeat {
		obj["repeat"] = false
	}
	if t.HaltOnKeyUp {
		obj["halt"] = true
	}
	return json.Marshal(obj)
}

// DelayedAction is the to_delayed_action pair of streams.
type DelayedAction struct {
	ToIfInvoked  []ToDefinition `json:"to_if_invoked,omitempty"`
	ToIfCanceled []ToDefinition `json:"to_if_canceled,omitempty"`
}

// Manipulator is one decoded manipulator definition of type basic.
type Manipulator struct {
	Type            string                `json:"type"`
	Description     string                `json:"description,omitempty"`
	From            FromDefinition        `json:"from"`
	To              []ToDefinition        `json:"to,omitempty"`
	ToIfAlone       []ToDefinition        `json:"to_if_alone,omitempty"`
	ToIfHeldDown    []ToDefinition        `json:"to_if_held_down,omitempty"`
	ToAfterKeyUp    []ToDefinition        `json:"to_after_key_up,omitempty"`
	ToDelayedAction *DelayedAction        `json:"to_delayed_action,omitempty"`
	Conditions      []ConditionDefinition `json:"conditions,omitempty"`
	Parameters      Parameters            `json:"parameters,omitempty"`
}

type manipulatorAlias Manipulator

// UnmarshalJSON decodes and validates a manipulator definition.
func (m *Manipulator) UnmarshalJSON(data []byte) error {
	var alias manipulatorAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*m = Manipulator(alias)

	if m.Type != "basic" {
		return fmt.Errorf("unknown manipulator type `%s`", m.Type)
	}
	if len(m.From.Events) == 0 {
		return fmt.Errorf("manipulator requires `from`")
	}
	if len(m.To) == 0 {
		return fmt.Errorf("manipulator requires a nonempty `to`")
	}
	return nil
}

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
	"sync/atomic"

	"github.com/hidtools/remapd/keycode"
)

// DeviceID identifies a seized physical device.  DeviceVirtual (0) is
// reserved for synthesized events with no source device.
type DeviceID uint32

// DeviceVirtual is the device id of events the pipeline makes up
// itself.
const DeviceVirtual DeviceID = 0

// AbsoluteTime is a monotonic timestamp in nanoseconds since an
// unspecified fixed origin.
type AbsoluteTime uint64

// Milliseconds converts a millisecond count into an AbsoluteTime
// delta.
func Milliseconds(ms int) AbsoluteTime {
	return AbsoluteTime(ms) * 1e6
}

// EventType classifies a queue entry: key_down/key_up form a pair,
// Single marks events with no counterpart (shell_command and friends).
type EventType uint8

const (
	EventTypeKeyDown EventType = iota
	EventTypeKeyUp
	EventTypeSingle
)

func (t EventType) String() string {
	switch t {
	case EventTypeKeyDown:
		return "key_down"
	case EventTypeKeyUp:
		return "key_up"
	case EventTypeSingle:
		return "single"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// EventKind tags the Event union.
type EventKind uint8

const (
	EventKindNone EventKind = iota
	EventKindKey
	EventKindCapsLockStateChanged
	EventKindPointingMotion
	EventKindShellCommand
	EventKindSelectInputSource
	EventKindSetVariable
	EventKindMouseKey
	EventKindStickyModifier
	EventKindDeviceKeysAndPointingButtonsAreReleased
	EventKindDeviceUngrabbed
	EventKindFrontmostApplicationChanged
	EventKindInputSourceChanged
	EventKindSystemPreferencesPropertiesChanged
	EventKindVirtualHIDDeviceStateChanged
)

// PointingMotion is a relative pointer movement with wheel deltas.
type PointingMotion struct {
	X               int
	Y               int
	VerticalWheel   int
	HorizontalWheel int
}

// IsZero reports whether no axis moved.
func (p PointingMotion) IsZero() bool {
	return p == PointingMotion{}
}

// MouseKey is a synthesized pointer movement with a speed multiplier,
// produced by mouse_key to-definitions.
type MouseKey struct {
	X               int
	Y               int
	VerticalWheel   int
	HorizontalWheel int
	SpeedMultiplier float64
}

// InputSourceSpecifier selects an input source by regex fragments.
type InputSourceSpecifier struct {
	Language      string
	InputSourceID string
	InputModeID   string
}

// InputSource is the concrete current input source.
type InputSource struct {
	Language      string
	InputSourceID string
	InputModeID   string
}

// Application identifies the frontmost application.
type Application struct {
	BundleID string
	FilePath string
}

// SystemPreferences is the snapshot of host settings the pipeline
// cares about.
type SystemPreferences struct {
	KeyboardFnState      bool
	SwipeScrollDirection bool
	KeyboardType         string
}

// Variable is a string-or-int variable value.
type Variable struct {
	str   string
	num   int
	isStr bool
}

// IntVariable makes an integer-valued Variable.
func IntVariable(v int) Variable { return Variable{num: v} }

// StringVariable makes a string-valued Variable.
func StringVariable(v string) Variable { return Variable{str: v, isStr: true} }

// Int returns the integer value and whether the variable holds one.
func (v Variable) Int() (int, bool) { return v.num, !v.isStr }

// Str returns the string value and whether the variable holds one.
func (v Variable) Str() (string, bool) { return v.str, v.isStr }

// Equal compares values, including type.
func (v Variable) Equal(o Variable) bool { return v == o }

func (v Variable) String() string {
	if v.isStr {
		return v.str
	}
	return fmt.Sprintf("%d", v.num)
}

// Event is the tagged union carried by queue entries.  The zero value
// is the none event.
type Event struct {
	kind EventKind

	class keycode.Class
	code  keycode.Code

	boolValue bool

	motion   PointingMotion
	mouseKey MouseKey

	str          string
	inputSources []InputSourceSpecifier
	inputSource  InputSource
	application  Application
	prefs        SystemPreferences

	variableName  string
	variableValue Variable

	stickyFlag      keycode.ModifierFlag
	stickyOperation StickyOperation
}

// StickyOperation is the action of a sticky_modifier to-event.
type StickyOperation uint8

const (
	StickyToggle StickyOperation = iota
	StickyOn
	StickyOff
)

// NewKeyEvent makes a key, consumer-key, or pointing-button event.
func NewKeyEvent(class keycode.Class, code keycode.Code) Event {
	return Event{kind: EventKindKey, class: class, code: code}
}

// NewCapsLockStateChangedEvent reports the host LED state.
func NewCapsLockStateChangedEvent(on bool) Event {
	return Event{kind: EventKindCapsLockStateChanged, boolValue: on}
}

// NewPointingMotionEvent wraps a relative pointer movement.
func NewPointingMotionEvent(m PointingMotion) Event {
	return Event{kind: EventKindPointingMotion, motion: m}
}

// NewShellCommandEvent carries a command line for the shell collaborator.
func NewShellCommandEvent(command string) Event {
	return Event{kind: EventKindShellCommand, str: command}
}

// NewSelectInputSourceEvent carries input source specifiers.
func NewSelectInputSourceEvent(specs []InputSourceSpecifier) Event {
	return Event{kind: EventKindSelectInputSource, inputSources: specs}
}

// NewSetVariableEvent carries a variable assignment.
func NewSetVariableEvent(name string, value Variable) Event {
	return Event{kind: EventKindSetVariable, variableName: name, variableValue: value}
}

// NewMouseKeyEvent wraps a synthesized pointer movement.
func NewMouseKeyEvent(m MouseKey) Event {
	return Event{kind: EventKindMouseKey, mouseKey: m}
}

// NewStickyModifierEvent carries a sticky modifier toggle.
func NewStickyModifierEvent(flag keycode.ModifierFlag, op StickyOperation) Event {
	return Event{kind: EventKindStickyModifier, stickyFlag: flag, stickyOperation: op}
}

// NewDeviceKeysAndPointingButtonsAreReleasedEvent marks the moment a
// device has nothing held down anymore.
func NewDeviceKeysAndPointingButtonsAreReleasedEvent() Event {
	return Event{kind: EventKindDeviceKeysAndPointingButtonsAreReleased}
}

// NewDeviceUngrabbedEvent marks a device leaving the pipeline.
func NewDeviceUngrabbedEvent() Event {
	return Event{kind: EventKindDeviceUngrabbed}
}

// NewFrontmostApplicationChangedEvent updates the environment.
func NewFrontmostApplicationChangedEvent(app Application) Event {
	return Event{kind: EventKindFrontmostApplicationChanged, application: app}
}

// NewInputSourceChangedEvent updates the environment.
func NewInputSourceChangedEvent(s InputSource) Event {
	return Event{kind: EventKindInputSourceChanged, inputSource: s}
}

// NewSystemPreferencesPropertiesChangedEvent updates the environment.
func NewSystemPreferencesPropertiesChangedEvent(p SystemPreferences) Event {
	return Event{kind: EventKindSystemPreferencesPropertiesChanged, prefs: p}
}

// NewVirtualHIDDeviceStateChangedEvent reports sink readiness.
func NewVirtualHIDDeviceStateChangedEvent(ready bool) Event {
	return Event{kind: EventKindVirtualHIDDeviceStateChanged, boolValue: ready}
}

// Kind returns the union tag.
func (e Event) Kind() EventKind { return e.kind }

// Key returns the key class and code for EventKindKey events.
func (e Event) Key() (keycode.Class, keycode.Code, bool) {
	return e.class, e.code, e.kind == EventKindKey
}

// IsKey reports whether the event is a key, consumer key, or button.
func (e Event) IsKey() bool { return e.kind == EventKindKey }

// IsModifierKey reports whether the event is a modifier key press or
// release.
func (e Event) IsModifierKey() bool {
	return e.kind == EventKindKey && keycode.IsModifier(e.class, e.code)
}

// Bool returns the payload of caps_lock_state_changed and
// virtual_hid_device_state_changed events.
func (e Event) Bool() bool { return e.boolValue }

// Motion returns the pointing_motion payload.
func (e Event) Motion() PointingMotion { return e.motion }

// MouseKey returns the mouse_key payload.
func (e Event) MouseKey() MouseKey { return e.mouseKey }

// ShellCommand returns the shell_command payload.
func (e Event) ShellCommand() string { return e.str }

// InputSourceSpecifiers returns the select_input_source payload.
func (e Event) InputSourceSpecifiers() []InputSourceSpecifier { return e.inputSources }

// VariableAssignment returns the set_variable payload.
func (e Event) VariableAssignment() (string, Variable) { return e.variableName, e.variableValue }

// Application returns the frontmost_application_changed payload.
func (e Event) Application() Application { return e.application }

// InputSource returns the input_source_changed payload.
func (e Event) InputSource() InputSource { return e.inputSource }

// SystemPreferences returns the system preferences snapshot payload.
func (e Event) SystemPreferences() SystemPreferences { return e.prefs }

// StickyModifier returns the sticky_modifier payload.
func (e Event) StickyModifier() (keycode.ModifierFlag, StickyOperation) {
	return e.stickyFlag, e.stickyOperation
}

// SameKey reports whether two events press the same key.
func (e Event) SameKey(o Event) bool {
	return e.kind == EventKindKey && o.kind == EventKindKey &&
		e.class == o.class && e.code == o.code
}

func (e Event) String() string {
	switch e.kind {
	case EventKindNone:
		return "none"
	case EventKindKey:
		return fmt.Sprintf("%v(0x%x)", e.class, uint32(e.code))
	case EventKindCapsLockStateChanged:
		return fmt.Sprintf("caps_lock_state_changed(%v)", e.boolValue)
	case EventKindPointingMotion:
		return fmt.Sprintf("pointing_motion(%d,%d,%d,%d)", e.motion.X, e.motion.Y, e.motion.VerticalWheel, e.motion.HorizontalWheel)
	case EventKindShellCommand:
		return fmt.Sprintf("shell_command(%q)", e.str)
	case EventKindSelectInputSource:
		return "select_input_source"
	case EventKindSetVariable:
		return fmt.Sprintf("set_variable(%s=%v)", e.variableName, e.variableValue)
	case EventKindMouseKey:
		return "mouse_key"
	case EventKindStickyModifier:
		return fmt.Sprintf("sticky_modifier(%v)", e.stickyFlag)
	case EventKindDeviceKeysAndPointingButtonsAreReleased:
		return "device_keys_and_pointing_buttons_are_released"
	case EventKindDeviceUngrabbed:
		return "device_ungrabbed"
	case EventKindFrontmostApplicationChanged:
		return fmt.Sprintf("frontmost_application_changed(%s)", e.application.BundleID)
	case EventKindInputSourceChanged:
		return fmt.Sprintf("input_source_changed(%s)", e.inputSource.InputSourceID)
	case EventKindSystemPreferencesPropertiesChanged:
		return "system_preferences_properties_changed"
	case EventKindVirtualHIDDeviceStateChanged:
		return fmt.Sprintf("virtual_hid_device_state_changed(%v)", e.boolValue)
	}
	return fmt.Sprintf("Event(%d)", int(e.kind))
}

// Entry is one element of an event queue: an event plus the metadata
// every pipeline stage needs.
type Entry struct {
	DeviceID       DeviceID
	EventTimeStamp AbsoluteTime
	Event          Event
	EventType      EventType
	OriginalEvent  Event
	Lazy           bool
	UniqueID       uint64

	valid bool
}

var uniqueIDCounter atomic.Uint64

// NewEntry builds an entry with a fresh unique id.  The original event
// defaults to the event itself.
func NewEntry(device DeviceID, t AbsoluteTime, event Event, eventType EventType) *Entry {
	return &Entry{
		DeviceID:       device,
		EventTimeStamp: t,
		Event:          event,
		EventType:      eventType,
		OriginalEvent:  event,
		UniqueID:       uniqueIDCounter.Add(1),
		valid:          true,
	}
}

// Valid reports whether downstream stages should still act on the
// entry.
func (e *Entry) Valid() bool { return e.valid }

// Invalidate marks the entry consumed.  There is no way back.
func (e *Entry) Invalidate() { e.valid = false }

func (e *Entry) String() string {
	return fmt.Sprintf("entry{device=%d t=%d %v %v valid=%v lazy=%v id=%d}",
		e.DeviceID, e.EventTimeStamp, e.EventType, e.Event, e.valid, e.Lazy, e.UniqueID)
}

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

// ManipulateResult is what a manipulator did with an entry.
type ManipulateResult uint8

const (
	// ManipulatePassed means the entry is not the manipulator's
	// business; the chain forwards it unchanged.
	ManipulatePassed ManipulateResult = iota
	// ManipulateAbsorbed means the entry was consumed: it has been
	// invalidated and any replacement events were emitted.
	ManipulateAbsorbed
	// ManipulateDeferred means the entry is held in a pending
	// simultaneous group; the chain must not forward it.
	ManipulateDeferred
)

// Manipulator is one element of the chain.
type Manipulator interface {
	// Manipulate processes one valid entry, emitting any synthesized
	// events into out.
	Manipulate(entry *Entry, out *Queue, env *Environment) ManipulateResult

	// Active reports whether any activation or pending state is live.
	Active() bool

	// NextDeadline returns the earliest virtual-timer deadline, if any.
	NextDeadline() (AbsoluteTime, bool)

	// FireTimers runs every timer whose deadline is ≤ now.
	FireTimers(now AbsoluteTime, out *Queue, env *Environment)

	// HandleDeviceUngrabbed force-terminates state owned by a device.
	HandleDeviceUngrabbed(device DeviceID, out *Queue, env *Environment, now AbsoluteTime)

	// ForceTerminate force-completes every live activation.
	ForceTerminate(out *Queue, env *Environment, now AbsoluteTime)
}

// basicParameters are the resolved per-manipulator timing parameters.
type basicParameters struct {
	toIfAloneTimeout      AbsoluteTime
	toIfAloneInterval     AbsoluteTime
	toIfHeldDownThreshold AbsoluteTime
	toDelayedActionDelay  AbsoluteTime
	simultaneousThreshold AbsoluteTime
}

func resolveParameters(own config.Parameters, profile config.Parameters) basicParameters {
	get := func(name string) AbsoluteTime {
		return Milliseconds(own.Get(name, profile))
	}
	return basicParameters{
		toIfAloneTimeout:      get(config.ParameterToIfAloneTimeout),
		toIfAloneInterval:     get(config.ParameterToIfAloneInterval),
		toIfHeldDownThreshold: get(config.ParameterToIfHeldDownThreshold),
		toDelayedActionDelay:  get(config.ParameterToDelayedActionDelay),
		simultaneousThreshold: get(config.ParameterSimultaneousThreshold),
	}
}

// fromKey identifies one matched from-side key on a device.
type fromKey struct {
	device DeviceID
	class  keycode.Class
	code   keycode.Code
}

func entryFromKey(e *Entry) (fromKey, bool) {
	class, code, ok := e.Event.Key()
	if !ok {
		return fromKey{}, false
	}
	return fromKey{e.DeviceID, class, code}, true
}

// heldOutput is a key the activation is holding down on the output
// side; it is released when the from trigger releases.
type heldOutput struct {
	event     Event
	modifiers []keycode.ModifierFlag
	lazy      bool
}

// activation is one live instance of a matched from-event.
type activation struct {
	device                 DeviceID
	keys                   []fromKey
	released               map[fromKey]bool
	fromMandatoryModifiers keycode.FlagMask
	downTime               AbsoluteTime

	alone            bool
	heldFired        bool
	keyUpPosted      bool
	halted           bool
	held             []heldOutput
	modifiersLowered bool

	heldDeadline    AbsoluteTime
	delayedDeadline AbsoluteTime
	delayedUniqueID uint64
}

func (a *activation) hasKey(k fromKey) bool {
	for _, key := range a.keys {
		if key == k {
			return true
		}
	}
	return false
}

func (a *activation) allReleased() bool {
	return len(a.released) == len(a.keys)
}

// pendingGroup accumulates a simultaneous from-event.
type pendingGroup struct {
	device                 DeviceID
	entries                []*Entry
	matched                []int // descriptor index per entry
	fromMandatoryModifiers keycode.FlagMask
	start                  AbsoluteTime
	deadline               AbsoluteTime
}

// BasicManipulator implements the `basic` manipulator type: from/to
// matching with alone, held-down, delayed-action, and after-key-up
// sub-pipelines, plus simultaneous-group detection.
type BasicManipulator struct {
	description string
	from        fromEventDefinition
	to          []toEventDefinition
	toIfAlone   []toEventDefinition
	toIfHeld    []toEventDefinition
	toAfterUp   []toEventDefinition
	toInvoked   []toEventDefinition
	toCanceled  []toEventDefinition
	conditions  []Condition
	params      basicParameters

	activations []*activation
	pending     *pendingGroup
}

// NewBasicManipulator compiles a decoded manipulator definition.
// Profile parameters supply defaults for timings the definition does
// not override.
func NewBasicManipulator(def config.Manipulator, profileParams config.Parameters) (*BasicManipulator, error) {
	if def.Type != "basic" {
		return nil, fmt.Errorf("unknown manipulator type `%s`", def.Type)
	}

	from, err := compileFromDefinition(def.From)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}

	m := &BasicManipulator{
		description: def.Description,
		from:        from,
		params:      resolveParameters(def.Parameters, profileParams),
	}

	if m.to, err = compileToDefinitions(def.To); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	if m.toIfAlone, err = compileToDefinitions(def.ToIfAlone); err != nil {
		return nil, fmt.Errorf("to_if_alone: %w", err)
	}
	if m.toIfHeld, err = compileToDefinitions(def.ToIfHeldDown); err != nil {
		return nil, fmt.Errorf("to_if_held_down: %w", err)
	}
	if m.toAfterUp, err = compileToDefinitions(def.ToAfterKeyUp); err != nil {
		return nil, fmt.Errorf("to_after_key_up: %w", err)
	}
	if def.ToDelayedAction != nil {
		if m.toInvoked, err = compileToDefinitions(def.ToDelayedAction.ToIfInvoked); err != nil {
			return nil, fmt.Errorf("to_delayed_action: %w", err)
		}
		if m.toCanceled, err = compileToDefinitions(def.ToDelayedAction.ToIfCanceled); err != nil {
			return nil, fmt.Errorf("to_delayed_action: %w", err)
		}
	}

	for _, c := range def.Conditions {
		cond, err := CompileCondition(c)
		if err != nil {
			return nil, fmt.Errorf("conditions: %w", err)
		}
		m.conditions = append(m.conditions, cond)
	}

	return m, nil
}

// Description returns the rule author's description.
func (m *BasicManipulator) Description() string { return m.description }

// Active implements Manipulator.
func (m *BasicManipulator) Active() bool {
	return len(m.activations) > 0 || m.pending != nil
}

func (m *BasicManipulator) conditionsFulfilled(entry *Entry, env *Environment) bool {
	for _, c := range m.conditions {
		if !c.IsFulfilled(entry, env) {
			return false
		}
	}
	return true
}

// Manipulate implements Manipulator.
func (m *BasicManipulator) Manipulate(entry *Entry, out *Queue, env *Environment) ManipulateResult {
	if !entry.Event.IsKey() {
		return ManipulatePassed
	}

	if entry.EventType == EventTypeKeyDown {
		return m.handleKeyDown(entry, out, env)
	}
	return m.handleKeyUp(entry, out, env)
}

func (m *BasicManipulator) handleKeyDown(entry *Entry, out *Queue, env *Environment) ManipulateResult {
	key, _ := entryFromKey(entry)
	now := entry.EventTimeStamp

	// OS auto-repeat of a key we already translated.
	for _, a := range m.activations {
		if !a.keyUpPosted && a.hasKey(key) {
			entry.Invalidate()
			return ManipulateAbsorbed
		}
	}

	if m.pending != nil {
		return m.handlePendingKeyDown(entry, key, out, env)
	}

	// An unrelated key press ends the alone window and cancels any
	// scheduled delayed actions.
	interrupt := func() {
		m.unsetAlone()
		m.cancelDelayedActions(out, env, now)
	}

	if !m.from.testFromEvent(entry.Event) {
		interrupt()
		return ManipulatePassed
	}

	// For ordered simultaneous groups the first key must be the first
	// (or last, for strict_inverse) descriptor.
	if m.from.simultaneous {
		switch m.from.simultaneousOptions.keyDownOrder {
		case config.KeyOrderStrict:
			if !testEventDescriptor(entry.Event, m.from.events[0]) {
				interrupt()
				return ManipulatePassed
			}
		case config.KeyOrderStrictInverse:
			if !testEventDescriptor(entry.Event, m.from.events[len(m.from.events)-1]) {
				interrupt()
				return ManipulatePassed
			}
		}
	}

	if !m.conditionsFulfilled(entry, env) {
		interrupt()
		return ManipulatePassed
	}

	fromModifiers, ok := m.from.testModifiers(env.FlagManager)
	if !ok {
		interrupt()
		return ManipulatePassed
	}

	if m.from.simultaneous {
		m.pending = &pendingGroup{
			device:                 entry.DeviceID,
			entries:                []*Entry{entry},
			matched:                []int{m.descriptorIndex(entry.Event)},
			fromMandatoryModifiers: fromModifiers,
			start:                  now,
			deadline:               now + m.params.simultaneousThreshold,
		}
		return ManipulateDeferred
	}

	m.unsetAlone()
	m.activate(entry.DeviceID, []fromKey{key}, fromModifiers, now, out, env)
	entry.Invalidate()
	return ManipulateAbsorbed
}

func (m *BasicManipulator) descriptorIndex(event Event) int {
	for i, d := range m.from.events {
		if testEventDescriptor(event, d) {
			return i
		}
	}
	return -1
}

func (m *BasicManipulator) handlePendingKeyDown(entry *Entry, key fromKey, out *Queue, env *Environment) ManipulateResult {
	p := m.pending
	now := entry.EventTimeStamp

	if now >= p.deadline {
		m.abortPending(out, env, now)
		return m.handleKeyDown(entry, out, env)
	}

	idx := m.descriptorIndex(entry.Event)
	already := false
	for _, seen := range p.matched {
		if seen == idx {
			already = true
			break
		}
	}

	if idx >= 0 && already && entry.DeviceID == p.device {
		// Repeat of a member already in the buffer.
		entry.Invalidate()
		return ManipulateAbsorbed
	}

	if idx < 0 || entry.DeviceID != p.device {
		if m.from.simultaneousOptions.detectKeyDownUninterruptedly && idx < 0 {
			// Unrelated keys are tolerated; they pass through while
			// the group keeps accumulating.
			return ManipulatePassed
		}
		m.abortPending(out, env, now)
		m.unsetAlone()
		m.cancelDelayedActions(out, env, now)
		return ManipulatePassed
	}

	p.entries = append(p.entries, entry)
	p.matched = append(p.matched, idx)

	events := make([]Event, 0, len(p.entries))
	for _, e := range p.entries {
		events = append(events, e.Event)
	}
	if !testKeyOrder(events, m.from.simultaneousOptions.keyDownOrder, m.from.events) {
		m.abortPending(out, env, now)
		return ManipulatePassed
	}

	if len(p.entries) == len(m.from.events) {
		// Group complete: absorb every held entry and fire.
		keys := make([]fromKey, 0, len(p.entries))
		for _, e := range p.entries {
			k, _ := entryFromKey(e)
			keys = append(keys, k)
			e.Invalidate()
		}
		m.pending = nil
		m.unsetAlone()
		m.activate(p.device, keys, p.fromMandatoryModifiers, now, out, env)
		return ManipulateDeferred
	}

	return ManipulateDeferred
}

// abortPending reverts a pending group: the held entries are rebuilt
// from their original events and fall through to the output queue at
// the current time.
func (m *BasicManipulator) abortPending(out *Queue, env *Environment, now AbsoluteTime) {
	p := m.pending
	if p == nil {
		return
	}
	m.pending = nil

	reverted := MakeQueue(p.device, p.entries)
	for {
		e := reverted.EraseFront()
		if e == nil {
			break
		}
		if e.EventTimeStamp < now {
			e.EventTimeStamp = now
		}
		out.PushBack(e)
	}

	env.Log().WithField("component", "basic").
		WithField("description", m.description).
		Debug("simultaneous group aborted")
}

func (m *BasicManipulator) handleKeyUp(entry *Entry, out *Queue, env *Environment) ManipulateResult {
	key, _ := entryFromKey(entry)
	now := entry.EventTimeStamp

	// Releasing a member of an incomplete group aborts it.
	if m.pending != nil {
		if idx := m.descriptorIndex(entry.Event); idx >= 0 && entry.DeviceID == m.pending.device {
			m.abortPending(out, env, now)
		}
		return ManipulatePassed
	}

	for i, a := range m.activations {
		if !a.hasKey(key) || a.released[key] {
			continue
		}
		a.released[key] = true
		entry.Invalidate()

		fire := false
		if len(a.keys) == 1 {
			fire = true
		} else if m.from.simultaneousOptions.keyUpWhen == config.KeyUpWhenAny {
			fire = !a.keyUpPosted
		} else {
			fire = a.allReleased() && !a.keyUpPosted
		}

		if fire {
			m.postKeyUpStream(a, out, env, now)
		}

		if a.allReleased() && a.keyUpPosted && a.delayedDeadline == 0 {
			m.activations = append(m.activations[:i], m.activations[i+1:]...)
		}
		return ManipulateAbsorbed
	}

	return ManipulatePassed
}

// activate records a new activation and posts the to stream.
func (m *BasicManipulator) activate(device DeviceID, keys []fromKey, fromModifiers keycode.FlagMask, now AbsoluteTime, out *Queue, env *Environment) {
	a := &activation{
		device:                 device,
		keys:                   keys,
		released:               make(map[fromKey]bool),
		fromMandatoryModifiers: fromModifiers,
		downTime:               now,
		alone:                  true,
	}
	if len(m.toIfHeld) > 0 {
		a.heldDeadline = now + m.params.toIfHeldDownThreshold
	}
	if len(m.toInvoked) > 0 || len(m.toCanceled) > 0 {
		a.delayedDeadline = now + m.params.toDelayedActionDelay
	}
	m.activations = append(m.activations, a)

	m.lowerFromMandatoryModifiers(a, out, now)
	m.postOutputStream(m.to, a, out, now, true)
}

// lowerFromMandatoryModifiers posts lazy key_ups for the consumed
// mandatory modifiers so they disappear from the output state while
// the activation is live.
func (m *BasicManipulator) lowerFromMandatoryModifiers(a *activation, out *Queue, now AbsoluteTime) {
	if a.modifiersLowered {
		return
	}
	a.modifiersLowered = true
	for _, flag := range a.fromMandatoryModifiers.Flags() {
		code, ok := flag.Code()
		if !ok {
			continue
		}
		e := out.PushBackEvent(a.device, now, NewKeyEvent(keycode.ClassKey, code), EventTypeKeyUp)
		e.Lazy = true
	}
}

// raiseFromMandatoryModifiers restores the consumed modifiers with
// lazy key_downs; the next non-lazy frame re-asserts them.
func (m *BasicManipulator) raiseFromMandatoryModifiers(a *activation, out *Queue, now AbsoluteTime) {
	if !a.modifiersLowered {
		return
	}
	a.modifiersLowered = false
	for _, flag := range a.fromMandatoryModifiers.Flags() {
		code, ok := flag.Code()
		if !ok {
			continue
		}
		e := out.PushBackEvent(a.device, now, NewKeyEvent(keycode.ClassKey, code), EventTypeKeyDown)
		e.Lazy = true
	}
}

// postOutputStream posts a to-style definition list.  Key entries are
// tapped (down then up), except that when holdLast is set and the
// list's final entry is a key, that key stays down until the from
// trigger releases.
func (m *BasicManipulator) postOutputStream(defs []toEventDefinition, a *activation, out *Queue, now AbsoluteTime, holdLast bool) {
	for i := range defs {
		def := &defs[i]
		event, isKey := def.makeEvent()

		if !isKey {
			out.PushBackEvent(a.device, now, event, EventTypeSingle)
			continue
		}

		m.postModifiers(def.modifiers, a.device, out, now, EventTypeKeyDown)
		down := out.PushBackEvent(a.device, now, event, EventTypeKeyDown)
		down.Lazy = def.lazy

		if holdLast && i == len(defs)-1 {
			a.held = append(a.held, heldOutput{event: event, modifiers: def.modifiers, lazy: def.lazy})
			if def.halt {
				a.halted = true
			}
			continue
		}

		up := out.PushBackEvent(a.device, now, event, EventTypeKeyUp)
		up.Lazy = def.lazy
		m.postModifiers(def.modifiers, a.device, out, now, EventTypeKeyUp)
	}
}

func (m *BasicManipulator) postModifiers(flags []keycode.ModifierFlag, device DeviceID, out *Queue, now AbsoluteTime, eventType EventType) {
	ordered := flags
	if eventType == EventTypeKeyUp {
		ordered = make([]keycode.ModifierFlag, len(flags))
		for i, f := range flags {
			ordered[len(flags)-1-i] = f
		}
	}
	for _, f := range ordered {
		code, ok := f.Code()
		if !ok {
			continue
		}
		e := out.PushBackEvent(device, now, NewKeyEvent(keycode.ClassKey, code), eventType)
		e.Lazy = true
	}
}

// postKeyUpStream retires an activation's to stream: held keys come
// up, consumed modifiers come back, then alone and after-key-up fire
// in that order.
func (m *BasicManipulator) postKeyUpStream(a *activation, out *Queue, env *Environment, now AbsoluteTime) {
	if a.keyUpPosted {
		return
	}
	a.keyUpPosted = true

	for _, h := range a.held {
		class, code, _ := h.event.Key()
		up := out.PushBackEvent(a.device, now, NewKeyEvent(class, code), EventTypeKeyUp)
		up.Lazy = h.lazy
		m.postModifiers(h.modifiers, a.device, out, now, EventTypeKeyUp)
	}
	a.held = nil

	m.raiseFromMandatoryModifiers(a, out, now)

	if a.alone && !a.heldFired && !a.halted &&
		now-a.downTime < m.params.toIfAloneTimeout && len(m.toIfAlone) > 0 {
		m.postTapStream(m.toIfAlone, a, out, now)
	}

	if len(a.keys) > 1 && len(m.from.simultaneousOptions.toAfterKeyUp) > 0 {
		m.postTapStream(m.from.simultaneousOptions.toAfterKeyUp, a, out, now)
	}
	if len(m.toAfterUp) > 0 {
		m.postTapStream(m.toAfterUp, a, out, now)
	}
}

// postTapStream posts each definition as a brief synthetic tap,
// spacing the events with the queue's time-stamp delay.
func (m *BasicManipulator) postTapStream(defs []toEventDefinition, a *activation, out *Queue, now AbsoluteTime) {
	for i := range defs {
		def := &defs[i]
		event, isKey := def.makeEvent()

		if !isKey {
			out.IncreaseTimeStampDelay(m.params.toIfAloneInterval)
			out.PushBackEvent(a.device, now, event, EventTypeSingle)
			continue
		}

		m.postModifiers(def.modifiers, a.device, out, now, EventTypeKeyDown)
		out.IncreaseTimeStampDelay(m.params.toIfAloneInterval)
		down := out.PushBackEvent(a.device, now, event, EventTypeKeyDown)
		down.Lazy = def.lazy
		out.IncreaseTimeStampDelay(m.params.toIfAloneInterval)
		up := out.PushBackEvent(a.device, now, event, EventTypeKeyUp)
		up.Lazy = def.lazy
		m.postModifiers(def.modifiers, a.device, out, now, EventTypeKeyUp)
	}
}

func (m *BasicManipulator) unsetAlone() {
	for _, a := range m.activations {
		a.alone = false
	}
}

func (m *BasicManipulator) cancelDelayedActions(out *Queue, env *Environment, now AbsoluteTime) {
	for _, a := range m.activations {
		if a.delayedDeadline == 0 {
			continue
		}
		a.delayedDeadline = 0
		if len(m.toCanceled) > 0 {
			m.postTapStream(m.toCanceled, a, out, now)
		}
	}
	m.gc()
}

// gc drops activations with no remaining obligations.
func (m *BasicManipulator) gc() {
	kept := m.activations[:0]
	for _, a := range m.activations {
		if a.keyUpPosted && a.allReleased() && a.delayedDeadline == 0 {
			continue
		}
		kept = append(kept, a)
	}
	m.activations = kept
}

// NextDeadline implements Manipulator.
func (m *BasicManipulator) NextDeadline() (AbsoluteTime, bool) {
	var min AbsoluteTime
	found := false
	consider := func(t AbsoluteTime) {
		if t == 0 {
			return
		}
		if !found || t < min {
			min = t
			found = true
		}
	}
	if m.pending != nil {
		consider(m.pending.deadline)
	}
	for _, a := range m.activations {
		if !a.keyUpPosted && !a.heldFired {
			consider(a.heldDeadline)
		}
		consider(a.delayedDeadline)
	}
	return min, found
}

// FireTimers implements Manipulator.
func (m *BasicManipulator) FireTimers(now AbsoluteTime, out *Queue, env *Environment) {
	if m.pending != nil && now >= m.pending.deadline {
		m.abortPending(out, env, now)
	}

	for _, a := range m.activations {
		if a.heldDeadline != 0 && !a.heldFired && !a.keyUpPosted && now >= a.heldDeadline {
			a.heldFired = true
			a.alone = false
			m.postOutputStream(m.toIfHeld, a, out, now, true)
		}
		if a.delayedDeadline != 0 && now >= a.delayedDeadline {
			a.delayedDeadline = 0
			if len(m.toInvoked) > 0 {
				m.postTapStream(m.toInvoked, a, out, now)
			}
		}
	}
	m.gc()
}

// HandleDeviceUngrabbed implements Manipulator.
func (m *BasicManipulator) HandleDeviceUngrabbed(device DeviceID, out *Queue, env *Environment, now AbsoluteTime) {
	if m.pending != nil && m.pending.device == device {
		// The device is gone; the held originals are dropped rather
		// than replayed.
		m.pending = nil
	}
	for _, a := range m.activations {
		if a.device != device {
			continue
		}
		a.delayedDeadline = 0
		a.alone = false
		m.postKeyUpStream(a, out, env, now)
		for _, k := range a.keys {
			a.released[k] = true
		}
	}
	m.gc()
}

// ForceTerminate implements Manipulator.
func (m *BasicManipulator) ForceTerminate(out *Queue, env *Environment, now AbsoluteTime) {
	m.abortPending(out, env, now)
	for _, a := range m.activations {
		a.delayedDeadline = 0
		a.alone = false
		m.postKeyUpStream(a, out, env, now)
		for _, k := range a.keys {
			a.released[k] = true
		}
	}
	m.gc()
}

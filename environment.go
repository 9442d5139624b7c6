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
)

// Environment is the shared mutable state visible to every
// manipulator: frontmost application, input source, variables, system
// preferences, virtual-HID readiness, and the modifier flag manager.
// It is owned by the pipeline worker and must never be touched from
// another goroutine.
type Environment struct {
	FlagManager *FlagManager

	frontmostApplication Application
	inputSource          InputSource
	variables            map[string]Variable
	virtualHIDReady      bool
	systemPreferences    SystemPreferences
	currentTime          AbsoluteTime
	devices              map[DeviceID]DeviceProperties

	log *logrus.Logger
}

// DeviceProperties describes a seized device for device_if matching.
type DeviceProperties struct {
	VendorID         uint32
	ProductID        uint32
	IsKeyboard       bool
	IsPointingDevice bool
}

// NewEnvironment makes an environment with an empty flag manager.
// A nil logger falls back to the logrus standard logger.
func NewEnvironment(log *logrus.Logger) *Environment {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Environment{
		FlagManager: NewFlagManager(),
		variables:   make(map[string]Variable),
		devices:     make(map[DeviceID]DeviceProperties),
		log:         log,
	}
}

// RegisterDevice records a device's identifiers for device_if
// conditions.
func (env *Environment) RegisterDevice(id DeviceID, props DeviceProperties) {
	env.devices[id] = props
}

// UnregisterDevice forgets an ungrabbed device.
func (env *Environment) UnregisterDevice(id DeviceID) {
	delete(env.devices, id)
}

// DeviceProperties looks up a registered device.
func (env *Environment) DeviceProperties(id DeviceID) (DeviceProperties, bool) {
	p, ok := env.devices[id]
	return p, ok
}

// Log returns the logger handle shared by the pipeline.
func (env *Environment) Log() *logrus.Logger { return env.log }

// FrontmostApplication returns the current frontmost application.
func (env *Environment) FrontmostApplication() Application { return env.frontmostApplication }

// SetFrontmostApplication updates it.
func (env *Environment) SetFrontmostApplication(app Application) {
	env.frontmostApplication = app
}

// InputSource returns the current input source.
func (env *Environment) InputSource() InputSource { return env.inputSource }

// SetInputSource updates it.
func (env *Environment) SetInputSource(s InputSource) { env.inputSource = s }

// Variable looks up a variable; missing variables read as integer 0,
// matching the condition semantics.
func (env *Environment) Variable(name string) Variable {
	if v, ok := env.variables[name]; ok {
		return v
	}
	return IntVariable(0)
}

// SetVariable assigns a variable.
func (env *Environment) SetVariable(name string, value Variable) {
	env.variables[name] = value
}

// Variables returns a copy of the variable map for the control API.
func (env *Environment) Variables() map[string]Variable {
	out := make(map[string]Variable, len(env.variables))
	for k, v := range env.variables {
		out[k] = v
	}
	return out
}

// VirtualHIDReady reports whether the virtual HID collaborator accepts
// frames.
func (env *Environment) VirtualHIDReady() bool { return env.virtualHIDReady }

// SetVirtualHIDReady updates the readiness flag.
func (env *Environment) SetVirtualHIDReady(ready bool) { env.virtualHIDReady = ready }

// SystemPreferences returns the current snapshot.
func (env *Environment) SystemPreferences() SystemPreferences { return env.systemPreferences }

// SetSystemPreferences replaces the snapshot.
func (env *Environment) SetSystemPreferences(p SystemPreferences) { env.systemPreferences = p }

// CurrentTime is the time of the event being processed; manipulators
// never read the wall clock.
func (env *Environment) CurrentTime() AbsoluteTime { return env.currentTime }

// SetCurrentTime advances the environment clock.  Time never moves
// backwards here; a stale update is ignored.
func (env *Environment) SetCurrentTime(t AbsoluteTime) {
	if t > env.currentTime {
		env.currentTime = t
	}
}

// ApplyEvent folds an environment-mutating event into the state.
// Returns true if the event was an environment event (and therefore
// carries no further pipeline meaning).
func (env *Environment) ApplyEvent(entry *Entry) bool {
	switch entry.Event.Kind() {
	case EventKindFrontmostApplicationChanged:
		env.SetFrontmostApplication(entry.Event.Application())
	case EventKindInputSourceChanged:
		env.SetInputSource(entry.Event.InputSource())
	case EventKindSystemPreferencesPropertiesChanged:
		env.SetSystemPreferences(entry.Event.SystemPreferences())
	case EventKindVirtualHIDDeviceStateChanged:
		env.SetVirtualHIDReady(entry.Event.Bool())
	case EventKindCapsLockStateChanged:
		if entry.Event.Bool() {
			env.FlagManager.PushBackActiveModifierFlag(ActiveModifierFlag{
				Type: ContributorIncreaseLEDLock, Flag: keycode.FlagCapsLock, DeviceID: entry.DeviceID,
			})
		} else {
			env.FlagManager.ErasePressedLEDLock(keycode.FlagCapsLock)
		}
	default:
		return false
	}
	return true
}

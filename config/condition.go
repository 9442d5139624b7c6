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
)

// ConditionKind names the predicate type of a condition definition.
type ConditionKind string

const (
	ConditionFrontmostApplicationIf     ConditionKind = "frontmost_application_if"
	ConditionFrontmostApplicationUnless ConditionKind = "frontmost_application_unless"
	ConditionDeviceIf                   ConditionKind = "device_if"
	ConditionDeviceUnless               ConditionKind = "device_unless"
	ConditionInputSourceIf              ConditionKind = "input_source_if"
	ConditionInputSourceUnless          ConditionKind = "input_source_unless"
	ConditionVariableIf                 ConditionKind = "variable_if"
	ConditionVariableUnless             ConditionKind = "variable_unless"
	ConditionKeyboardTypeIf             ConditionKind = "keyboard_type_if"
	ConditionKeyboardTypeUnless         ConditionKind = "keyboard_type_unless"
	ConditionEventChangedIf             ConditionKind = "event_changed_if"
	ConditionEventChangedUnless         ConditionKind = "event_changed_unless"
)

// Inverted reports whether the kind is an `unless` predicate.
func (k ConditionKind) Inverted() bool {
	switch k {
	case ConditionFrontmostApplicationUnless, ConditionDeviceUnless,
		ConditionInputSourceUnless, ConditionVariableUnless,
		ConditionKeyboardTypeUnless, ConditionEventChangedUnless:
		return true
	}
	return false
}

// DeviceIdentifiers matches a source device.
type DeviceIdentifiers struct {
	VendorID         uint32 `json:"vendor_id,omitempty"`
	ProductID        uint32 `json:"product_id,omitempty"`
	IsKeyboard       *bool  `json:"is_keyboard,omitempty"`
	IsPointingDevice *bool  `json:"is_pointing_device,omitempty"`
}

// ConditionDefinition is the wire form of one condition.
type ConditionDefinition struct {
	Kind        ConditionKind
	Description string

	// frontmost_application_*
	BundleIdentifiers []string
	FilePaths         []string

	// device_*
	Identifiers []DeviceIdentifiers

	// input_source_*
	InputSources []InputSourceSpecifier

	// variable_*
	VariableName  string
	VariableValue VariableValue

	// keyboard_type_*
	KeyboardTypes []string

	// event_changed_*
	EventChangedValue bool
}

// UnmarshalJSON decodes the condition by its `type` key.
func (c *ConditionDefinition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type              ConditionKind          `json:"type"`
		Description       string                 `json:"description"`
		BundleIdentifiers []string               `json:"bundle_identifiers"`
		FilePaths         []string               `json:"file_paths"`
		Identifiers       []DeviceIdentifiers    `json:"identifiers"`
		InputSources      []InputSourceSpecifier `json:"input_sources"`
		Name              string                 `json:"name"`
		Value             *VariableValue         `json:"value"`
		KeyboardTypes     []string               `json:"keyboard_types"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("condition must be object: %w", err)
	}

	c.Kind = raw.Type
	c.Description = raw.Description

	switch raw.Type {
	case ConditionFrontmostApplicationIf, ConditionFrontmostApplicationUnless:
		c.BundleIdentifiers = raw.BundleIdentifiers
		c.FilePaths = raw.FilePaths
		if len(c.BundleIdentifiers) == 0 && len(c.FilePaths) == 0 {
			return fmt.Errorf("`%s` requires bundle_identifiers or file_paths", raw.Type)
		}
	case ConditionDeviceIf, ConditionDeviceUnless:
		c.Identifiers = raw.Identifiers
		if len(c.Identifiers) == 0 {
			return fmt.Errorf("`%s` requires identifiers", raw.Type)
		}
	case ConditionInputSourceIf, ConditionInputSourceUnless:
		c.InputSources = raw.InputSources
		if len(c.InputSources) == 0 {
			return fmt.Errorf("`%s` requires input_sources", raw.Type)
		}
	case ConditionVariableIf, ConditionVariableUnless:
		if raw.Name == "" {
			return fmt.Errorf("`%s` requires a name", raw.Type)
		}
		c.VariableName = raw.Name
		if raw.Value != nil {
			c.VariableValue = *raw.Value
		}
	case ConditionKeyboardTypeIf, ConditionKeyboardTypeUnless:
		c.KeyboardTypes = raw.KeyboardTypes
		if len(c.KeyboardTypes) == 0 {
			return fmt.Errorf("`%s` requires keyboard_types", raw.Type)
		}
	case ConditionEventChangedIf, ConditionEventChangedUnless:
		if raw.Value == nil {
			return fmt.Errorf("`%s` requires a value", raw.Type)
		}
		c.EventChangedValue = raw.Value.Int != 0
	default:
		return fmt.Errorf("unknown condition type `%s`", raw.Type)
	}
	return nil
}

// MarshalJSON re-emits the condition object.
func (c ConditionDefinition) MarshalJSON() ([]byte, error) {
	obj := map[string]interface{}{"type": c.Kind}
	if c.Description != "" {
		obj["description"] = c.Description
	}
	switch c.Kind {
	case ConditionFrontmostApplicationIf, ConditionFrontmostApplicationUnless:
		if len(c.BundleIdentifiers) > 0 {
			obj["bundle_identifiers"] = c.BundleIdentifiers
		}
		if len(c.FilePaths) > 0 {
			obj["file_paths"] = c.FilePaths
		}
	case ConditionDeviceIf, ConditionDeviceUnless:
		obj["identifiers"] = c.Identifiers
	case ConditionInputSourceIf, ConditionInputSourceUnless:
		obj["input_sources"] = c.InputSources
	case ConditionVariableIf, ConditionVariableUnless:
		obj["name"] = c.VariableName
		obj["value"] = c.VariableValue
	case ConditionKeyboardTypeIf, ConditionKeyboardTypeUnless:
		obj["keyboard_types"] = c.KeyboardTypes
	case ConditionEventChangedIf, ConditionEventChangedUnless:
		obj["value"] = c.EventChangedValue
	}
	return json.Marshal(obj)
}

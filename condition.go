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
	"regexp"

	"github.com/hidtools/remapd/config"
)

// Condition is a compiled predicate over the environment and the
// triggering entry.  Every condition of a manipulator must hold for it
// to activate; activations then persist independently of later
// environment changes.
type Condition interface {
	IsFulfilled(entry *Entry, env *Environment) bool
}

// CompileCondition turns a decoded condition definition into a
// predicate, compiling its regular expressions.
func CompileCondition(def config.ConditionDefinition) (Condition, error) {
	inverted := def.Kind.Inverted()

	switch def.Kind {
	case config.ConditionFrontmostApplicationIf, config.ConditionFrontmostApplicationUnless:
		bundles, err := compileRegexps(def.BundleIdentifiers)
		if err != nil {
			return nil, fmt.Errorf("bundle_identifiers: %w", err)
		}
		paths, err := compileRegexps(def.FilePaths)
		if err != nil {
			return nil, fmt.Errorf("file_paths: %w", err)
		}
		return &frontmostApplicationCondition{inverted: inverted, bundles: bundles, paths: paths}, nil

	case config.ConditionDeviceIf, config.ConditionDeviceUnless:
		return &deviceCondition{inverted: inverted, identifiers: def.Identifiers}, nil

	case config.ConditionInputSourceIf, config.ConditionInputSourceUnless:
		specs := make([]inputSourceMatcher, 0, len(def.InputSources))
		for _, s := range def.InputSources {
			m, err := compileInputSourceMatcher(s)
			if err != nil {
				return nil, fmt.Errorf("input_sources: %w", err)
			}
			specs = append(specs, m)
		}
		return &inputSourceCondition{inverted: inverted, matchers: specs}, nil

	case config.ConditionVariableIf, config.ConditionVariableUnless:
		value := IntVariable(def.VariableValue.Int)
		if def.VariableValue.IsString {
			value = StringVariable(def.VariableValue.Str)
		}
		return &variableCondition{inverted: inverted, name: def.VariableName, value: value}, nil

	case config.ConditionKeyboardTypeIf, config.ConditionKeyboardTypeUnless:
		return &keyboardTypeCondition{inverted: inverted, types: def.KeyboardTypes}, nil

	case config.ConditionEventChangedIf, config.ConditionEventChangedUnless:
		return &eventChangedCondition{inverted: inverted, value: def.EventChangedValue}, nil
	}

	return nil, fmt.Errorf("unknown condition type `%s`", def.Kind)
}

func compileRegexps(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		res = append(res, re)
	}
	return res, nil
}

type frontmostApplicationCondition struct {
	inverted bool
	bundles  []*regexp.Regexp
	paths    []*regexp.Regexp
}

func (c *frontmostApplicationCondition) IsFulfilled(_ *Entry, env *Environment) bool {
	app := env.FrontmostApplication()
	matched := false
	for _, re := range c.bundles {
		if re.MatchString(app.BundleID) {
			matched = true
			break
		}
	}
	if !matched {
		for _, re := range c.paths {
			if re.MatchString(app.FilePath) {
				matched = true
				break
			}
		}
	}
	return matched != c.inverted
}

type deviceCondition struct {
	inverted    bool
	identifiers []config.DeviceIdentifiers
}

func (c *deviceCondition) IsFulfilled(entry *Entry, env *Environment) bool {
	props, ok := env.DeviceProperties(entry.DeviceID)
	matched := false
	if ok {
		for _, id := range c.identifiers {
			if id.VendorID != 0 && id.VendorID != props.VendorID {
				continue
			}
			if id.ProductID != 0 && id.ProductID != props.ProductID {
				continue
			}
			if id.IsKeyboard != nil && *id.IsKeyboard != props.IsKeyboard {
				continue
			}
			if id.IsPointingDevice != nil && *id.IsPointingDevice != props.IsPointingDevice {
				continue
			}
			matched = true
			break
		}
	}
	return matched != c.inverted
}

type inputSourceMatcher struct {
	language      *regexp.Regexp
	inputSourceID *regexp.Regexp
	inputModeID   *regexp.Regexp
}

func compileInputSourceMatcher(s config.InputSourceSpecifier) (inputSourceMatcher, error) {
	var m inputSourceMatcher
	var err error
	if s.Language != "" {
		if m.language, err = regexp.Compile(s.Language); err != nil {
			return m, err
		}
	}
	if s.InputSourceID != "" {
		if m.inputSourceID, err = regexp.Compile(s.InputSourceID); err != nil {
			return m, err
		}
	}
	if s.InputModeID != "" {
		if m.inputModeID, err = regexp.Compile(s.InputModeID); err != nil {
			return m, err
		}
	}
	return m, nil
}

func (m inputSourceMatcher) matches(s InputSource) bool {
	if m.language != nil && !m.language.MatchString(s.Language) {
		return false
	}
	if m.inputSourceID != nil && !m.inputSourceID.MatchString(s.InputSourceID) {
		return false
	}
	if m.inputModeID != nil && !m.inputModeID.MatchString(s.InputModeID) {
		return false
	}
	return true
}

type inputSourceCondition struct {
	inverted bool
	matchers []inputSourceMatcher
}

func (c *inputSourceCondition) IsFulfilled(_ *Entry, env *Environment) bool {
	matched := false
	for _, m := range c.matchers {
		if m.matches(env.InputSource()) {
			matched = true
			break
		}
	}
	return matched != c.inverted
}

type variableCondition struct {
	inverted bool
	name     string
	value    Variable
}

func (c *variableCondition) IsFulfilled(_ *Entry, env *Environment) bool {
	return env.Variable(c.name).Equal(c.value) != c.inverted
}

type keyboardTypeCondition struct {
	inverted bool
	types    []string
}

func (c *keyboardTypeCondition) IsFulfilled(_ *Entry, env *Environment) bool {
	matched := false
	for _, t := range c.types {
		if t == env.SystemPreferences().KeyboardType {
			matched = true
			break
		}
	}
	return matched != c.inverted
}

type eventChangedCondition struct {
	inverted bool
	value    bool
}

// event_changed distinguishes events a prior manipulator already
// rewrote from untouched ones.
func (c *eventChangedCondition) IsFulfilled(entry *Entry, _ *Environment) bool {
	changed := entry.Event.Kind() != entry.OriginalEvent.Kind() ||
		(entry.Event.IsKey() && !entry.Event.SameKey(entry.OriginalEvent))
	return (changed == c.value) != c.inverted
}

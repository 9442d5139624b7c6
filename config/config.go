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

// Package config holds the parsed configuration consumed by the
// remapping core: profiles, complex-modification rules, and their
// manipulator definitions, plus the daemon's own settings file.  The
// core never looks at the files on disk; it receives the decoded form.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CoreConfiguration is the root of the parsed configuration: an
// ordered list of profiles with exactly one selected.
type CoreConfiguration struct {
	Profiles []Profile `json:"profiles"`
}

// Profile is an ordered ruleset plus parameters.
type Profile struct {
	Name                 string               `json:"name"`
	Selected             bool                 `json:"selected"`
	ComplexModifications ComplexModifications `json:"complex_modifications"`
}

// ComplexModifications carries a profile's rules and the global
// parameter defaults.
type ComplexModifications struct {
	Parameters Parameters `json:"parameters"`
	Rules      []Rule     `json:"rules"`
}

// Rule is an ordered list of manipulator definitions.  Manipulators
// that fail to decode are skipped, not fatal: their errors are kept in
// DecodeErrors for the core to log, and the rest of the rule loads.
type Rule struct {
	Description  string        `json:"description,omitempty"`
	Manipulators []Manipulator `json:"manipulators"`

	DecodeErrors []string `json:"-"`
}

// UnmarshalJSON decodes the rule, tolerating bad manipulators.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw struct {
		Description  string            `json:"description"`
		Manipulators []json.RawMessage `json:"manipulators"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Description = raw.Description
	r.Manipulators = nil
	r.DecodeErrors = nil
	for i, m := range raw.Manipulators {
		var manipulator Manipulator
		if err := json.Unmarshal(m, &manipulator); err != nil {
			r.DecodeErrors = append(r.DecodeErrors,
				fmt.Sprintf("manipulator %d: %v", i, err))
			continue
		}
		r.Manipulators = append(r.Manipulators, manipulator)
	}
	return nil
}

// SelectedProfile returns the selected profile, falling back to the
// first one when none is marked.
func (c *CoreConfiguration) SelectedProfile() *Profile {
	for i := range c.Profiles {
		if c.Profiles[i].Selected {
			return &c.Profiles[i]
		}
	}
	if len(c.Profiles) > 0 {
		return &c.Profiles[0]
	}
	return nil
}

// ProfileByName finds a profile.
func (c *CoreConfiguration) ProfileByName(name string) *Profile {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i]
		}
	}
	return nil
}

// SelectProfile marks the named profile selected and unmarks the rest.
func (c *CoreConfiguration) SelectProfile(name string) bool {
	target := c.ProfileByName(name)
	if target == nil {
		return false
	}
	for i := range c.Profiles {
		c.Profiles[i].Selected = false
	}
	target.Selected = true
	return true
}

// DefaultConfiguration returns an empty configuration with one
// selected profile, so the pipeline can run before any file exists.
func DefaultConfiguration() *CoreConfiguration {
	return &CoreConfiguration{
		Profiles: []Profile{{Name: "Default profile", Selected: true}},
	}
}

// Load reads a configuration from the given path, or searches the
// default locations when path is empty.
func Load(path string) (*CoreConfiguration, error) {
	if path != "" {
		return loadFromFile(path)
	}

	for _, p := range searchPaths() {
		if _, err := os.Stat(p); err == nil {
			return loadFromFile(p)
		}
	}

	return DefaultConfiguration(), nil
}

func searchPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "remapd", "remapd.json"))
	}
	paths = append(paths, "/etc/remapd/remapd.json")
	return paths
}

func loadFromFile(path string) (*CoreConfiguration, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	var cfg CoreConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %s: %w", path, err)
	}

	if len(cfg.Profiles) == 0 {
		cfg.Profiles = DefaultConfiguration().Profiles
	}
	return &cfg, nil
}

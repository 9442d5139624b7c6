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
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings is the daemon's own process configuration, distinct from
// the remapping profiles: where the sockets live, how to log, and
// whether the control API runs.
type Settings struct {
	// GrabberSocket is the unix socket the daemon listens on for
	// inbound grabber events.
	GrabberSocket string `yaml:"grabber_socket"`

	// VirtualHIDSocketDir holds one socket per report stream
	// (keyboard, consumer, apple_vendor_top_case,
	// apple_vendor_keyboard, pointing).
	VirtualHIDSocketDir string `yaml:"virtual_hid_socket_dir"`

	// Datagram switches the frame sender to connectionless mode with
	// stream fallback.
	Datagram bool `yaml:"datagram"`

	LogLevel string `yaml:"log_level"`

	API struct {
		Address   string `yaml:"address"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"api"`
}

// DefaultSettings returns the built-in daemon settings.
func DefaultSettings() *Settings {
	s := &Settings{
		GrabberSocket:       "/var/run/remapd/grabber.sock",
		VirtualHIDSocketDir: "/var/run/remapd/vhid",
		LogLevel:            "info",
	}
	s.API.Address = "localhost:18420"
	return s
}

// LoadSettings reads the YAML settings file; a missing file yields
// the defaults.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("config.LoadSettings: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("config.LoadSettings: %s: %w", path, err)
	}
	return s, nil
}

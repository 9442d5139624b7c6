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

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/hidtools/remapd"
	"github.com/hidtools/remapd/keycode"
)

// grabberMessage is one newline-delimited JSON event from the grabber
// process.
type grabberMessage struct {
	Type     string `json:"type"`
	DeviceID uint32 `json:"device_id"`
	TimeNS   uint64 `json:"time_ns"`

	KeyCode         string `json:"key_code,omitempty"`
	ConsumerKeyCode string `json:"consumer_key_code,omitempty"`
	PointingButton  string `json:"pointing_button,omitempty"`

	X               int  `json:"x,omitempty"`
	Y               int  `json:"y,omitempty"`
	VerticalWheel   int  `json:"vertical_wheel,omitempty"`
	HorizontalWheel int  `json:"horizontal_wheel,omitempty"`
	State           bool `json:"state,omitempty"`

	BundleID      string `json:"bundle_id,omitempty"`
	FilePath      string `json:"file_path,omitempty"`
	Language      string `json:"language,omitempty"`
	InputSourceID string `json:"input_source_id,omitempty"`
	InputModeID   string `json:"input_mode_id,omitempty"`

	VendorID         uint32 `json:"vendor_id,omitempty"`
	ProductID        uint32 `json:"product_id,omitempty"`
	IsKeyboard       bool   `json:"is_keyboard,omitempty"`
	IsPointingDevice bool   `json:"is_pointing_device,omitempty"`
}

// grabberListener accepts grabber connections on a unix socket and
// feeds decoded events into the pipeline.
type grabberListener struct {
	listener net.Listener
	pipeline *remapd.Pipeline
	log      *logrus.Entry
}

func newGrabberListener(path string, pipeline *remapd.Pipeline, log *logrus.Logger) (*grabberListener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	// A stale socket from an unclean shutdown blocks the bind.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}

	return &grabberListener{
		listener: l,
		pipeline: pipeline,
		log:      log.WithField("component", "grabber_listener"),
	}, nil
}

// Run accepts connections until the context is canceled.
func (g *grabberListener) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		g.listener.Close()
	}()

	g.log.WithField("socket", g.listener.Addr().String()).Info("listening for grabber events")

	for {
		conn, err := g.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			g.log.WithError(err).Warn("accept failed")
			continue
		}
		go g.serve(ctx, conn)
	}
}

func (g *grabberListener) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		var msg grabberMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			g.log.WithError(err).Warn("bad grabber message")
			continue
		}
		if err := g.dispatch(msg); err != nil {
			g.log.WithError(err).Warn("dropping grabber message")
		}
	}
}

func (g *grabberListener) dispatch(msg grabberMessage) error {
	device := remapd.DeviceID(msg.DeviceID)

	if msg.Type == "device_grabbed" {
		g.pipeline.RegisterDevice(device, remapd.DeviceProperties{
			VendorID:         msg.VendorID,
			ProductID:        msg.ProductID,
			IsKeyboard:       msg.IsKeyboard,
			IsPointingDevice: msg.IsPointingDevice,
		})
		return nil
	}

	event, err := decodeInputEvent(msg)
	if err != nil {
		return err
	}
	return g.pipeline.SubmitEvent(device, msg.TimeNS, event)
}

func decodeInputEvent(msg grabberMessage) (remapd.InputEvent, error) {
	keyOf := func() (keycode.Class, keycode.Code, error) {
		switch {
		case msg.KeyCode != "":
			if code, ok := keycode.KeyFromName(msg.KeyCode); ok {
				return keycode.ClassKey, code, nil
			}
			return 0, 0, fmt.Errorf("unknown key_code %q", msg.KeyCode)
		case msg.ConsumerKeyCode != "":
			if code, ok := keycode.ConsumerKeyFromName(msg.ConsumerKeyCode); ok {
				return keycode.ClassConsumer, code, nil
			}
			return 0, 0, fmt.Errorf("unknown consumer_key_code %q", msg.ConsumerKeyCode)
		case msg.PointingButton != "":
			if code, ok := keycode.PointingButtonFromName(msg.PointingButton); ok {
				return keycode.ClassButton, code, nil
			}
			return 0, 0, fmt.Errorf("unknown pointing_button %q", msg.PointingButton)
		}
		return 0, 0, fmt.Errorf("missing key in %q message", msg.Type)
	}

	switch msg.Type {
	case "key_down":
		class, code, err := keyOf()
		if err != nil {
			return remapd.InputEvent{}, err
		}
		return remapd.KeyDown(class, code), nil

	case "key_up":
		class, code, err := keyOf()
		if err != nil {
			return remapd.InputEvent{}, err
		}
		return remapd.KeyUp(class, code), nil

	case "pointing_motion":
		return remapd.Single(remapd.NewPointingMotionEvent(remapd.PointingMotion{
			X: msg.X, Y: msg.Y,
			VerticalWheel:   msg.VerticalWheel,
			HorizontalWheel: msg.HorizontalWheel,
		})), nil

	case "caps_lock_state_changed":
		return remapd.Single(remapd.NewCapsLockStateChangedEvent(msg.State)), nil

	case "device_ungrabbed":
		return remapd.Single(remapd.NewDeviceUngrabbedEvent()), nil

	case "device_keys_and_pointing_buttons_are_released":
		return remapd.Single(remapd.NewDeviceKeysAndPointingButtonsAreReleasedEvent()), nil

	case "frontmost_application_changed":
		return remapd.Single(remapd.NewFrontmostApplicationChangedEvent(remapd.Application{
			BundleID: msg.BundleID,
			FilePath: msg.FilePath,
		})), nil

	case "input_source_changed":
		return remapd.Single(remapd.NewInputSourceChangedEvent(remapd.InputSource{
			Language:      msg.Language,
			InputSourceID: msg.InputSourceID,
			InputModeID:   msg.InputModeID,
		})), nil

	case "virtual_hid_device_state_changed":
		return remapd.Single(remapd.NewVirtualHIDDeviceStateChangedEvent(msg.State)), nil
	}

	return remapd.InputEvent{}, fmt.Errorf("unknown message type %q", msg.Type)
}

// runShellCommand executes a shell_command to-event via the user's
// shell, detached from the pipeline worker.
func runShellCommand(log *logrus.Logger, command string) {
	go func() {
		cmd := exec.Command("/bin/sh", "-c", command)
		if err := cmd.Run(); err != nil {
			log.WithError(err).WithField("command", command).Warn("shell command failed")
		}
	}()
}

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

// Package remapd is the core of a user-level keyboard and
// pointing-device remapper.  It sits between seized physical HID
// devices and a virtual HID device: a grabber collaborator submits
// raw events through the inbound interface, a time-ordered manipulator
// chain applies the user's complex-modification rules, and a
// post-processor turns the resulting event stream into report frames
// with reconciled modifier state.
//
// The core is single-threaded and cooperative: one pipeline worker
// owns the event queues, the manipulator chain, the modifier flag
// manager, and the environment, and processes each event to
// completion before the next.  Producers only ever touch the
// thread-safe inbound queue.  Timers are virtual, keyed to event
// timestamps rather than the wall clock.
//
// Subpackages: keycode models the code spaces and modifier flags,
// config the parsed profile and rule definitions, virtualhid the
// report frames and their unix-socket sender, mock a recording
// virtual HID device for tests, and api the daemon's HTTP control
// surface.
package remapd

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
	"errors"
	"fmt"
)

var (
	// ErrVirtualHIDUnavailable indicates the virtual HID collaborator
	// is not accepting frames.  Frames are dropped until it signals
	// ready again; the pipeline keeps running.
	ErrVirtualHIDUnavailable = errors.New("virtual hid device unavailable")

	// ErrPipelineStopped indicates an event was submitted after the
	// pipeline worker shut down.
	ErrPipelineStopped = errors.New("pipeline stopped")

	// ErrInboundQueueFull indicates the inbound queue cannot accept
	// more events.  Producers should treat this as fatal backpressure.
	ErrInboundQueueFull = errors.New("inbound event queue full")

	// ErrQueueTimeRegression is an internal invariant violation: code
	// observed event time moving backwards inside a queue.
	ErrQueueTimeRegression = errors.New("event queue time regression")
)

// InvariantError wraps a broken internal invariant.  No function in
// this module returns one, and the pipeline worker does not check for
// it or abort.
type InvariantError struct {
	Op  string
	Err error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation in %s: %v", e.Op, e.Err)
}

func (e *InvariantError) Unwrap() error { return e.Err }

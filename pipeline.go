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
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hidtools/remapd/config"
	"github.com/hidtools/remapd/keycode"
	"github.com/hidtools/remapd/virtualhid"
)

// InputEvent is the inbound interface's event form: the event union
// plus its direction.
type InputEvent struct {
	Event Event
	Type  EventType
}

// KeyDown makes a key-press input event.
func KeyDown(class keycode.Class, code keycode.Code) InputEvent {
	return InputEvent{Event: NewKeyEvent(class, code), Type: EventTypeKeyDown}
}

// KeyUp makes a key-release input event.
func KeyUp(class keycode.Class, code keycode.Code) InputEvent {
	return InputEvent{Event: NewKeyEvent(class, code), Type: EventTypeKeyUp}
}

// Single wraps a non-pair event.
func Single(event Event) InputEvent {
	return InputEvent{Event: event, Type: EventTypeSingle}
}

type inboundMessage struct {
	device DeviceID
	time   AbsoluteTime
	event  InputEvent
}

// Options configure a Pipeline.
type Options struct {
	// Logger is the explicit logging handle; nil uses the logrus
	// standard logger.
	Logger *logrus.Logger

	// Sink receives the report frames.  Required.
	Sink virtualhid.Sink

	// Hooks are the side-effect collaborators.
	Hooks Hooks

	// Configuration is the initial configuration; nil starts with the
	// default empty profile.
	Configuration *config.CoreConfiguration

	// InboundQueueSize bounds the thread-safe inbound queue.
	// Defaults to 1024.
	InboundQueueSize int

	// Clock maps "now" onto the event time scale for OS timer wakes.
	// Producers must stamp events with the same clock.  Defaults to
	// the wall clock in nanoseconds.
	Clock func() AbsoluteTime

	// VirtualHIDReady starts the environment's readiness flag; the
	// mock sink and tests set it true up front.
	VirtualHIDReady bool
}

// Pipeline is the single-threaded cooperative core: one worker owns
// the input queue, the manipulator chain, and the post-processor, and
// processes one event to completion before the next.  External
// collaborators hand events in through the inbound queue.
type Pipeline struct {
	opts  Options
	log   *logrus.Entry
	env   *Environment
	chain *Chain
	post  *PostProcessor
	cfg   *config.CoreConfiguration

	inbound chan inboundMessage
	control chan func()
	stopCh  chan struct{}
	doneCh  chan struct{}
	stop    sync.Once

	modifierSnapshot atomic.Uint32
}

// NewPipeline builds a pipeline; Start runs it.
func NewPipeline(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.InboundQueueSize == 0 {
		opts.InboundQueueSize = 1024
	}
	if opts.Clock == nil {
		opts.Clock = func() AbsoluteTime { return AbsoluteTime(time.Now().UnixNano()) }
	}
	if opts.Configuration == nil {
		opts.Configuration = config.DefaultConfiguration()
	}

	env := NewEnvironment(opts.Logger)
	env.SetVirtualHIDReady(opts.VirtualHIDReady)

	p := &Pipeline{
		opts:    opts,
		log:     opts.Logger.WithField("component", "pipeline"),
		env:     env,
		cfg:     opts.Configuration,
		inbound: make(chan inboundMessage, opts.InboundQueueSize),
		control: make(chan func()),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	p.chain = NewChain(p.cfg.SelectedProfile(), env)
	p.post = NewPostProcessor(env, opts.Sink, opts.Hooks)
	return p
}

// Start launches the pipeline worker.
func (p *Pipeline) Start() {
	go p.run()
}

// Stop terminates the worker after the current event completes.
func (p *Pipeline) Stop() {
	p.stop.Do(func() { close(p.stopCh) })
	<-p.doneCh
}

// SubmitEvent hands one event to the pipeline.  It is safe to call
// from any goroutine.  The returned error is ErrInboundQueueFull when
// the producer outruns the worker, or ErrPipelineStopped.
func (p *Pipeline) SubmitEvent(device DeviceID, timeNS uint64, event InputEvent) error {
	select {
	case <-p.stopCh:
		return ErrPipelineStopped
	default:
	}
	select {
	case p.inbound <- inboundMessage{device: device, time: AbsoluteTime(timeNS), event: event}:
		return nil
	default:
		return ErrInboundQueueFull
	}
}

// SubmitEvents submits a batch in order.
func (p *Pipeline) SubmitEvents(device DeviceID, timeNS uint64, events []InputEvent) error {
	for _, e := range events {
		if err := p.SubmitEvent(device, timeNS, e); err != nil {
			return err
		}
	}
	return nil
}

// ModifierSnapshot returns the current modifier set for the event-tap
// collaborator to stamp onto observed mouse events.  Safe to call
// from any goroutine.
func (p *Pipeline) ModifierSnapshot() keycode.FlagMask {
	return keycode.FlagMask(p.modifierSnapshot.Load())
}

// SetConfiguration swaps in a new configuration: live activations are
// force-terminated, then the chain is rebuilt from the selected
// profile.  Blocks until the worker applies it.
func (p *Pipeline) SetConfiguration(cfg *config.CoreConfiguration) {
	p.do(func() {
		p.cfg = cfg
		p.rebuildChain()
	})
}

// SelectProfile switches the active profile by name.  Returns false
// when no such profile exists.
func (p *Pipeline) SelectProfile(name string) bool {
	ok := false
	p.do(func() {
		if p.cfg.SelectProfile(name) {
			ok = true
			p.rebuildChain()
		}
	})
	return ok
}

// RegisterDevice records device identifiers for device_if conditions.
func (p *Pipeline) RegisterDevice(id DeviceID, props DeviceProperties) {
	p.do(func() { p.env.RegisterDevice(id, props) })
}

// Status is a snapshot for the control API.
type Status struct {
	Profile         string
	VirtualHIDReady bool
	Variables       map[string]Variable
	Modifiers       []string
	ChainActive     bool
}

// Snapshot returns the pipeline status.  Blocks until the worker is
// between events.
func (p *Pipeline) Snapshot() Status {
	var s Status
	p.do(func() {
		if profile := p.cfg.SelectedProfile(); profile != nil {
			s.Profile = profile.Name
		}
		s.VirtualHIDReady = p.env.VirtualHIDReady()
		s.Variables = p.env.Variables()
		s.ChainActive = p.chain.Active()
		for _, f := range p.env.FlagManager.MakeModifierFlags().Flags() {
			s.Modifiers = append(s.Modifiers, f.String())
		}
	})
	return s
}

// do runs fn on the pipeline worker and waits for it.
func (p *Pipeline) do(fn func()) {
	done := make(chan struct{})
	select {
	case p.control <- func() { fn(); close(done) }:
		<-done
	case <-p.stopCh:
	}
}

func (p *Pipeline) rebuildChain() {
	now := p.env.CurrentTime()
	p.chain.ForceTerminate(now)
	p.post.Drain(p.chain.Output())
	p.chain = NewChain(p.cfg.SelectedProfile(), p.env)
	p.updateModifierSnapshot()
}

func (p *Pipeline) run() {
	defer close(p.doneCh)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	timerArmed := false
	var timerDeadline AbsoluteTime

	arm := func() {
		deadline, ok := p.chain.NextDeadline()
		if !ok {
			if timerArmed {
				timer.Stop()
				timerArmed = false
			}
			return
		}
		if timerArmed && timerDeadline == deadline {
			return
		}
		now := p.opts.Clock()
		delay := time.Duration(0)
		if deadline > now {
			delay = time.Duration(deadline - now)
		}
		if timerArmed {
			timer.Stop()
		}
		timer.Reset(delay)
		timerArmed = true
		timerDeadline = deadline
	}

	for {
		select {
		case <-p.stopCh:
			return

		case fn := <-p.control:
			fn()
			arm()

		case msg := <-p.inbound:
			p.processInbound(msg)
			arm()

		case <-timer.C:
			timerArmed = false
			now := timerDeadline
			if clock := p.opts.Clock(); clock > now {
				now = clock
			}
			p.fireTimers(now)
			arm()
		}
	}
}

// processInbound runs one full pass: append to the input queue, run
// the chain, fire overdue virtual timers, and drain frames.
func (p *Pipeline) processInbound(msg inboundMessage) {
	entry := p.chain.Input().PushBackEvent(msg.device, msg.time, msg.event.Event, msg.event.Type)
	p.env.SetCurrentTime(entry.EventTimeStamp)

	if p.env.ApplyEvent(entry) {
		// Environment events mutate state and end there.
		p.chain.Input().EraseFront()
		p.updateModifierSnapshot()
		return
	}

	p.chain.RunPass()
	p.drainDueTimers()
	p.post.Drain(p.chain.Output())
	p.updateModifierSnapshot()
}

// fireTimers handles an OS timer wake: virtual time catches up to the
// deadline even though no event arrived.
func (p *Pipeline) fireTimers(now AbsoluteTime) {
	p.env.SetCurrentTime(now)
	p.chain.FireTimers(p.env.CurrentTime())
	p.drainDueTimers()
	p.post.Drain(p.chain.Output())
	p.updateModifierSnapshot()
}

// drainDueTimers fires any virtual timer whose deadline is not in the
// future of the pass time; firing can schedule more work, so loop.
func (p *Pipeline) drainDueTimers() {
	for {
		deadline, ok := p.chain.NextDeadline()
		if !ok || deadline > p.env.CurrentTime() {
			return
		}
		p.chain.FireTimers(p.env.CurrentTime())
	}
}

func (p *Pipeline) updateModifierSnapshot() {
	p.modifierSnapshot.Store(uint32(p.env.FlagManager.MakeModifierFlags()))
}

// Environment exposes the worker-owned environment for tests; it must
// only be touched while the worker is not running.
func (p *Pipeline) Environment() *Environment { return p.env }

// Chain exposes the current chain for tests.
func (p *Pipeline) Chain() *Chain { return p.chain }

// PostProcessor exposes the post-processor for tests.
func (p *Pipeline) PostProcessor() *PostProcessor { return p.post }

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

	"github.com/hidtools/remapd/config"
)

// stage couples one manipulator with its private output queue; the
// queue doubles as the next stage's input.
type stage struct {
	manipulator Manipulator
	output      *Queue
}

// Chain owns the ordered manipulator list and brokers event flow from
// the input queue to the chain output queue.  Manipulators are held in
// an arena addressed by index; they never reference the chain back.
type Chain struct {
	input  *Queue
	stages []*stage
	env    *Environment
	log    *logrus.Entry
	timers timers
}

// NewChain builds a chain from the selected profile.  Manipulators
// that fail to compile are skipped with a log line; the rest of the
// profile loads.
func NewChain(profile *config.Profile, env *Environment) *Chain {
	c := &Chain{
		input: NewQueue(),
		env:   env,
		log:   env.Log().WithField("component", "chain"),
	}

	if profile == nil {
		return c
	}

	params := profile.ComplexModifications.Parameters
	for ri, rule := range profile.ComplexModifications.Rules {
		for _, msg := range rule.DecodeErrors {
			c.log.WithField("rule", ri).Warn("skipping manipulator: ", msg)
		}
		for mi, def := range rule.Manipulators {
			m, err := NewBasicManipulator(def, params)
			if err != nil {
				c.log.WithField("rule", ri).WithField("manipulator", mi).
					WithError(err).Warn("skipping manipulator")
				continue
			}
			c.stages = append(c.stages, &stage{manipulator: m, output: NewQueue()})
		}
	}

	c.log.WithField("manipulators", len(c.stages)).Info("chain built")
	return c
}

// Input returns the chain's input queue; the pipeline appends inbound
// entries to it.
func (c *Chain) Input() *Queue { return c.input }

// Output returns the queue the post-processor drains.  With no
// manipulators it is the input queue itself.
func (c *Chain) Output() *Queue {
	if len(c.stages) == 0 {
		return c.input
	}
	return c.stages[len(c.stages)-1].output
}

// RunPass drains the input queue through every stage in order.  The
// environment clock is advanced as entries are consumed.  Any virtual
// timer whose deadline the pass time has already reached fires as
// part of the pass.
func (c *Chain) RunPass() {
	in := c.input
	for _, st := range c.stages {
		c.runStage(st, in)
		in = st.output
	}
	c.timers.rebuild(c.stages)
}

func (c *Chain) runStage(st *stage, in *Queue) {
	for {
		entry := in.EraseFront()
		if entry == nil {
			return
		}

		c.env.SetCurrentTime(entry.EventTimeStamp)

		// Timers scheduled by this manipulator fire before any entry
		// whose timestamp has passed their deadline.
		if deadline, ok := st.manipulator.NextDeadline(); ok && entry.EventTimeStamp >= deadline {
			st.manipulator.FireTimers(entry.EventTimeStamp, st.output, c.env)
		}

		switch entry.Event.Kind() {
		case EventKindDeviceUngrabbed:
			st.manipulator.HandleDeviceUngrabbed(entry.DeviceID, st.output, c.env, entry.EventTimeStamp)
			st.output.PushBack(entry)
			continue
		case EventKindDeviceKeysAndPointingButtonsAreReleased:
			st.manipulator.ForceTerminate(st.output, c.env, entry.EventTimeStamp)
			st.output.PushBack(entry)
			continue
		}

		if !entry.Valid() {
			st.output.PushBack(entry)
			continue
		}

		switch st.manipulator.Manipulate(entry, st.output, c.env) {
		case ManipulatePassed, ManipulateAbsorbed:
			st.output.PushBack(entry)
		case ManipulateDeferred:
			// Held in the manipulator's pending buffer.
		}
	}
}

// FireTimers runs every due virtual timer at the given time, in
// deadline order, and lets any produced events flow through the rest
// of the chain.
func (c *Chain) FireTimers(now AbsoluteTime) {
	c.env.SetCurrentTime(now)
	for _, i := range c.timers.popDue(now) {
		st := c.stages[i]
		if deadline, ok := st.manipulator.NextDeadline(); ok && now >= deadline {
			st.manipulator.FireTimers(now, st.output, c.env)
			c.flowFrom(i + 1)
		}
	}
	c.timers.rebuild(c.stages)
}

// flowFrom pushes queued entries from stage i onward, so timer-posted
// events pass the downstream manipulators like any others.
func (c *Chain) flowFrom(i int) {
	for ; i < len(c.stages); i++ {
		c.runStage(c.stages[i], c.stages[i-1].output)
	}
}

// NextDeadline returns the earliest pending virtual-timer deadline
// across all manipulators.
func (c *Chain) NextDeadline() (AbsoluteTime, bool) {
	return c.timers.next()
}

// Active reports whether any manipulator has lingering state.
func (c *Chain) Active() bool {
	for _, st := range c.stages {
		if st.manipulator.Active() {
			return true
		}
	}
	return false
}

// ForceTerminate force-completes every live activation, in chain
// order, with the given event time.  Used on profile reload.
func (c *Chain) ForceTerminate(now AbsoluteTime) {
	for i, st := range c.stages {
		if st.manipulator.Active() {
			st.manipulator.ForceTerminate(st.output, c.env, now)
			c.flowFrom(i + 1)
		}
	}
	c.timers.rebuild(c.stages)
}

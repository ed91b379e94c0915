// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package engine wires together discovery, the endpoint engines, and
// the transport layer into the running participant described by spec
// §5: one goroutine owns the HistoryCache-touching call path, a second
// owns Discovery, and named timers drive the periodic effects in the
// concurrency table (SPDP announce, participant lease, writer
// heartbeat, NACK-response, heartbeat-response, and the two liveliness
// timers).
package engine

import (
	"reflect"
	"time"
)

// timerSlot is one entry of a Scheduler's timer set: a recurring or
// one-shot deadline with the callback to run when it fires.
type timerSlot struct {
	name      string
	interval  time.Duration
	recurring bool
	timer     *time.Timer
	fire      func(now time.Time)
}

// Scheduler multiplexes every named timer spec §5 assigns to a single
// owning goroutine onto one dynamic select, via reflect.Select — the
// timer set changes at runtime as proxies are matched and repaired (a
// fixed-arity select, as rs-rtps's mio Poll uses for its fixed socket
// set, doesn't fit a set of timers that grows and shrinks per matched
// reader/writer).
type Scheduler struct {
	slots []*timerSlot
}

// NewScheduler returns an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Every registers a recurring timer firing every interval, starting one
// interval from now.
func (s *Scheduler) Every(name string, interval time.Duration, fire func(now time.Time)) {
	s.slots = append(s.slots, &timerSlot{
		name:      name,
		interval:  interval,
		recurring: true,
		timer:     time.NewTimer(interval),
		fire:      fire,
	})
}

// After registers a one-shot timer firing once after interval; it is
// removed from the Scheduler once it fires. Used for nack_response_delay
// and heartbeat_response_delay, which are armed per-event rather than
// running continuously (spec §5).
func (s *Scheduler) After(name string, interval time.Duration, fire func(now time.Time)) {
	s.slots = append(s.slots, &timerSlot{
		name:      name,
		interval:  interval,
		recurring: false,
		timer:     time.NewTimer(interval),
		fire:      fire,
	})
}

// Cancel stops and removes every timer registered under name, a no-op
// if none is pending (e.g. an ACKNACK arriving for a reader with no
// outstanding repair).
func (s *Scheduler) Cancel(name string) {
	kept := s.slots[:0]
	for _, slot := range s.slots {
		if slot.name == name {
			slot.timer.Stop()
			continue
		}
		kept = append(kept, slot)
	}
	s.slots = kept
}

// Empty reports whether no timers are registered.
func (s *Scheduler) Empty() bool { return len(s.slots) == 0 }

// NumSlots returns the current number of registered timers, for a
// caller composing its own reflect.Select across this Scheduler's
// timers alongside other event sources (see eventLoop.run).
func (s *Scheduler) NumSlots() int { return len(s.slots) }

// SlotCase returns the i-th timer's receive case.
func (s *Scheduler) SlotCase(i int) reflect.SelectCase {
	return reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.slots[i].timer.C)}
}

// FireSlot runs the i-th timer's callback with the fired time recv,
// rescheduling it if recurring or dropping it from the slot list
// otherwise.
func (s *Scheduler) FireSlot(i int, recv reflect.Value) {
	if i < 0 || i >= len(s.slots) {
		return
	}
	now := recv.Interface().(time.Time)
	slot := s.slots[i]
	slot.fire(now)
	if slot.recurring {
		slot.timer.Reset(slot.interval)
	} else {
		s.slots = append(s.slots[:i], s.slots[i+1:]...)
	}
}

// WaitNext blocks until the soonest-firing registered timer fires (or
// stop is closed), runs its callback, reschedules it if recurring, and
// reports whether a timer fired (false means stop was closed instead).
// It suits a goroutine whose only event sources are named timers; the
// EventLoop and the discovery loop both run their own reflect.Select
// over NumSlots/SlotCase/FireSlot instead.
func (s *Scheduler) WaitNext(stop <-chan struct{}) bool {
	if len(s.slots) == 0 {
		<-stop
		return false
	}
	cases := make([]reflect.SelectCase, 0, len(s.slots)+1)
	for i := range s.slots {
		cases = append(cases, s.SlotCase(i))
	}
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(stop)})

	chosen, recv, _ := reflect.Select(cases)
	if chosen == len(s.slots) {
		return false
	}
	s.FireSlot(chosen, recv)
	return true
}

// Stop stops every registered timer, releasing their resources.
func (s *Scheduler) Stop() {
	for _, slot := range s.slots {
		slot.timer.Stop()
	}
	s.slots = nil
}

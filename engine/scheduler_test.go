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

package engine

import (
	"reflect"
	"testing"
	"time"
)

func TestSchedulerEveryFiresRepeatedly(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	fired := make(chan struct{}, 8)
	s.Every("tick", 5*time.Millisecond, func(time.Time) { fired <- struct{}{} })

	for i := 0; i < 3; i++ {
		cases := []reflect.SelectCase{s.SlotCase(0)}
		chosen, recv, _ := reflect.Select(cases)
		s.FireSlot(chosen, recv)
	}
	if len(fired) != 3 {
		t.Fatalf("fired %d times, want 3", len(fired))
	}
	if s.NumSlots() != 1 {
		t.Fatalf("NumSlots() = %d, want 1 (Every re-arms)", s.NumSlots())
	}
}

func TestSchedulerAfterFiresOnceThenRemoves(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	fired := 0
	s.After("once", time.Millisecond, func(time.Time) { fired++ })

	chosen, recv, _ := reflect.Select([]reflect.SelectCase{s.SlotCase(0)})
	s.FireSlot(chosen, recv)

	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	if !s.Empty() {
		t.Fatalf("one-shot timer should have been removed after firing")
	}
}

func TestSchedulerCancelStopsNamedTimer(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	s.Every("a", time.Hour, func(time.Time) {})
	s.Every("b", time.Hour, func(time.Time) {})
	s.Cancel("a")

	if s.NumSlots() != 1 {
		t.Fatalf("NumSlots() = %d, want 1 after cancelling one of two", s.NumSlots())
	}
	s.Cancel("does-not-exist")
	if s.NumSlots() != 1 {
		t.Fatalf("cancelling an absent timer changed NumSlots()")
	}
}

func TestSchedulerWaitNextWithNoTimersBlocksUntilStop(t *testing.T) {
	s := NewScheduler()
	stop := make(chan struct{})
	done := make(chan bool, 1)
	go func() { done <- s.WaitNext(stop) }()

	select {
	case <-done:
		t.Fatalf("WaitNext returned before stop was closed")
	case <-time.After(10 * time.Millisecond):
	}
	close(stop)
	if fired := <-done; fired {
		t.Fatalf("WaitNext reported a timer fired, want false (stop closed)")
	}
}

func TestSchedulerWaitNextFiresSoonestTimer(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var order []string
	s.Every("slow", 50*time.Millisecond, func(time.Time) { order = append(order, "slow") })
	s.Every("fast", time.Millisecond, func(time.Time) { order = append(order, "fast") })

	stop := make(chan struct{})
	if !s.WaitNext(stop) {
		t.Fatalf("WaitNext reported no timer fired")
	}
	if len(order) != 1 || order[0] != "fast" {
		t.Fatalf("first fire = %v, want [fast]", order)
	}
}

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
	"github.com/sirupsen/logrus"

	"github.com/xtaci/rtps/config"
	"github.com/xtaci/rtps/discovery"
	"github.com/xtaci/rtps/guid"
	"github.com/xtaci/rtps/metrics"
)

// newTestParticipant builds a *Participant with every field the
// EventLoop and Discovery loop touch, without binding a single socket:
// New() dials real interfaces and joins real multicast groups, neither
// of which a unit test should depend on. The sender/metaSender each
// multiplex two fakeTransports so tests can assert on what would have
// gone out on the wire.
func newTestParticipant(t testingT, prefix guid.GuidPrefix) (*Participant, *fakeTransport, *fakeTransport) {
	t.Helper()

	uc := &fakeTransport{}
	mc := &fakeTransport{}
	log := logrus.NewEntry(logrus.New())
	cfg := config.Default()
	db := discovery.NewDB()

	p := &Participant{
		cfg:           cfg,
		prefix:        prefix,
		log:           log,
		met:           metrics.NewNoop(),
		db:            db,
		pm:            discovery.NewParticipantMessage(db, prefix, log),
		sender:        &multiSender{unicast: uc, multicast: mc, log: log},
		metaSender:    &multiSender{unicast: uc, multicast: mc, log: log},
		userUnicast:   &fakeTransport{},
		userMulticast: &fakeTransport{},
		spdpUnicast:   &fakeTransport{},
		spdpMulticast: &fakeTransport{},
		events:        make(chan StatusEvent, 64),
	}
	return p, uc, mc
}

// testingT is the subset of *testing.T newTestParticipant needs, so it
// can be called from both eventloop_test.go and discovery_loop_test.go
// without importing "testing" twice under different names.
type testingT interface {
	Helper()
}

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

	"github.com/xtaci/rtps/transport"
	"github.com/xtaci/rtps/wire"
)

// multiSender implements endpoint.Sender over a pair of transport
// sockets: every locator in the list gets a best-effort Send, failures
// are logged and otherwise ignored (spec §6 — the Transport contract
// already promises best-effort delivery, so a single bad peer address
// never blocks the others). A Participant builds two of these — one
// over its user-traffic sockets for Writer/Reader data, one over its
// metatraffic sockets for SPDP/SEDP/ParticipantMessage — and both are
// safe to share read-only across the EventLoop and Discovery goroutines
// since SendTo never mutates the sender itself.
type multiSender struct {
	unicast   transport.Transport
	multicast transport.Transport
	log       *logrus.Entry
}

// SendTo implements endpoint.Sender.
func (s *multiSender) SendTo(datagram []byte, locators []wire.Locator) {
	for _, loc := range locators {
		if loc.Kind == wire.LocatorKindInvalid {
			continue
		}
		t := s.unicast
		if loc.IsMulticast() {
			t = s.multicast
		}
		if t == nil {
			continue
		}
		if err := t.Send(datagram, loc.AddressString(), int(loc.Port)); err != nil {
			s.log.WithError(err).WithField("locator", loc.AddressString()).Warn("send failed")
		}
	}
}

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
	"net"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/xtaci/rtps/wire"
)

// fakeTransport records every Send call instead of touching a socket.
type fakeTransport struct {
	sent []sendCall
	fail bool
}

type sendCall struct {
	datagram []byte
	address  string
	port     int
}

func (f *fakeTransport) Send(datagram []byte, address string, port int) error {
	if f.fail {
		return errTestSend
	}
	f.sent = append(f.sent, sendCall{datagram, address, port})
	return nil
}
func (f *fakeTransport) Recv() ([]byte, net.Addr, error)  { select {} }
func (f *fakeTransport) JoinMulticast(group string) error { return nil }
func (f *fakeTransport) LeaveMulticast(group string) error { return nil }
func (f *fakeTransport) Close() error                      { return nil }

type sendError struct{ s string }

func (e *sendError) Error() string { return e.s }

var errTestSend = &sendError{"send failed"}

func TestMultiSenderRoutesUnicastAndMulticastSeparately(t *testing.T) {
	uc := &fakeTransport{}
	mc := &fakeTransport{}
	s := &multiSender{unicast: uc, multicast: mc, log: logrus.NewEntry(logrus.New())}

	unicastLoc := wire.NewUDPv4Locator(10, 0, 0, 1, 7411)
	multicastLoc := wire.NewUDPv4Locator(239, 255, 0, 1, 7400)

	s.SendTo([]byte("payload"), []wire.Locator{unicastLoc, multicastLoc})

	if len(uc.sent) != 1 || uc.sent[0].port != 7411 {
		t.Fatalf("unicast transport got %v, want one send to port 7411", uc.sent)
	}
	if len(mc.sent) != 1 || mc.sent[0].port != 7400 {
		t.Fatalf("multicast transport got %v, want one send to port 7400", mc.sent)
	}
}

func TestMultiSenderSkipsInvalidLocators(t *testing.T) {
	uc := &fakeTransport{}
	mc := &fakeTransport{}
	s := &multiSender{unicast: uc, multicast: mc, log: logrus.NewEntry(logrus.New())}

	s.SendTo([]byte("payload"), []wire.Locator{wire.InvalidLocator})

	if len(uc.sent) != 0 || len(mc.sent) != 0 {
		t.Fatalf("invalid locator should never reach a transport")
	}
}

func TestMultiSenderContinuesAfterOneSendFails(t *testing.T) {
	bad := &fakeTransport{fail: true}
	good := &fakeTransport{}
	s := &multiSender{unicast: bad, multicast: good, log: logrus.NewEntry(logrus.New())}

	locs := []wire.Locator{
		wire.NewUDPv4Locator(10, 0, 0, 1, 7411),
		wire.NewUDPv4Locator(239, 255, 0, 1, 7400),
	}
	s.SendTo([]byte("payload"), locs)

	if len(good.sent) != 1 {
		t.Fatalf("a failing unicast send should not stop the multicast send")
	}
}

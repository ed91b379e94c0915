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

// Package transport implements the RTPS Transport contract (spec §6):
// best-effort send, receive-from-bound-socket, and multicast group
// membership, over UDPv4. The core only ever talks to this interface —
// it neither owns nor assumes a particular socket lifecycle.
package transport

import (
	"net"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
)

// Transport is the external collaborator the RTPS core sends and
// receives datagrams through (spec §6).
type Transport interface {
	// Send writes datagram to address:port, best-effort; a failure is
	// logged by the caller and does not block other locators or peers.
	Send(datagram []byte, address string, port int) error
	// Recv blocks until a datagram arrives, returning its bytes and the
	// sender's address.
	Recv() ([]byte, net.Addr, error)
	// JoinMulticast joins group on the interface the Transport is bound
	// to.
	JoinMulticast(group string) error
	// LeaveMulticast leaves a previously joined group.
	LeaveMulticast(group string) error
	// Close releases the underlying socket.
	Close() error
}

// UDPv4Transport binds one UDPv4 socket and implements Transport over
// it (spec §6's external collaborator).
type UDPv4Transport struct {
	conn    *net.UDPConn
	pconn   *ipv4.PacketConn
	iface   *net.Interface
	maxSize int
}

// DefaultMaxDatagramSize is the read buffer size for Recv; UDP over
// Ethernet rarely exceeds this without fragmentation the OS already
// handles.
const DefaultMaxDatagramSize = 65536

// Bind opens a UDPv4 socket on port (0.0.0.0:port) and wraps it for
// multicast use on iface (nil means the default interface).
func Bind(port int, iface *net.Interface) (*UDPv4Transport, error) {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "transport: bind udp4 port %d", port)
	}
	return &UDPv4Transport{
		conn:    conn,
		pconn:   ipv4.NewPacketConn(conn),
		iface:   iface,
		maxSize: DefaultMaxDatagramSize,
	}, nil
}

// Send implements Transport.
func (t *UDPv4Transport) Send(datagram []byte, address string, port int) error {
	dst := &net.UDPAddr{IP: net.ParseIP(address), Port: port}
	if dst.IP == nil {
		return errors.Errorf("transport: invalid destination address %q", address)
	}
	_, err := t.conn.WriteToUDP(datagram, dst)
	if err != nil {
		return errors.Wrapf(err, "transport: send to %s:%d", address, port)
	}
	return nil
}

// Recv implements Transport.
func (t *UDPv4Transport) Recv() ([]byte, net.Addr, error) {
	buf := make([]byte, t.maxSize)
	n, addr, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, errors.Wrap(err, "transport: recv")
	}
	return buf[:n], addr, nil
}

// JoinMulticast implements Transport.
func (t *UDPv4Transport) JoinMulticast(group string) error {
	ip := net.ParseIP(group)
	if ip == nil {
		return errors.Errorf("transport: invalid multicast group %q", group)
	}
	if err := t.pconn.JoinGroup(t.iface, &net.UDPAddr{IP: ip}); err != nil {
		return errors.Wrapf(err, "transport: join multicast group %s", group)
	}
	return nil
}

// LeaveMulticast implements Transport.
func (t *UDPv4Transport) LeaveMulticast(group string) error {
	ip := net.ParseIP(group)
	if ip == nil {
		return errors.Errorf("transport: invalid multicast group %q", group)
	}
	if err := t.pconn.LeaveGroup(t.iface, &net.UDPAddr{IP: ip}); err != nil {
		return errors.Wrapf(err, "transport: leave multicast group %s", group)
	}
	return nil
}

// Close implements Transport.
func (t *UDPv4Transport) Close() error {
	return t.conn.Close()
}

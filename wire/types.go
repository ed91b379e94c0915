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

// Package wire implements the RTPS data-model primitives (§3) and their
// binary codec (§4.1): Timestamp, Duration, SequenceNumber,
// SequenceNumberSet, FragmentNumberSet, Locator, and the submessage set.
package wire

import (
	"fmt"
	"math"
	"net"
)

// SequenceNumber is a signed 64-bit monotonic counter. Zero is reserved;
// SeqNumUnknown is the distinguished invalid value (spec §3).
type SequenceNumber int64

const (
	SeqNumZero    SequenceNumber = 0
	SeqNumUnknown SequenceNumber = math.MinInt64
)

// High returns the upper 32 bits of the wire representation.
func (s SequenceNumber) High() int32 { return int32(int64(s) >> 32) }

// Low returns the lower 32 bits of the wire representation.
func (s SequenceNumber) Low() uint32 { return uint32(int64(s)) }

// SequenceNumberFromParts reconstructs a SequenceNumber from its two
// 32-bit wire halves.
func SequenceNumberFromParts(high int32, low uint32) SequenceNumber {
	return SequenceNumber(int64(high)<<32 | int64(low))
}

// Timestamp is seconds + 2^-32-second fraction (spec §3).
type Timestamp struct {
	Seconds  int32
	Fraction uint32
}

var (
	TimeZero     = Timestamp{0, 0}
	TimeInvalid  = Timestamp{-1, 0xffffffff}
	TimeInfinite = Timestamp{0x7fffffff, 0xffffffff}
)

func (t Timestamp) String() string {
	return fmt.Sprintf("%d.%09d", t.Seconds, uint64(t.Fraction)*1_000_000_000/(1<<32))
}

// Before reports whether t happens strictly before other.
func (t Timestamp) Before(other Timestamp) bool {
	if t.Seconds != other.Seconds {
		return t.Seconds < other.Seconds
	}
	return t.Fraction < other.Fraction
}

// Duration is a signed seconds + fraction span with saturating INFINITE
// (spec §3). Ordering is total and lexicographic on (Seconds, Fraction).
type Duration struct {
	Seconds  int32
	Fraction uint32
}

var (
	DurationZero     = Duration{0, 0}
	DurationInfinite = Duration{0x7fffffff, 0x7fffffff}
)

// Less reports whether d sorts strictly before other.
func (d Duration) Less(other Duration) bool {
	if d.Seconds != other.Seconds {
		return d.Seconds < other.Seconds
	}
	return d.Fraction < other.Fraction
}

// LessEqual reports d <= other.
func (d Duration) LessEqual(other Duration) bool {
	return !other.Less(d)
}

// Nanoseconds converts d to an approximate nanosecond count, saturating
// at DurationInfinite.
func (d Duration) Nanoseconds() int64 {
	if d == DurationInfinite {
		return math.MaxInt64
	}
	return int64(d.Seconds)*1_000_000_000 + int64(d.Fraction)*1_000_000_000/(1<<32)
}

// LocatorKind enumerates transport kinds (spec §3).
type LocatorKind int32

const (
	LocatorKindInvalid LocatorKind = -1
	LocatorKindUDPv4    LocatorKind = 1
	LocatorKindUDPv6    LocatorKind = 2
)

// Locator addresses a transport endpoint: kind, port, and a 16-byte
// address field (IPv4 occupies the last four bytes, spec §3).
type Locator struct {
	Kind    LocatorKind
	Port    uint32
	Address [16]byte
}

// InvalidLocator is the distinguished non-address value.
var InvalidLocator = Locator{Kind: LocatorKindInvalid}

// NewUDPv4Locator builds a UDPv4 Locator from a 4-byte address and port.
func NewUDPv4Locator(a, b, c, d byte, port uint32) Locator {
	loc := Locator{Kind: LocatorKindUDPv4, Port: port}
	loc.Address[12] = a
	loc.Address[13] = b
	loc.Address[14] = c
	loc.Address[15] = d
	return loc
}

// IsValid reports whether the locator has a recognized kind.
func (l Locator) IsValid() bool {
	return l.Kind == LocatorKindUDPv4 || l.Kind == LocatorKindUDPv6
}

func (l Locator) String() string {
	if l.Kind == LocatorKindUDPv4 {
		return fmt.Sprintf("%d.%d.%d.%d:%d", l.Address[12], l.Address[13], l.Address[14], l.Address[15], l.Port)
	}
	return fmt.Sprintf("locator{kind=%d port=%d}", l.Kind, l.Port)
}

// AddressString returns the locator's address alone, in the form a
// net.Dial-style host expects (no port) — UDPv4 locators render as
// dotted-quad, UDPv6 as the standard IPv6 text form.
func (l Locator) AddressString() string {
	if l.Kind == LocatorKindUDPv4 {
		return net.IP(l.Address[12:16]).String()
	}
	return net.IP(l.Address[:]).String()
}

// IsMulticast reports whether the locator's address falls in its
// transport's multicast range, used to route an outbound send between
// a unicast and a multicast socket (spec §6).
func (l Locator) IsMulticast() bool {
	switch l.Kind {
	case LocatorKindUDPv4:
		return net.IP(l.Address[12:16]).IsMulticast()
	case LocatorKindUDPv6:
		return net.IP(l.Address[:]).IsMulticast()
	default:
		return false
	}
}

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

package wire

import "github.com/pkg/errors"

// magic is the fixed 4-byte RTPS message tag (spec §4.1).
var magic = [4]byte{'R', 'T', 'P', 'S'}

// ProtocolVersion is major.minor; this module speaks 2.3 (spec §6).
type ProtocolVersion struct {
	Major, Minor uint8
}

var CurrentProtocolVersion = ProtocolVersion{Major: 2, Minor: 3}

// Header is the 20-byte RTPS message header (spec §4.1).
type Header struct {
	Version    ProtocolVersion
	VendorID   [2]byte
	GuidPrefix [12]byte
}

const HeaderLength = 20

// EncodeHeader serializes h in the given byte order (the header itself
// has no endianness flag; by convention it is written in the order the
// first submessage uses).
func EncodeHeader(h Header, order Endian) []byte {
	buf := make([]byte, 0, HeaderLength)
	buf = append(buf, magic[:]...)
	buf = append(buf, h.Version.Major, h.Version.Minor)
	buf = append(buf, h.VendorID[:]...)
	buf = append(buf, h.GuidPrefix[:]...)
	_ = order
	return buf
}

// DecodeHeader parses the fixed 20-byte message header. A malformed
// header aborts parsing of the entire message (spec §4.1/§7).
func DecodeHeader(buf []byte) (Header, int, error) {
	var h Header
	if len(buf) < HeaderLength {
		return h, 0, errors.Errorf("wire: message too short for header: %d bytes", len(buf))
	}
	if buf[0] != magic[0] || buf[1] != magic[1] || buf[2] != magic[2] || buf[3] != magic[3] {
		return h, 0, errors.New("wire: bad message magic")
	}
	h.Version = ProtocolVersion{Major: buf[4], Minor: buf[5]}
	copy(h.VendorID[:], buf[6:8])
	copy(h.GuidPrefix[:], buf[8:20])
	return h, HeaderLength, nil
}

// SubmessageKind identifies a submessage's wire type (spec §4.1).
type SubmessageKind uint8

const (
	KindPad           SubmessageKind = 0x01
	KindAckNack       SubmessageKind = 0x06
	KindHeartbeat     SubmessageKind = 0x07
	KindGap           SubmessageKind = 0x08
	KindInfoTS        SubmessageKind = 0x09
	KindInfoSrc       SubmessageKind = 0x0c
	KindInfoReplyIP4  SubmessageKind = 0x0d
	KindInfoDst       SubmessageKind = 0x0e
	KindInfoReply     SubmessageKind = 0x0f
	KindNackFrag      SubmessageKind = 0x12
	KindHeartbeatFrag SubmessageKind = 0x13
	KindData          SubmessageKind = 0x15
	KindDataFrag      SubmessageKind = 0x16
)

// IsVendorSpecific reports whether kind is reserved for vendor extension
// (>= 0x80); such submessages are always ignored (spec §4.1).
func (k SubmessageKind) IsVendorSpecific() bool { return k >= 0x80 }

// SubmessageFlags is the second header byte; bit 0 selects endianness.
type SubmessageFlags uint8

const flagEndianBit = 1 << 0

func (f SubmessageFlags) Endian() Endian {
	if f&flagEndianBit != 0 {
		return LittleEndian
	}
	return BigEndian
}

func (f SubmessageFlags) Has(bit uint8) bool { return f&SubmessageFlags(bit) != 0 }

// SubmessageHeader is the 4-byte header preceding every submessage body
// (spec §4.1).
type SubmessageHeader struct {
	Kind   SubmessageKind
	Flags  SubmessageFlags
	Length uint16
}

const SubmessageHeaderLength = 4

func encodeSubmessageHeader(kind SubmessageKind, flags SubmessageFlags, length uint16, order Endian) []byte {
	buf := make([]byte, SubmessageHeaderLength)
	buf[0] = byte(kind)
	buf[1] = byte(flags)
	o := order.order()
	o.PutUint16(buf[2:], length)
	return buf
}

func decodeSubmessageHeader(buf []byte) (SubmessageHeader, error) {
	if len(buf) < SubmessageHeaderLength {
		return SubmessageHeader{}, errors.New("wire: short submessage header")
	}
	flags := SubmessageFlags(buf[1])
	order := flags.Endian()
	length := order.order().Uint16(buf[2:])
	return SubmessageHeader{Kind: SubmessageKind(buf[0]), Flags: flags, Length: length}, nil
}

// RawSubmessage is a decoded-but-not-yet-interpreted submessage: its
// header plus its body bytes (length 0 on the last submessage of a
// datagram means "extends to end", already resolved by the splitter).
type RawSubmessage struct {
	Header SubmessageHeader
	Body   []byte
}

// SplitMessage walks a datagram's submessage stream using each header's
// declared length, expanding a trailing length-0 submessage to "rest of
// datagram" for submessage kinds where that convention applies (DATA,
// HEARTBEAT, ACKNACK, GAP, DATA_FRAG, NACK_FRAG, HEARTBEAT_FRAG;
// PAD/INFO_TS genuinely mean empty,
// spec §4.1). A malformed header aborts the whole message; a submessage
// whose declared length overruns the datagram is dropped and splitting
// stops (the rest of the datagram cannot be resynchronized).
func SplitMessage(body []byte) ([]RawSubmessage, error) {
	var subs []RawSubmessage
	pos := 0
	for pos < len(body) {
		if len(body)-pos < SubmessageHeaderLength {
			return subs, errors.New("wire: trailing bytes too short for a submessage header")
		}
		hdr, err := decodeSubmessageHeader(body[pos:])
		if err != nil {
			return subs, err
		}
		pos += SubmessageHeaderLength

		length := int(hdr.Length)
		isLast := pos+length >= len(body)
		extendsToEnd := hdr.Length == 0 && extendsToEndOfMessage(hdr.Kind)
		if extendsToEnd {
			length = len(body) - pos
		} else if pos+length > len(body) {
			// oversized length: drop remainder, stop splitting (spec §7).
			return subs, nil
		}
		_ = isLast

		subs = append(subs, RawSubmessage{Header: hdr, Body: body[pos : pos+length]})
		pos += length
	}
	return subs, nil
}

func extendsToEndOfMessage(kind SubmessageKind) bool {
	switch kind {
	case KindData, KindDataFrag, KindHeartbeat, KindAckNack, KindGap, KindNackFrag, KindHeartbeatFrag:
		return true
	default:
		return false
	}
}

// Message is an ordered run of submessages prefixed by a Header.
type Message struct {
	Header      Header
	Submessages []RawSubmessage
}

// Encode concatenates a pre-built header and the given already-encoded
// submessages (MessageBuilder composes these bodies; this just lays
// them out back to back).
func Encode(header Header, order Endian, submessages [][]byte) []byte {
	out := EncodeHeader(header, order)
	for _, s := range submessages {
		out = append(out, s...)
	}
	return out
}

// Decode parses a full datagram into a header and its submessage list.
func Decode(datagram []byte) (Message, error) {
	header, n, err := DecodeHeader(datagram)
	if err != nil {
		return Message{}, err
	}
	subs, err := SplitMessage(datagram[n:])
	if err != nil {
		return Message{}, err
	}
	return Message{Header: header, Submessages: subs}, nil
}
